package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shouni/go-theorem-kit/internal/ai"
	"github.com/shouni/go-theorem-kit/internal/config"
	"github.com/shouni/go-theorem-kit/internal/debug"
	"github.com/shouni/go-theorem-kit/internal/prompt"
	"github.com/shouni/go-theorem-kit/pkg/codefix"
	"github.com/shouni/go-theorem-kit/pkg/domain"
	"github.com/shouni/go-theorem-kit/pkg/manim"
	"github.com/shouni/go-theorem-kit/pkg/parser"
)

// SceneCodeRunner は、シーン計画の各項目を検証済みのManimコードに変換する
// 核となる構造体なのだ。構文修復とレンダリング修復の二段ループを持つのだ。
type SceneCodeRunner struct {
	gen       ai.Generator
	validator manim.Runner
	recorder  *debug.Recorder

	scratchDir           string
	maxSyntaxFixAttempts int
	maxRenderAttempts    int
	strictClassNames     bool
}

// NewSceneCodeRunner は SceneCodeRunner の新しいインスタンスを生成して返すのだ。
func NewSceneCodeRunner(
	gen ai.Generator,
	validator manim.Runner,
	recorder *debug.Recorder,
	scratchDir string,
	maxSyntaxFixAttempts, maxRenderAttempts int,
	strictClassNames bool,
) *SceneCodeRunner {
	return &SceneCodeRunner{
		gen:                  gen,
		validator:            validator,
		recorder:             recorder,
		scratchDir:           scratchDir,
		maxSyntaxFixAttempts: maxSyntaxFixAttempts,
		maxRenderAttempts:    maxRenderAttempts,
		strictClassNames:     strictClassNames,
	}
}

// Run は全シーンを順番に処理するのだ。1つのシーンが失敗しても止まらず、
// シーンごとの成否を結果として持ち帰るのだ——失敗の扱いは後段が決めるのだよ。
func (sr *SceneCodeRunner) Run(ctx context.Context, theoremName, theoremDescription string, plan domain.ScenePlan) []domain.SceneResult {
	results := make([]domain.SceneResult, 0, len(plan))
	for _, scene := range plan {
		result := sr.processScene(ctx, theoremName, theoremDescription, scene)
		if result.Err != nil {
			slog.Error("シーンの処理に失敗したのだ。次のシーンに進むのだ",
				"scene", scene.Position, "error", result.Err)
			sr.recorder.SaveSceneError(scene.Position, result.Err.Error())
		}
		results = append(results, result)
	}
	return results
}

// processScene は1シーンを生成・検証するのだ。
func (sr *SceneCodeRunner) processScene(ctx context.Context, theoremName, theoremDescription string, scene domain.SceneDescriptor) domain.SceneResult {
	result := domain.SceneResult{
		Descriptor: scene,
		ClassName:  scene.ClassName(),
	}

	slog.Info("シーンコードの生成を開始するのだ",
		"scene", scene.Position, "title", scene.Title, "class", result.ClassName)

	data := prompt.NewSceneData(theoremName, theoremDescription, scene)
	promptContent, err := prompt.SceneCode(data)
	if err != nil {
		result.Err = err
		return result
	}

	resp, err := sr.gen.Generate(ctx, ai.Request{
		Prompt:    promptContent,
		MaxTokens: config.SceneMaxTokens,
	})
	if err != nil {
		result.Err = fmt.Errorf("シーン%dのコード生成に失敗したのだ: %w", scene.Position, err)
		return result
	}
	sr.recorder.SaveSceneResponse(scene.Position, resp)

	code := parser.ExtractCode(resp)
	if code == "" {
		result.Err = fmt.Errorf("シーン%dの応答からコードを抽出できなかったのだ", scene.Position)
		return result
	}

	// 単体検証用のハーネスに包んでスクラッチファイルに置くのだ
	scriptPath := filepath.Join(sr.scratchDir, fmt.Sprintf("scene_%d_test.py", scene.Position))
	if err := sr.writeStandalone(scriptPath, code); err != nil {
		result.Err = err
		return result
	}

	code, err = sr.ensureSyntax(ctx, data, scriptPath, code)
	if err != nil {
		result.Err = err
		return result
	}

	code, videoPath, err := sr.ensureRenders(ctx, data, scriptPath, code)
	if err != nil {
		result.Err = err
		return result
	}

	result.Code = code
	result.VideoPath = videoPath
	slog.Info("シーンの検証が完了したのだ", "scene", scene.Position, "video", videoPath)
	return result
}

// ensureSyntax は構文チェックと、失敗時の修正依頼ループを回すのだ。
func (sr *SceneCodeRunner) ensureSyntax(ctx context.Context, data prompt.SceneData, scriptPath, code string) (string, error) {
	syntaxErr := sr.validator.CheckSyntax(ctx, scriptPath)
	if syntaxErr == nil {
		return code, nil
	}

	for attempt := 1; attempt <= sr.maxSyntaxFixAttempts; attempt++ {
		slog.Warn("構文エラーを修正依頼するのだ",
			"scene", data.SceneNumber, "attempt", attempt, "max", sr.maxSyntaxFixAttempts)

		fixed, err := sr.requestFix(ctx, data, code, syntaxErr.Error(), attempt)
		if err != nil {
			// 修正依頼そのものの失敗は回数を消費して続けるのだ
			slog.Warn("修正応答を得られなかったのだ", "error", err)
			continue
		}
		if fixed != "" {
			code = fixed
			if err := sr.writeStandalone(scriptPath, code); err != nil {
				return "", err
			}
		}

		syntaxErr = sr.validator.CheckSyntax(ctx, scriptPath)
		if syntaxErr == nil {
			return code, nil
		}
	}

	return "", fmt.Errorf("シーン%dの構文エラーを%d回の修正で解消できなかったのだ: %s",
		data.SceneNumber, sr.maxSyntaxFixAttempts, syntaxErr.Error())
}

// ensureRenders はレンダリング試行ループを回すのだ。各試行の失敗につき修正は1回なのだ。
func (sr *SceneCodeRunner) ensureRenders(ctx context.Context, data prompt.SceneData, scriptPath, code string) (string, string, error) {
	var lastErr error

	for attempt := 1; attempt <= sr.maxRenderAttempts; attempt++ {
		videoPath, err := sr.validator.Render(ctx, scriptPath, data.ExpectedClass)
		if err == nil {
			return code, videoPath, nil
		}
		lastErr = err

		slog.Warn("レンダリングに失敗したのだ",
			"scene", data.SceneNumber, "attempt", attempt, "max", sr.maxRenderAttempts)

		if attempt == sr.maxRenderAttempts {
			break
		}

		fixed, fixErr := sr.requestFix(ctx, data, code, err.Error(), sr.maxSyntaxFixAttempts+attempt)
		if fixErr != nil {
			slog.Warn("修正応答を得られなかったのだ", "error", fixErr)
			continue
		}
		if fixed != "" {
			code = fixed
			if err := sr.writeStandalone(scriptPath, code); err != nil {
				return "", "", err
			}
		}
	}

	return "", "", fmt.Errorf("シーン%dのレンダリングが%d回の試行で成功しなかったのだ: %s",
		data.SceneNumber, sr.maxRenderAttempts, lastErr.Error())
}

// requestFix はエラーメッセージを添えて修正版コードを依頼し、
// 期待クラス名のシーンユニットとして受け取るのだ。
// クラス名の不一致はリネーム受理が既定で、厳格モードでは空文字列（不受理）になるのだ。
func (sr *SceneCodeRunner) requestFix(ctx context.Context, data prompt.SceneData, code, errorMessage string, attempt int) (string, error) {
	data.SceneCode = code
	data.ErrorMessage = errorMessage

	promptContent, err := prompt.SceneFix(data)
	if err != nil {
		return "", err
	}

	resp, err := sr.gen.Generate(ctx, ai.Request{
		Prompt:    promptContent,
		MaxTokens: config.SceneFixMaxTokens,
	})
	if err != nil {
		return "", err
	}
	sr.recorder.SaveSceneFixResponse(data.SceneNumber, attempt, resp)

	fixed := parser.ExtractCode(resp)
	if fixed == "" {
		return "", fmt.Errorf("修正応答からコードを抽出できなかったのだ")
	}

	unit := codefix.ExtractSceneUnit(fixed, data.ExpectedClass, !sr.strictClassNames)
	if unit == "" {
		slog.Warn("修正応答のクラス名が期待と一致しないので受理しないのだ",
			"scene", data.SceneNumber, "expected", data.ExpectedClass)
	}
	return unit, nil
}

func (sr *SceneCodeRunner) writeStandalone(scriptPath, code string) error {
	if err := os.WriteFile(scriptPath, []byte(codefix.Standalone(code)), 0o644); err != nil {
		return fmt.Errorf("検証用スクリプトの書き出しに失敗したのだ: %w", err)
	}
	return nil
}
