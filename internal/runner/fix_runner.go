package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/go-theorem-kit/internal/ai"
	"github.com/shouni/go-theorem-kit/internal/config"
	"github.com/shouni/go-theorem-kit/internal/debug"
	"github.com/shouni/go-theorem-kit/internal/prompt"
	"github.com/shouni/go-theorem-kit/pkg/codefix"
	"github.com/shouni/go-theorem-kit/pkg/domain"
	"github.com/shouni/go-theorem-kit/pkg/parser"
)

// FixRunner は、結合済みファイルのレンダリング失敗を修復する構造体なのだ。
// 安い手から順に試すのだ: 既知エラーへのヘッダパッチ → 原因シーンだけの
// 局所修正 → 最後の手段としてファイル全体の修正依頼なのだ。
type FixRunner struct {
	gen              ai.Generator
	recorder         *debug.Recorder
	strictClassNames bool
}

// NewFixRunner は FixRunner の新しいインスタンスを生成して返すのだ。
func NewFixRunner(gen ai.Generator, recorder *debug.Recorder, strictClassNames bool) *FixRunner {
	return &FixRunner{gen: gen, recorder: recorder, strictClassNames: strictClassNames}
}

// Fix はエラーメッセージを解析して修正版の結合コードを返すのだ。
// attempt はデバッグ記録の通し番号に使うのだ。
func (fr *FixRunner) Fix(ctx context.Context, theoremName string, plan domain.ScenePlan, code, errorMessage string, attempt int) (string, error) {
	// 1. 既知のグローバルエラーならモデルを呼ばずにヘッダへ直接パッチなのだ
	if codefix.IsGlobalError(errorMessage) {
		if patched := codefix.ApplyGlobalFix(code, errorMessage); patched != "" {
			slog.Info("既知のグローバルエラーをヘッダパッチで修正したのだ")
			return patched, nil
		}
	}

	// 2. 原因シーンを特定して、そのクラスだけを修正するのだ
	sceneClass, lineNumber := codefix.IdentifyScene(code, errorMessage)
	if sceneClass == "" {
		slog.Warn("原因シーンを特定できなかったのだ。全体修正に切り替えるのだ")
		return fr.fixEntireCode(ctx, theoremName, plan, code, errorMessage, attempt)
	}
	slog.Info("原因シーンを特定したのだ", "class", sceneClass, "line", lineNumber)

	desc, ok := codefix.ResolveDescriptor(plan, sceneClass)
	if !ok {
		slog.Warn("シーン設計への逆引きに失敗したのだ。全体修正に切り替えるのだ")
		return fr.fixEntireCode(ctx, theoremName, plan, code, errorMessage, attempt)
	}

	classSource := codefix.ExtractClassSource(code, sceneClass)
	if classSource == "" {
		slog.Warn("対象クラスの切り出しに失敗したのだ。全体修正に切り替えるのだ", "class", sceneClass)
		return fr.fixEntireCode(ctx, theoremName, plan, code, errorMessage, attempt)
	}

	data := prompt.NewSceneData(theoremName, desc.Description, desc)
	// 結合ファイル内の実名で差し替えるので、期待クラス名はファイル側に合わせるのだ
	data.ExpectedClass = sceneClass
	data.SceneCode = classSource
	data.ErrorMessage = errorMessage

	promptContent, err := prompt.SceneFix(data)
	if err != nil {
		return "", err
	}

	resp, err := fr.gen.Generate(ctx, ai.Request{
		Prompt:    promptContent,
		MaxTokens: config.SceneFixMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("シーン修正の応答取得に失敗したのだ: %w", err)
	}
	fr.recorder.SaveSceneFixResponse(desc.Position, attempt, resp)

	fixed := parser.ExtractCode(resp)
	if fixed == "" {
		slog.Warn("修正応答からコードを抽出できなかったのだ。全体修正に切り替えるのだ")
		return fr.fixEntireCode(ctx, theoremName, plan, code, errorMessage, attempt)
	}

	unit := codefix.ExtractSceneUnit(fixed, sceneClass, !fr.strictClassNames)
	if unit == "" {
		slog.Warn("修正応答のクラス名が期待と一致しないので全体修正に切り替えるのだ", "expected", sceneClass)
		return fr.fixEntireCode(ctx, theoremName, plan, code, errorMessage, attempt)
	}

	merged := codefix.ReplaceClassSource(code, sceneClass, unit)
	merged = codefix.EnsureImports(merged, errorMessage)
	return merged, nil
}

// fixEntireCode はファイル全体の修正を依頼する最後の手段なのだ。
func (fr *FixRunner) fixEntireCode(ctx context.Context, theoremName string, plan domain.ScenePlan, code, errorMessage string, attempt int) (string, error) {
	if len(plan) == 0 {
		return "", fmt.Errorf("シーン計画が空なので全体修正のプロンプトを組み立てられないのだ")
	}

	promptContent, err := prompt.FullFix(prompt.FullFixData{
		TheoremName:  theoremName,
		ScenePlan:    prompt.FormatScenePlan(plan[0]),
		ManimCode:    code,
		ErrorMessage: errorMessage,
	})
	if err != nil {
		return "", err
	}

	resp, err := fr.gen.Generate(ctx, ai.Request{
		Prompt:    promptContent,
		MaxTokens: config.FullFixMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("全体修正の応答取得に失敗したのだ: %w", err)
	}
	fr.recorder.SaveGlobalFixResponse(attempt, resp)

	fixed := parser.ExtractCode(resp)
	if fixed == "" {
		return "", fmt.Errorf("全体修正の応答からコードを抽出できなかったのだ")
	}
	return fixed, nil
}
