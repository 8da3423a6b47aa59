// Package pipeline は、定理の説明動画を生成する一連の工程を束ねるのだ。
// 計画 → シーンコード生成 → 結合 → 本番レンダリング（修復ループ付き）→
// ナレーション → 最終動画の組み立て、という流れなのだよ。
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shouni/go-theorem-kit/internal/builder"
	"github.com/shouni/go-theorem-kit/internal/config"
	"github.com/shouni/go-theorem-kit/internal/debug"
	"github.com/shouni/go-theorem-kit/pkg/assemble"
	"github.com/shouni/go-theorem-kit/pkg/domain"

	gcsfactory "github.com/shouni/go-remote-io/remoteio/gcs"
)

// workspace は1回の実行が使うディレクトリ一式なのだ。
type workspace struct {
	root     string
	codeDir  string
	mediaDir string
	audioDir string
	debugDir string
	tempDir  string
}

// Execute はパイプライン全体を実行して JobResult を返すのだ。
// 想定外の panic もここで回収する——呼び出し側（CLI）には必ず結果構造体が届くのだ。
func Execute(ctx context.Context, cfg *config.Config) (result *domain.JobResult) {
	result = &domain.JobResult{}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("パイプラインが予期せぬ異常で停止したのだ", "panic", r)
			result.Success = false
			result.Err = fmt.Sprintf("unexpected failure: %v", r)
		}
	}()

	ws, err := setupWorkspace(cfg.Options.OutputDir, cfg.Options.TheoremName)
	if err != nil {
		result.Err = err.Error()
		return result
	}

	closeLog, err := setupLogging(ws.root)
	if err != nil {
		slog.Warn("ログファイルの設定に失敗したのだ。標準出力のみで続行するのだ", "error", err)
	} else {
		defer closeLog()
	}

	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		result.Err = err.Error()
		return result
	}

	recorder := debug.NewRecorder(ws.debugDir)

	// --- Phase 1: シーン計画 ---
	planRunner := builder.BuildPlanRunner(appCtx)
	plan, err := planRunner.Run(ctx, cfg.Options.TheoremName, cfg.Options.TheoremDescription)
	if err != nil {
		result.Err = err.Error()
		return result
	}

	planFile := filepath.Join(ws.root, "scene_plan.json")
	if err := savePlan(planFile, plan); err != nil {
		slog.Warn("シーン計画の保存に失敗したのだ", "error", err)
	} else {
		result.PlanFile = planFile
	}

	// --- Phase 2: シーンごとのコード生成と検証 ---
	validator := builder.BuildExecutor(appCtx, ws.mediaDir)
	sceneRunner := builder.BuildSceneCodeRunner(appCtx, validator, recorder, ws.tempDir)
	sceneResults := sceneRunner.Run(ctx, cfg.Options.TheoremName, cfg.Options.TheoremDescription, plan)

	recordSceneStatus(recorder, sceneResults)

	// --- Phase 3: 結合 ---
	combined, err := assemble.Merge(sceneResults)
	if err != nil {
		result.Err = err.Error()
		return result
	}
	recorder.SaveCombinedCode(combined)

	codeFile := filepath.Join(ws.codeDir, "manim_code.py")
	if err := os.WriteFile(codeFile, []byte(combined), 0o644); err != nil {
		result.Err = fmt.Sprintf("結合コードの保存に失敗したのだ: %v", err)
		return result
	}
	result.CodeFile = codeFile

	// --- Phase 4: 本番レンダリング（修復ループ付き）---
	videoFiles, combined, err := renderWithRepairs(ctx, appCtx, recorder, plan, ws, combined, codeFile)
	if err != nil {
		result.Err = err.Error()
		return result
	}
	result.VideoFiles = videoFiles

	// --- Phase 5: ナレーション合成（ベストエフォート）---
	narrationRunner := builder.BuildNarrationRunner(appCtx, ws.audioDir)
	audioByScene := narrationRunner.Run(ctx, sceneResults)
	result.AudioFiles = sortedAudioPaths(audioByScene)

	// --- Phase 6: 最終動画の組み立て ---
	assembler := builder.BuildMediaAssembler(ws.root)
	finalVideo, err := assembler.Assemble(ctx, videoFiles,
		audioBySegment(sceneResults, audioByScene), filepath.Join(ws.root, "theorem_explanation.mp4"))
	if err != nil {
		result.Err = fmt.Sprintf("最終動画の組み立てに失敗したのだ: %v", err)
		return result
	}
	result.FinalVideo = finalVideo

	// --- Phase 7: 公開（指定があれば）---
	if cfg.Options.OutputFile != "" {
		if err := publish(ctx, appCtx, finalVideo, cfg.Options.OutputFile); err != nil {
			slog.Warn("最終動画の公開に失敗したのだ。ローカルの成果物は残っているのだ", "error", err)
		} else {
			result.FinalVideo = cfg.Options.OutputFile
		}
	}

	result.Success = true
	slog.Info("すべての工程が完了したのだ！", "final_video", result.FinalVideo)
	return result
}

// ExecutePlanOnly はシーン計画の生成だけを行い、JSONで保存するのだ。
func ExecutePlanOnly(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	planRunner := builder.BuildPlanRunner(appCtx)
	plan, err := planRunner.Run(ctx, cfg.Options.TheoremName, cfg.Options.TheoremDescription)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Options.OutputDir, 0o755); err != nil {
		return fmt.Errorf("出力ディレクトリを作れなかったのだ: %w", err)
	}

	planFile := filepath.Join(cfg.Options.OutputDir, "scene_plan.json")
	if err := savePlan(planFile, plan); err != nil {
		return err
	}

	slog.Info("シーン計画（JSON）の生成が完了したのだ！", "output_file", planFile, "scenes", len(plan))
	return nil
}

// ExecuteAssembleOnly は、既存のシーン動画と音声から最終動画だけを組み立てるのだ。
// 動画リストは1行1パスのテキスト、音声はセグメント番号→パスのJSONで受け取るのだ。
func ExecuteAssembleOnly(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContextWithoutGenerator(ctx, cfg)
	if err != nil {
		return err
	}

	videos, err := readVideoList(ctx, appCtx, cfg.Options.VideoListFile)
	if err != nil {
		return err
	}

	audioFiles := make(map[int]string)
	if cfg.Options.AudioMapFile != "" {
		audioFiles, err = readAudioMap(ctx, appCtx, cfg.Options.AudioMapFile)
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(cfg.Options.OutputDir, 0o755); err != nil {
		return fmt.Errorf("出力ディレクトリを作れなかったのだ: %w", err)
	}

	assembler := builder.BuildMediaAssembler(cfg.Options.OutputDir)
	finalVideo, err := assembler.Assemble(ctx, videos, audioFiles, cfg.Options.OutputFile)
	if err != nil {
		return err
	}

	slog.Info("最終動画の組み立てが完了したのだ！", "path", finalVideo)
	return nil
}

// renderWithRepairs は結合ファイルの全シーンをレンダリングし、
// 失敗のたびに FixRunner で修復して再挑戦するのだ。
func renderWithRepairs(
	ctx context.Context,
	appCtx *builder.AppContext,
	recorder *debug.Recorder,
	plan domain.ScenePlan,
	ws *workspace,
	combined, codeFile string,
) ([]string, string, error) {
	executor := builder.BuildExecutor(appCtx, ws.mediaDir)
	fixRunner := builder.BuildFixRunner(appCtx, recorder)

	maxAttempts := appCtx.Options.MaxGlobalFixAttempts
	scriptPath := codeFile
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		videos, err := executor.ExecuteFile(ctx, scriptPath, combined)
		if err == nil {
			return videos, combined, nil
		}
		lastErr = err
		recorder.SaveRenderError(attempt, err.Error())

		if attempt == maxAttempts {
			break
		}

		slog.Warn("本番レンダリングに失敗したのだ。修復を試みるのだ",
			"attempt", attempt, "max", maxAttempts)

		fixed, fixErr := fixRunner.Fix(ctx, appCtx.Options.TheoremName, plan, combined, err.Error(), attempt)
		if fixErr != nil {
			slog.Warn("修復に失敗したのだ。同じコードで再挑戦するのだ", "error", fixErr)
			continue
		}

		combined = fixed
		scriptPath = filepath.Join(ws.codeDir, fmt.Sprintf("manim_code_fixed_%d.py", attempt))
		if err := os.WriteFile(scriptPath, []byte(combined), 0o644); err != nil {
			return nil, "", fmt.Errorf("修正版コードの保存に失敗したのだ: %w", err)
		}
	}

	return nil, "", fmt.Errorf("本番レンダリングが%d回の試行で成功しなかったのだ: %w", maxAttempts, lastErr)
}

// publish は最終動画を Writer 経由で保存するのだ（ローカルパスも gs:// も同じ口なのだ）。
func publish(ctx context.Context, appCtx *builder.AppContext, localPath, outputPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("最終動画を開けなかったのだ: %w", err)
	}
	defer f.Close()

	if err := appCtx.Writer.Write(ctx, outputPath, f, "video/mp4"); err != nil {
		return fmt.Errorf("最終動画の保存に失敗したのだ: %w", err)
	}
	slog.Info("最終動画を公開したのだ！", "path", outputPath)
	return nil
}

// setupWorkspace は実行用のディレクトリ構成を作るのだ。
// debug と temp は障害調査のために実行後も残すのだ。
func setupWorkspace(outputDir, theoremName string) (*workspace, error) {
	root := filepath.Join(outputDir, slugify(theoremName))
	ws := &workspace{
		root:     root,
		codeDir:  filepath.Join(root, "code"),
		mediaDir: filepath.Join(root, "media"),
		audioDir: filepath.Join(root, "audio"),
		debugDir: filepath.Join(root, "debug"),
		tempDir:  filepath.Join(root, "temp_scenes"),
	}
	for _, dir := range []string{ws.root, ws.codeDir, ws.mediaDir, ws.audioDir, ws.debugDir, ws.tempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("作業ディレクトリ '%s' を作れなかったのだ: %w", dir, err)
		}
	}
	return ws, nil
}

// setupLogging は実行ログをファイルと標準出力の両方に流すのだ。
func setupLogging(root string) (func(), error) {
	f, err := os.Create(filepath.Join(root, "generation.log"))
	if err != nil {
		return nil, err
	}
	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, f), nil)
	slog.SetDefault(slog.New(handler))
	return func() { f.Close() }, nil
}

// setupAppContext は、提供された設定と共有コンポーネントを使用して、アプリケーションコンテキストを初期化して返すのだ。
func setupAppContext(ctx context.Context, cfg *config.Config) (*builder.AppContext, error) {
	gen, err := builder.InitializeGenerator(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ai client: %w", err)
	}

	gcsFactory, err := gcsfactory.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client factory: %w", err)
	}

	reader, err := gcsFactory.InputReader()
	if err != nil {
		return nil, err
	}
	writer, err := gcsFactory.OutputWriter()
	if err != nil {
		return nil, err
	}

	appCtx := builder.NewAppContext(cfg, gen, reader, writer)
	return &appCtx, nil
}

// setupAppContextWithoutGenerator は AI を使わないサブコマンド用の軽量版なのだ。
func setupAppContextWithoutGenerator(ctx context.Context, cfg *config.Config) (*builder.AppContext, error) {
	gcsFactory, err := gcsfactory.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client factory: %w", err)
	}

	reader, err := gcsFactory.InputReader()
	if err != nil {
		return nil, err
	}
	writer, err := gcsFactory.OutputWriter()
	if err != nil {
		return nil, err
	}

	appCtx := builder.NewAppContext(cfg, nil, reader, writer)
	return &appCtx, nil
}

// savePlan はシーン計画をJSONで保存するのだ。
func savePlan(path string, plan domain.ScenePlan) error {
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("シーン計画のJSON化に失敗したのだ: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("シーン計画の保存に失敗したのだ: %w", err)
	}
	return nil
}

// recordSceneStatus は成功・失敗シーンの一覧をデバッグ記録に残すのだ。
func recordSceneStatus(recorder *debug.Recorder, results []domain.SceneResult) {
	var successful, failed []int
	for _, res := range results {
		if res.Succeeded() {
			successful = append(successful, res.Descriptor.Position)
		} else {
			failed = append(failed, res.Descriptor.Position)
		}
	}
	recorder.SaveStatus(successful, failed)
	slog.Info("シーン生成の結果なのだ", "successful", len(successful), "failed", len(failed))
}

// audioBySegment はシーン番号キーの音声マップを、成功シーンのみで数え直した
// セグメント番号（0始まり）キーのマップに写すのだ。失敗シーンは動画に現れないので、
// 音声の割り当てもその分詰める必要があるのだよ。
func audioBySegment(results []domain.SceneResult, audioByScene map[int]string) map[int]string {
	segmentAudio := make(map[int]string)
	segment := 0
	for _, res := range results {
		if !res.Succeeded() {
			continue
		}
		if path, ok := audioByScene[res.Descriptor.Position]; ok {
			segmentAudio[segment] = path
		}
		segment++
	}
	return segmentAudio
}

// sortedAudioPaths は音声マップをシーン番号順のスライスにします。
func sortedAudioPaths(audioByScene map[int]string) []string {
	positions := make([]int, 0, len(audioByScene))
	for pos := range audioByScene {
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	paths := make([]string, 0, len(positions))
	for _, pos := range positions {
		paths = append(paths, audioByScene[pos])
	}
	return paths
}

// readVideoList は1行1パス形式の動画リストを読み込むのだ。
func readVideoList(ctx context.Context, appCtx *builder.AppContext, path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("動画リスト（--video-list）を指定してほしいのだ")
	}

	rc, err := appCtx.Reader.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("動画リスト '%s' の読み込みに失敗したのだ: %w", path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}

	var videos []string
	for _, line := range strings.Split(string(data), "\n") {
		if t := strings.TrimSpace(line); t != "" {
			videos = append(videos, t)
		}
	}
	if len(videos) == 0 {
		return nil, fmt.Errorf("動画リスト '%s' が空なのだ", path)
	}
	return videos, nil
}

// readAudioMap はセグメント番号→音声パスのJSONマップを読み込むのだ。
func readAudioMap(ctx context.Context, appCtx *builder.AppContext, path string) (map[int]string, error) {
	rc, err := appCtx.Reader.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("音声マップ '%s' の読み込みに失敗したのだ: %w", path, err)
	}
	defer rc.Close()

	audioFiles := make(map[int]string)
	if err := json.NewDecoder(rc).Decode(&audioFiles); err != nil {
		return nil, fmt.Errorf("音声マップ '%s' のデコードに失敗したのだ: %w", path, err)
	}
	return audioFiles, nil
}

// slugify は定理名をディレクトリ名に使える形に整えます。
func slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "_")
	var sb strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return "theorem"
	}
	return sb.String()
}
