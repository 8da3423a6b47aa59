package builder

import (
	"context"
	"fmt"

	"github.com/shouni/go-theorem-kit/internal/ai"
	"github.com/shouni/go-theorem-kit/internal/config"
	"github.com/shouni/go-theorem-kit/internal/debug"
	"github.com/shouni/go-theorem-kit/internal/runner"
	"github.com/shouni/go-theorem-kit/pkg/manim"
	"github.com/shouni/go-theorem-kit/pkg/media"
	"github.com/shouni/go-theorem-kit/pkg/tts"

	"github.com/shouni/go-ai-client/v2/pkg/ai/gemini"
	"google.golang.org/genai"
)

// InitializeGenerator は --provider の指定に応じたテキスト生成クライアントを初期化します。
// コード生成には決定性が欲しいので、温度はどちらのプロバイダでも 0 に固定するのだ。
func InitializeGenerator(ctx context.Context, cfg *config.Config) (ai.Generator, error) {
	switch cfg.Options.Provider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY が設定されていないのだ")
		}
		return ai.NewAnthropicGenerator(
			cfg.AnthropicAPIKey,
			cfg.ModelFor("anthropic"),
			config.DefaultRateInterval,
			config.DefaultModelRetryDelay,
			config.DefaultModelMaxRetries,
		), nil

	case "gemini", "":
		clientConfig := gemini.Config{
			APIKey:      cfg.GeminiAPIKey,
			Temperature: genai.Ptr(float32(0)),
		}
		aiClient, err := gemini.NewClient(ctx, clientConfig)
		if err != nil {
			return nil, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
		}
		return ai.NewGeminiGenerator(
			aiClient,
			cfg.ModelFor("gemini"),
			config.DefaultRateInterval,
			config.DefaultModelRetryDelay,
			config.DefaultModelMaxRetries,
		), nil

	default:
		return nil, fmt.Errorf("サポートされていないプロバイダ: '%s'。gemini か anthropic を指定してほしいのだ", cfg.Options.Provider)
	}
}

// BuildPlanRunner はシーン計画の生成を担当する Runner を構築します。
func BuildPlanRunner(appCtx *AppContext) *runner.PlanRunner {
	return runner.NewPlanRunner(appCtx.Generator)
}

// BuildSceneCodeRunner はシーン単位のコード生成と検証を担当する Runner を構築します。
func BuildSceneCodeRunner(appCtx *AppContext, validator manim.Runner, recorder *debug.Recorder, scratchDir string) *runner.SceneCodeRunner {
	return runner.NewSceneCodeRunner(
		appCtx.Generator,
		validator,
		recorder,
		scratchDir,
		appCtx.Options.MaxSyntaxFixAttempts,
		appCtx.Options.MaxRenderAttempts,
		appCtx.Options.StrictClassNames,
	)
}

// BuildNarrationRunner はナレーション音声の合成を担当する Runner を構築します。
func BuildNarrationRunner(appCtx *AppContext, audioDir string) *runner.NarrationRunner {
	return runner.NewNarrationRunner(tts.NewGTTSSynthesizer(appCtx.Options.Lang), audioDir)
}

// BuildFixRunner は結合コードの修復を担当する Runner を構築します。
func BuildFixRunner(appCtx *AppContext, recorder *debug.Recorder) *runner.FixRunner {
	return runner.NewFixRunner(appCtx.Generator, recorder, appCtx.Options.StrictClassNames)
}

// BuildExecutor はレンダリング用の Manim 実行環境を構築します。
func BuildExecutor(appCtx *AppContext, mediaDir string) *manim.Executor {
	return manim.NewExecutor(mediaDir, appCtx.Options.Quality, appCtx.Options.RenderTimeout)
}

// BuildMediaAssembler は最終動画の組み立てを担当するアセンブラを構築します。
func BuildMediaAssembler(outputDir string) *media.FFmpegAssembler {
	return media.NewFFmpegAssembler(outputDir)
}
