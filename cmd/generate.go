package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-theorem-kit/internal/config"
	"github.com/shouni/go-theorem-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// generateCmd は、定理の説明動画を最初から最後まで生成するのだ。
var generateCmd = &cobra.Command{
	Use:   "generate <theorem-name> <theorem-description>",
	Short: "AIに定理の説明動画を生成させますなのだ。",
	Long: `定理の名前と説明文からシーン計画を立て、Manimコードの生成・検証・修復を経て、
ナレーション付きの1本の動画に組み立てるのだよ。`,
	Args: cobra.ExactArgs(2),
	RunE: generateCommand,
}

func init() {
}

func generateCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	opts.TheoremName = args[0]
	opts.TheoremDescription = args[1]

	// 環境変数等から基本設定をロードするのだ
	cfg := config.LoadConfig()
	cfg.Options = opts

	slog.Info("定理説明動画パイプラインを起動するのだ！",
		"theorem", opts.TheoremName,
		"provider", opts.Provider,
		"model", cfg.ModelFor(opts.Provider),
		"quality", opts.Quality)

	result := pipeline.Execute(ctx, cfg)
	if !result.Success {
		return fmt.Errorf("パイプライン実行中にエラーが発生したのだ: %s", result.Err)
	}

	slog.Info("すべての生成工程が完了したのだ！", "final_video", result.FinalVideo)
	return nil
}
