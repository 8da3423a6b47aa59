package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-theorem-kit/internal/config"
	"github.com/shouni/go-theorem-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// planCmd は、シーン計画の生成（JSON出力）のみを実行するのだ。
var planCmd = &cobra.Command{
	Use:   "plan <theorem-name> <theorem-description>",
	Short: "シーン計画（JSON）のみを生成して保存するのだ。",
	Long: `定理の名前と説明文からシーン計画（タイトル、目的、描写、レイアウト、ナレーション）を
JSON形式で出力するのだ。コード生成とレンダリングは行わないのだよ。`,
	Args: cobra.ExactArgs(2),
	RunE: planCommand,
}

func init() {
}

func planCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	opts.TheoremName = args[0]
	opts.TheoremDescription = args[1]

	cfg := config.LoadConfig()
	cfg.Options = opts

	slog.Info("シーン計画モードを起動するのだ！",
		"theorem", opts.TheoremName,
		"provider", opts.Provider,
		"model", cfg.ModelFor(opts.Provider))

	if err := pipeline.ExecutePlanOnly(ctx, cfg); err != nil {
		return fmt.Errorf("シーン計画の生成中にエラーが発生したのだ: %w", err)
	}

	return nil
}
