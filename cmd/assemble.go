package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-theorem-kit/internal/config"
	"github.com/shouni/go-theorem-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// assembleCmd は、既存のシーン動画と音声から最終動画の組み立てだけを実行するのだ。
var assembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "既存の動画・音声から最終動画を組み立てるのだ。",
	Long: `レンダリング済みのシーン動画リストと、合成済みのナレーション音声マップを受け取り、
尺合わせと結合だけを行うのだ。AIは呼ばないのだよ。`,
	RunE: assembleCommand,
}

func init() {
}

func assembleCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if opts.VideoListFile == "" {
		return fmt.Errorf("動画リスト（--video-list）を指定してほしいのだ")
	}

	cfg := config.LoadConfig()
	cfg.Options = opts

	slog.Info("組み立てモードを起動するのだ！",
		"video_list", opts.VideoListFile,
		"audio_map", opts.AudioMapFile,
		"output", opts.OutputFile)

	if err := pipeline.ExecuteAssembleOnly(ctx, cfg); err != nil {
		return fmt.Errorf("組み立て中にエラーが発生したのだ: %w", err)
	}

	slog.Info("最終動画の組み立てが完了したのだ！")
	return nil
}
