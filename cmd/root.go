package cmd

import (
	"fmt"
	"os"

	"github.com/shouni/go-theorem-kit/internal/config"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"
)

// opts は addAppFlags で各フラグと紐付く実行時パラメータの置き場なのだ。
var opts config.GenerateOptions

// addAppFlags は、アプリケーション全般に適用されるグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	// --- 生成結果の出力設定 ---
	rootCmd.PersistentFlags().StringVarP(&opts.OutputDir, "output-dir", "d", config.DefaultOutputDir, "成果物一式を保存するディレクトリなのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.OutputFile, "output-file", "o", "", "最終動画の保存パス（ローカル or gs://...）なのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.Quality, "quality", "q", config.DefaultQuality, "レンダリング品質（low / medium / high）なのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.Lang, "lang", "l", config.DefaultLang, "ナレーション音声の言語コードなのだ。")

	// --- AIモデル・挙動設定 ---
	rootCmd.PersistentFlags().StringVarP(&opts.Provider, "provider", "p", config.DefaultProvider, "テキスト生成プロバイダ（gemini / anthropic）なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.Model, "model", "", "プロバイダ既定を上書きするモデル名なのだ。")

	// --- 修復ループ制御 ---
	rootCmd.PersistentFlags().DurationVar(&opts.RenderTimeout, "render-timeout", config.DefaultRenderTimeout, "1シーンのレンダリングのタイムアウトなのだ。")
	rootCmd.PersistentFlags().IntVar(&opts.MaxRenderAttempts, "max-render-attempts", config.DefaultMaxRenderAttempts, "シーンごとのレンダリング試行回数の上限なのだ。")
	rootCmd.PersistentFlags().IntVar(&opts.MaxSyntaxFixAttempts, "max-syntax-fix-attempts", config.DefaultMaxSyntaxFixAttempts, "シーンごとの構文修正回数の上限なのだ。")
	rootCmd.PersistentFlags().IntVar(&opts.MaxGlobalFixAttempts, "max-global-fix-attempts", config.DefaultMaxGlobalFixAttempts, "結合コードの修復試行回数の上限なのだ。")
	rootCmd.PersistentFlags().BoolVar(&opts.StrictClassNames, "strict-class-names", false, "修正応答のクラス名不一致をリネームせずに拒否するのだ。")

	// --- assemble サブコマンド固有設定 ---
	assembleCmd.Flags().StringVar(&opts.VideoListFile, "video-list", "", "結合する動画のリスト（1行1パス）なのだ。")
	assembleCmd.Flags().StringVar(&opts.AudioMapFile, "audio-map", "", "セグメント番号→音声パスのJSONマップなのだ。")
}

// preRunAppE は、コマンド実行前に環境変数などの必須チェックを行うのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	// assemble はAIを使わないのでAPIキーのチェックは不要なのだ
	if cmd.Name() == "assemble" {
		return nil
	}

	switch opts.Provider {
	case "anthropic":
		if os.Getenv("ANTHROPIC_API_KEY") == "" {
			return fmt.Errorf("エラー: 環境変数 ANTHROPIC_API_KEY が設定されていません。Anthropic APIの利用には必須なのだ")
		}
	default:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("エラー: 環境変数 GEMINI_API_KEY が設定されていません。Gemini APIの利用には必須なのだ")
		}
	}

	return nil
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	clibase.Execute(
		"ap-theorem-go",
		addAppFlags,
		preRunAppE,
		generateCmd,
		planCmd,
		assembleCmd,
	)
}
