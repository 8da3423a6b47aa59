package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/shouni/go-utils/envutil"
)

// デフォルト値の定義なのだ
const (
	DefaultProvider       = "gemini"
	DefaultGeminiModel    = "gemini-3-flash-preview"
	DefaultAnthropicModel = "claude-3-7-sonnet-20250219"

	DefaultOutputDir = "outputs"
	DefaultQuality   = "medium" // manim の -qm に対応するのだ
	DefaultLang      = "en"     // ナレーション音声の言語コードなのだ

	DefaultRenderTimeout        = 60 * time.Second
	DefaultMaxRenderAttempts    = 5
	DefaultMaxSyntaxFixAttempts = 3
	DefaultMaxGlobalFixAttempts = 5

	DefaultModelMaxRetries = 3
	DefaultModelRetryDelay = 5 * time.Second
	DefaultRateInterval    = 2 * time.Second

	// フェーズごとの応答トークン上限なのだ。対応しないプロバイダでは助言扱いになるのだ
	PlanMaxTokens     = 4000
	SceneMaxTokens    = 8000
	SceneFixMaxTokens = 10000
	FullFixMaxTokens  = 32000
)

// Config はアプリケーション全体の環境設定（APIキーやモデル指定）を保持する構造体なのだ。
type Config struct {
	GeminiAPIKey    string
	AnthropicAPIKey string
	GeminiModel     string
	AnthropicModel  string

	Options GenerateOptions
}

// LoadConfig は環境変数から設定を読み込み、構造体を返すのだ！
// .env ファイルがあれば先に取り込むのだ（無くてもエラーにはしないのだ）。
func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		GeminiAPIKey:    envutil.GetEnv("GEMINI_API_KEY", ""),
		AnthropicAPIKey: envutil.GetEnv("ANTHROPIC_API_KEY", ""),
		GeminiModel:     envutil.GetEnv("GEMINI_MODEL", DefaultGeminiModel),
		AnthropicModel:  envutil.GetEnv("ANTHROPIC_MODEL", DefaultAnthropicModel),
	}
	return cfg
}

// ModelFor は選択中のプロバイダに対応するモデル名を返すのだ。
// --model での明示指定があればそちらを優先するのだよ。
func (c *Config) ModelFor(provider string) string {
	if c.Options.Model != "" {
		return c.Options.Model
	}
	if provider == "anthropic" {
		return c.AnthropicModel
	}
	return c.GeminiModel
}

// GenerateOptions は CLI フラグから渡される実行時のパラメータなのだ。
type GenerateOptions struct {
	// 生成対象
	TheoremName        string // 引数1: 説明する定理の名前
	TheoremDescription string // 引数2: 定理の説明文

	// 出力設定
	OutputDir  string // --output-dir
	OutputFile string // --output-file: 最終動画の保存先（ローカル or gs://...）
	Quality    string // --quality: low / medium / high
	Lang       string // --lang: ナレーション言語

	// AI挙動設定
	Provider string // --provider: gemini / anthropic
	Model    string // --model: プロバイダ既定を上書きするモデル名

	// 修復ループ制御
	RenderTimeout        time.Duration // --render-timeout
	MaxRenderAttempts    int           // --max-render-attempts
	MaxSyntaxFixAttempts int           // --max-syntax-fix-attempts
	MaxGlobalFixAttempts int           // --max-global-fix-attempts
	StrictClassNames     bool          // --strict-class-names: 修正応答のクラス名不一致を拒否する

	// assemble サブコマンド用の入力
	VideoListFile string // --video-list
	AudioMapFile  string // --audio-map
}
