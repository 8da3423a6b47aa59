// Package ai はテキスト生成モデルとの通信を1つの契約に閉じ込めるのだ。
// プロバイダ差（Gemini / Anthropic）はこのパッケージの内側だけの事情にするのだよ。
package ai

import "context"

// Request は1回のテキスト生成依頼なのだ。
type Request struct {
	// Prompt はモデルに渡す完成済みのプロンプト全文なのだ。
	Prompt string
	// MaxTokens は応答の上限トークン数の希望値なのだ。
	// プロバイダがパラメータとして受け取らない場合は助言扱いになるのだ。
	MaxTokens int
}

// Generator はテキスト生成モデルの契約なのだ。
// テストではこのインターフェースを偽物に差し替えるのだ。
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}
