// Package tts はナレーション音声合成の外部コラボレータへの接着層なのだ。
// 音声品質には関知せず、テキストを渡して音声ファイルが返る契約だけを扱うのだ。
package tts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
)

// Synthesizer はテキストから音声ファイルを作る契約なのだ。
type Synthesizer interface {
	Synthesize(ctx context.Context, text, outputPath string) error
}

// GTTSSynthesizer は gtts-cli を起動する標準実装なのだ。
type GTTSSynthesizer struct {
	lang string
}

// NewGTTSSynthesizer は言語コード（例: "en", "ja"）を指定して合成器を生成するのだ。
func NewGTTSSynthesizer(lang string) *GTTSSynthesizer {
	return &GTTSSynthesizer{lang: lang}
}

// Synthesize はナレーションテキストを音声ファイルに変換するのだ。
func (g *GTTSSynthesizer) Synthesize(ctx context.Context, text, outputPath string) error {
	cmd := exec.CommandContext(ctx, "gtts-cli", text,
		"--lang", g.lang,
		"--output", outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	slog.Info("ナレーション音声を合成するのだ", "lang", g.lang, "output", outputPath)

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("音声合成に失敗したのだ: %s", stderr.String())
		}
		return fmt.Errorf("音声合成の起動に失敗したのだ: %w", err)
	}
	return nil
}
