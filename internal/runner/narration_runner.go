package runner

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/shouni/go-theorem-kit/pkg/domain"
	"github.com/shouni/go-theorem-kit/pkg/tts"
)

// NarrationRunner は、シーン計画のナレーション台本を音声ファイルに変換する構造体なのだ。
// 音声はあくまで添え物なので、合成の失敗で動画生成全体を道連れにはしないのだ。
type NarrationRunner struct {
	synth    tts.Synthesizer
	audioDir string
}

// NewNarrationRunner は NarrationRunner の新しいインスタンスを生成して返すのだ。
func NewNarrationRunner(synth tts.Synthesizer, audioDir string) *NarrationRunner {
	return &NarrationRunner{synth: synth, audioDir: audioDir}
}

// Run は成功したシーンのナレーションを順に合成し、
// シーン番号をキーとする音声ファイルのマップを返すのだ。
// 台本が空のシーンと合成に失敗したシーンはマップに現れないのだ。
func (nr *NarrationRunner) Run(ctx context.Context, results []domain.SceneResult) map[int]string {
	audioFiles := make(map[int]string)

	for _, res := range results {
		if !res.Succeeded() {
			continue
		}

		text := cleanNarration(res.Descriptor.Narration)
		if text == "" {
			slog.Info("ナレーション台本が空なのでスキップするのだ", "scene", res.Descriptor.Position)
			continue
		}

		outputPath := filepath.Join(nr.audioDir, fmt.Sprintf("scene_%02d.mp3", res.Descriptor.Position))
		if err := nr.synth.Synthesize(ctx, text, outputPath); err != nil {
			slog.Warn("ナレーション合成に失敗したのだ。このシーンは無音になるのだ",
				"scene", res.Descriptor.Position, "error", err)
			continue
		}
		audioFiles[res.Descriptor.Position] = outputPath
	}

	slog.Info("ナレーション合成が完了したのだ", "synthesized", len(audioFiles))
	return audioFiles
}

// cleanNarration は台本を囲む引用符を剥がして前後の空白を落とします。
func cleanNarration(text string) string {
	t := strings.TrimSpace(text)
	t = strings.Trim(t, `"'`)
	return strings.TrimSpace(t)
}
