// Package media は ffmpeg / ffprobe を外部プロセスとして起動し、
// シーン動画とナレーション音声を1本の最終動画に束ねるのだ。
// 動画が音声より短いときは最終フレームを静止画として引き伸ばし、
// ナレーションが途中で切れないように尺を合わせるのだよ。
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Assembler は動画・音声セグメントの結合を行う契約なのだ。
type Assembler interface {
	Assemble(ctx context.Context, videoFiles []string, audioFiles map[int]string, outputPath string) (string, error)
}

// FFmpegAssembler は ffmpeg のプロセス起動による標準実装なのだ。
type FFmpegAssembler struct {
	outputDir string
}

// videoProps は freeze フレーム生成時に合わせるべきストリーム特性です。
type videoProps struct {
	Width  int
	Height int
	FPS    float64
	Codec  string
}

// NewFFmpegAssembler は出力ディレクトリを指定してアセンブラを生成するのだ。
func NewFFmpegAssembler(outputDir string) *FFmpegAssembler {
	return &FFmpegAssembler{outputDir: outputDir}
}

// Duration はメディアファイルの長さを秒で返すのだ。取得できなければ 0 なのだ。
func (a *FFmpegAssembler) Duration(ctx context.Context, path string) float64 {
	out, err := runCapture(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		slog.Error("メディアの長さを取得できなかったのだ", "path", path, "error", err)
		return 0
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		slog.Error("ffprobe の出力を数値にできなかったのだ", "path", path, "output", out)
		return 0
	}
	return d
}

// probeVideo は解像度・fps・コーデックを調べるのだ。失敗時は無難な既定値に倒すのだ。
func (a *FFmpegAssembler) probeVideo(ctx context.Context, path string) videoProps {
	props := videoProps{Width: 1280, Height: 720, FPS: 30, Codec: "h264"}

	out, err := runCapture(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,codec_name",
		"-of", "json",
		path,
	)
	if err != nil {
		slog.Warn("動画特性の取得に失敗したので既定値を使うのだ", "path", path, "error", err)
		return props
	}

	var parsed struct {
		Streams []struct {
			Width      int    `json:"width"`
			Height     int    `json:"height"`
			RFrameRate string `json:"r_frame_rate"`
			CodecName  string `json:"codec_name"`
		} `json:"streams"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil || len(parsed.Streams) == 0 {
		return props
	}

	s := parsed.Streams[0]
	if s.Width > 0 {
		props.Width = s.Width
	}
	if s.Height > 0 {
		props.Height = s.Height
	}
	if s.CodecName != "" {
		props.Codec = s.CodecName
	}
	if fps := parseFrameRate(s.RFrameRate); fps > 0 {
		props.FPS = fps
	}
	return props
}

// parseFrameRate は "30000/1001" のような分数表記の fps を実数に変換します。
func parseFrameRate(raw string) float64 {
	if raw == "" {
		return 0
	}
	if num, den, ok := strings.Cut(raw, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0
		}
		return n / d
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return f
}

// ExtendVideo は動画の末尾を最終フレームの静止画で引き伸ばし、
// target 秒に到達させるのだ。すでに十分長ければそのままコピーするのだ。
func (a *FFmpegAssembler) ExtendVideo(ctx context.Context, videoPath string, target float64, outputPath string) error {
	current := a.Duration(ctx, videoPath)
	if current >= target {
		slog.Info("尺が足りているのでコピーだけするのだ", "video", videoPath, "duration", current)
		_, err := runCapture(ctx, "ffmpeg", "-i", videoPath, "-c", "copy", "-y", outputPath)
		return err
	}

	freeze := target - current
	slog.Info("最終フレームで尺を引き伸ばすのだ", "video", videoPath, "freeze_seconds", freeze)

	props := a.probeVideo(ctx, videoPath)

	tempDir, err := os.MkdirTemp("", "freeze-")
	if err != nil {
		return fmt.Errorf("作業ディレクトリを作れなかったのだ: %w", err)
	}
	defer os.RemoveAll(tempDir)

	// 1. 最終フレームを1枚切り出すのだ。末尾シークが失敗する動画もあるので
	//    先頭フレームへのフォールバックを持たせておくのだ
	lastFrame := filepath.Join(tempDir, "last_frame.png")
	_, err = runCapture(ctx, "ffmpeg",
		"-i", videoPath,
		"-ss", fmt.Sprintf("%f", max(0, current-0.1)),
		"-vframes", "1",
		"-y", lastFrame,
	)
	if err != nil {
		slog.Warn("末尾シークでの切り出しに失敗したので単純な方法で再試行するのだ")
		if _, err := runCapture(ctx, "ffmpeg", "-i", videoPath, "-vframes", "1", "-y", lastFrame); err != nil {
			return err
		}
	}

	// 2. 静止画をループさせて freeze 秒ぶんの動画にするのだ
	freezeVideo := filepath.Join(tempDir, "freeze.mp4")
	if _, err := runCapture(ctx, "ffmpeg",
		"-loop", "1",
		"-i", lastFrame,
		"-t", fmt.Sprintf("%f", freeze),
		"-vf", fmt.Sprintf("fps=%g", props.FPS),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-preset", "medium",
		"-b:v", "5000k",
		"-y", freezeVideo,
	); err != nil {
		return err
	}

	// 3. 無音トラックを付けて concat 時のストリーム構成を揃えるのだ
	silence := filepath.Join(tempDir, "silence.mp3")
	if _, err := runCapture(ctx, "ffmpeg",
		"-f", "lavfi",
		"-i", "anullsrc=r=44100:cl=stereo",
		"-t", fmt.Sprintf("%f", freeze),
		"-y", silence,
	); err != nil {
		return err
	}

	freezeWithAudio := filepath.Join(tempDir, "freeze_with_audio.mp4")
	if _, err := runCapture(ctx, "ffmpeg",
		"-i", freezeVideo,
		"-i", silence,
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		"-y", freezeWithAudio,
	); err != nil {
		return err
	}

	// 4. 元動画と freeze クリップを結合するのだ
	concatFile := filepath.Join(tempDir, "concat.txt")
	if err := WriteConcatList(concatFile, []string{videoPath, freezeWithAudio}); err != nil {
		return err
	}

	_, err = runCapture(ctx, "ffmpeg",
		"-f", "concat",
		"-safe", "0",
		"-i", concatFile,
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "18",
		"-c:a", "aac",
		"-b:a", "192k",
		"-y", outputPath,
	)
	return err
}

// Assemble は順序付きの動画リストとセグメント番号キーの音声マップから最終動画を作るのだ。
// 各セグメントに音声を合わせてから、テキストのファイルリスト方式で全体を結合するのだ。
func (a *FFmpegAssembler) Assemble(ctx context.Context, videoFiles []string, audioFiles map[int]string, outputPath string) (string, error) {
	if len(videoFiles) == 0 {
		return "", fmt.Errorf("結合する動画ファイルが1つもないのだ")
	}

	if outputPath == "" {
		outputPath = filepath.Join(a.outputDir, "theorem_explanation.mp4")
	}

	slog.Info("最終動画の組み立てを開始するのだ",
		"videos", len(videoFiles), "audios", len(audioFiles), "output", outputPath)

	tempDir := filepath.Join(a.outputDir, "temp")
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", fmt.Errorf("作業ディレクトリを作れなかったのだ: %w", err)
	}
	defer os.RemoveAll(tempDir)

	var segments []string
	for i, videoFile := range videoFiles {
		segment, err := a.buildSegment(ctx, i, videoFile, audioFiles[i], tempDir)
		if err != nil {
			return "", err
		}
		segments = append(segments, segment)
	}

	listFile := filepath.Join(tempDir, "ffmpeg_file_list.txt")
	if err := WriteConcatList(listFile, segments); err != nil {
		return "", err
	}

	slog.Info("全セグメントを結合するのだ", "segments", len(segments))

	if _, err := runCapture(ctx, "ffmpeg",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c:v", "libx264",
		"-crf", "18",
		"-preset", "medium",
		"-c:a", "aac",
		"-b:a", "192k",
		"-y", outputPath,
	); err != nil {
		return "", err
	}

	slog.Info("最終動画が完成したのだ！", "path", outputPath)
	return outputPath, nil
}

// buildSegment は1セグメントぶんの動画と音声を尺合わせ込みで多重化するのだ。
func (a *FFmpegAssembler) buildSegment(ctx context.Context, index int, videoFile, audioFile, tempDir string) (string, error) {
	if audioFile == "" {
		// 音声なしセグメントも後段の concat に備えて同じエンコード設定に揃えるのだ
		segment := filepath.Join(tempDir, fmt.Sprintf("segment_%d_no_audio.mp4", index))
		_, err := runCapture(ctx, "ffmpeg",
			"-i", videoFile,
			"-c:v", "libx264",
			"-crf", "18",
			"-preset", "medium",
			"-c:a", "aac",
			"-b:a", "192k",
			"-y", segment,
		)
		return segment, err
	}

	audioDuration := a.Duration(ctx, audioFile)
	videoDuration := a.Duration(ctx, videoFile)
	slog.Info("セグメントの尺を確認するのだ",
		"segment", index, "video_seconds", videoDuration, "audio_seconds", audioDuration)

	videoToUse := videoFile
	if videoDuration < audioDuration {
		// ナレーションが収まりきるよう半秒の余裕を足して引き伸ばすのだ
		extended := filepath.Join(tempDir, fmt.Sprintf("extended_video_%d.mp4", index))
		if err := a.ExtendVideo(ctx, videoFile, audioDuration+0.5, extended); err != nil {
			return "", err
		}
		videoToUse = extended
	}

	segment := filepath.Join(tempDir, fmt.Sprintf("segment_%d_with_audio.mp4", index))
	_, err := runCapture(ctx, "ffmpeg",
		"-i", videoToUse,
		"-i", audioFile,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "libx264",
		"-crf", "18",
		"-preset", "medium",
		"-c:a", "aac",
		"-b:a", "192k",
		"-y", segment,
	)
	return segment, err
}

// WriteConcatList は ffmpeg の concat demuxer 用のファイルリストを書き出します。
func WriteConcatList(path string, files []string) error {
	var sb strings.Builder
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			abs = f
		}
		fmt.Fprintf(&sb, "file '%s'\n", abs)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("ファイルリストを書き出せなかったのだ: %w", err)
	}
	return nil
}

// runCapture は外部コマンドを実行し stdout を返すのだ。
// 失敗時はツールの stderr を加工せずそのままエラーに載せるのだ——
// 運用者が本物の診断テキストを見られることが何より大事なのだよ。
func runCapture(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return "", fmt.Errorf("%s が失敗したのだ: %s", name, stderr.String())
		}
		return "", fmt.Errorf("%s の実行に失敗したのだ: %w", name, err)
	}
	return stdout.String(), nil
}
