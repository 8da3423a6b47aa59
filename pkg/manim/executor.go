// Package manim は、外部プロセスとしての Manim と Python 構文チェッカを呼び出す
// 薄い接着層なのだ。レンダリングの中身（アニメーション演算や動画コーデック）には
// 一切関知せず、終了コードと標準出力の成果物パスだけを契約として扱うのだよ。
package manim

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/shouni/go-theorem-kit/pkg/parser"
)

// Runner はシーン単位の検証・レンダリングを行う外部コラボレータの契約なのだ。
// テストではこのインターフェースを偽物に差し替えるのだ。
type Runner interface {
	// CheckSyntax は構文だけを高速に検証する。失敗時は stderr を含むエラーを返すのだ。
	CheckSyntax(ctx context.Context, scriptPath string) error
	// Render は1つのシーンクラスをレンダリングし、出力動画のパスを返すのだ。
	Render(ctx context.Context, scriptPath, sceneName string) (string, error)
}

// outputFileRegex は Manim の標準出力から成果物のパスを拾うパターンです。
var outputFileRegex = regexp.MustCompile(`File written to: (.*\.mp4)`)

// Executor は py_compile と manim CLI を起動する標準実装なのだ。
type Executor struct {
	mediaDir string
	quality  string
	timeout  time.Duration
}

// NewExecutor は Executor を生成するのだ。quality は low / medium / high なのだ。
func NewExecutor(mediaDir, quality string, timeout time.Duration) *Executor {
	return &Executor{
		mediaDir: mediaDir,
		quality:  quality,
		timeout:  timeout,
	}
}

// CheckSyntax は python -m py_compile でレンダリング前の安価な構文検証を行うのだ。
func (e *Executor) CheckSyntax(ctx context.Context, scriptPath string) error {
	cmd := exec.CommandContext(ctx, "python", "-m", "py_compile", scriptPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("%s", stderr.String())
		}
		return fmt.Errorf("構文チェックの起動に失敗したのだ: %w", err)
	}
	return nil
}

// Render は1シーンをタイムアウト付きでレンダリングするのだ。
// タイムアウトはプロセスグループごと SIGKILL で確実に回収する——
// 親プロセスだけ殺して ffmpeg の子を生かしたままにはしないのだ。
// タイムアウトも非ゼロ終了も同じ「レンダリング失敗」として数えるのだ。
func (e *Executor) Render(ctx context.Context, scriptPath, sceneName string) (string, error) {
	renderCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		renderCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(renderCtx, "manim",
		QualityFlag(e.quality),
		scriptPath,
		sceneName,
		"--disable_caching",
		"--media_dir", e.mediaDir,
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Info("シーンのレンダリングを開始するのだ", "scene", sceneName, "script", scriptPath)

	if err := cmd.Run(); err != nil {
		if renderCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("レンダリングが%vでタイムアウトしたのだ: %s\n%s",
				e.timeout, stdout.String(), stderr.String())
		}
		return "", fmt.Errorf("%s\n%s", stdout.String(), stderr.String())
	}

	if m := outputFileRegex.FindStringSubmatch(stdout.String()); m != nil {
		return strings.TrimSpace(m[1]), nil
	}

	// 標準出力にパスがなくても成功はしている。メディアディレクトリを直接探すのだ
	if found := e.findRenderedVideo(scriptPath, sceneName); found != "" {
		slog.Info("標準出力にパスがなかったのでメディアディレクトリから発見したのだ", "path", found)
		return found, nil
	}

	slog.Warn("レンダリングは成功したが成果物パスを特定できなかったのだ", "scene", sceneName)
	return "", nil
}

// ExecuteFile は結合済みファイル中の全シーンクラスを宣言順にレンダリングするのだ。
// 1つでも失敗したらその時点のエラーを返すのだ（全体修復ループの入力になるのだ）。
func (e *Executor) ExecuteFile(ctx context.Context, scriptPath, code string) ([]string, error) {
	sceneNames := ExtractSceneClasses(code)
	if len(sceneNames) == 0 {
		return nil, fmt.Errorf("レンダリング対象のシーンクラスが見つからないのだ")
	}

	slog.Info("結合ファイルのレンダリングを開始するのだ",
		"scenes", len(sceneNames), "script", scriptPath)

	var outputs []string
	for _, name := range sceneNames {
		outPath, err := e.Render(ctx, scriptPath, name)
		if err != nil {
			return nil, err
		}
		if outPath != "" {
			outputs = append(outputs, outPath)
		}
	}
	return outputs, nil
}

// findRenderedVideo は品質別ディレクトリ配下から成果物を探すフォールバックなのだ。
func (e *Executor) findRenderedVideo(scriptPath, sceneName string) string {
	base := strings.TrimSuffix(filepath.Base(scriptPath), ".py")

	candidate := filepath.Join(e.mediaDir, "videos", base, QualitySuffix(e.quality), sceneName+".mp4")
	if matches, err := filepath.Glob(candidate); err == nil && len(matches) > 0 {
		return matches[0]
	}

	// 指定品質で見つからなければ全品質を当たるのだ
	for _, suffix := range []string{"1080p60", "720p30", "480p15"} {
		pattern := filepath.Join(e.mediaDir, "videos", base, suffix, sceneName+".mp4")
		if matches, err := filepath.Glob(pattern); err == nil && len(matches) > 0 {
			return matches[0]
		}
	}
	return ""
}

// ExtractSceneClasses は Scene を継承するクラス名を宣言順に列挙します。
func ExtractSceneClasses(code string) []string {
	var names []string
	for _, m := range parser.SceneClassRegex.FindAllStringSubmatch(code, -1) {
		names = append(names, m[1])
	}
	return names
}

// QualityFlag は品質設定を manim CLI のフラグに変換します。未知の値は medium 扱いです。
func QualityFlag(quality string) string {
	switch quality {
	case "low":
		return "-ql"
	case "high":
		return "-qh"
	default:
		return "-qm"
	}
}

// QualitySuffix は品質設定に対応する出力ディレクトリ名を返します。
func QualitySuffix(quality string) string {
	switch quality {
	case "low":
		return "480p15"
	case "high":
		return "1080p60"
	default:
		return "720p30"
	}
}
