// Package debug は生成過程の生データを後追い調査用に書き残すのだ。
// 記録は常にベストエフォート——保存に失敗してもパイプラインは止めないのだよ。
package debug

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Recorder はモデルの生応答やエラーメッセージをファイルに永続化するのだ。
type Recorder struct {
	dir string
}

// NewRecorder は記録先ディレクトリを作ってレコーダを返すのだ。
func NewRecorder(dir string) *Recorder {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("デバッグディレクトリを作れなかったのだ。記録は諦めるのだ", "dir", dir, "error", err)
	}
	return &Recorder{dir: dir}
}

// Dir は記録先ディレクトリを返すのだ。
func (r *Recorder) Dir() string {
	return r.dir
}

// SaveSceneResponse はシーンコード生成の生応答を保存するのだ。
func (r *Recorder) SaveSceneResponse(sceneNumber int, response string) {
	r.save(fmt.Sprintf("scene_%d_response_raw.txt", sceneNumber), response)
}

// SaveSceneFixResponse はシーン修正の生応答を保存するのだ。
func (r *Recorder) SaveSceneFixResponse(sceneNumber, attempt int, response string) {
	r.save(fmt.Sprintf("scene_%d_fix_response_%d.txt", sceneNumber, attempt), response)
}

// SaveSceneError はシーンの失敗時のエラーメッセージを保存するのだ。
func (r *Recorder) SaveSceneError(sceneNumber int, errorMessage string) {
	r.save(fmt.Sprintf("scene_%d_error.txt", sceneNumber), errorMessage)
}

// SaveGlobalFixResponse は全体修復の生応答を保存するのだ。
func (r *Recorder) SaveGlobalFixResponse(attempt int, response string) {
	r.save(fmt.Sprintf("code_fixing_response_raw_%d.txt", attempt), response)
}

// SaveRenderError は結合ファイルのレンダリング失敗を保存するのだ。
func (r *Recorder) SaveRenderError(attempt int, errorMessage string) {
	r.save(fmt.Sprintf("render_error_%d.txt", attempt), errorMessage)
}

// SaveCombinedCode は結合直後のコード全文を保存するのだ。
func (r *Recorder) SaveCombinedCode(code string) {
	r.save("combined_code.py", code)
}

// SaveStatus はどのシーンが成功・失敗したかの一覧を保存するのだ。
func (r *Recorder) SaveStatus(successful, failed []int) {
	var sb strings.Builder
	sb.WriteString("successful scenes: ")
	sb.WriteString(joinInts(successful))
	sb.WriteString("\nfailed scenes: ")
	sb.WriteString(joinInts(failed))
	sb.WriteString("\n")
	r.save("scene_status.txt", sb.String())
}

func (r *Recorder) save(name, content string) {
	path := filepath.Join(r.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		slog.Warn("デバッグ情報の保存に失敗したのだ", "path", path, "error", err)
	}
}

func joinInts(nums []int) string {
	if len(nums) == 0 {
		return "(none)"
	}
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ", ")
}
