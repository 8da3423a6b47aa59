package media

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteConcatList(t *testing.T) {
	t.Run("concat demuxer形式のファイルリストが書き出されるのだ", func(t *testing.T) {
		dir := t.TempDir()
		listPath := filepath.Join(dir, "list.txt")

		if err := WriteConcatList(listPath, []string{
			filepath.Join(dir, "a.mp4"),
			filepath.Join(dir, "b.mp4"),
		}); err != nil {
			t.Fatalf("書き出しに失敗したのだ: %v", err)
		}

		data, err := os.ReadFile(listPath)
		if err != nil {
			t.Fatalf("読み込みに失敗したのだ: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 2 {
			t.Fatalf("行数が違うのだ: %v", lines)
		}
		for _, line := range lines {
			if !strings.HasPrefix(line, "file '") || !strings.HasSuffix(line, "'") {
				t.Errorf("file 'パス' 形式でないのだ: %q", line)
			}
		}
		if !strings.Contains(lines[0], "a.mp4") || !strings.Contains(lines[1], "b.mp4") {
			t.Errorf("動画の順序が崩れているのだ: %v", lines)
		}
	})

	t.Run("相対パスは絶対パスに直されるのだ", func(t *testing.T) {
		dir := t.TempDir()
		listPath := filepath.Join(dir, "list.txt")

		if err := WriteConcatList(listPath, []string{"relative.mp4"}); err != nil {
			t.Fatalf("書き出しに失敗したのだ: %v", err)
		}

		data, _ := os.ReadFile(listPath)
		content := string(data)
		if strings.Contains(content, "'relative.mp4'") {
			t.Errorf("相対パスのままなのだ: %q", content)
		}
		if !filepath.IsAbs(strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(content), "file '"), "'")) {
			t.Errorf("絶対パスになっていないのだ: %q", content)
		}
	})
}

func TestParseFrameRate(t *testing.T) {
	t.Run("分数表記と実数表記の両方を解釈するのだ", func(t *testing.T) {
		cases := []struct {
			raw  string
			want float64
		}{
			{"30/1", 30},
			{"30000/1001", 29.97002997002997},
			{"24", 24},
			{"", 0},
			{"abc", 0},
			{"30/0", 0},
		}
		for _, c := range cases {
			if got := parseFrameRate(c.raw); got != c.want {
				t.Errorf("%q の解釈が違うのだ。期待: %v, 実際: %v", c.raw, c.want, got)
			}
		}
	})
}
