package parser

import (
	"strings"
	"testing"
)

func TestExtractCode(t *testing.T) {
	t.Run("pythonタグ付きブロックが最優先なのだ", func(t *testing.T) {
		response := "Here is the code:\n```python\nprint(1)\n```\nDone."
		if got := ExtractCode(response); got != "print(1)" {
			t.Errorf("抽出結果が違うのだ: %q", got)
		}
	})

	t.Run("pythonブロックが複数あれば空行区切りで連結するのだ", func(t *testing.T) {
		response := "```python\nprint(1)\n```\ntext\n```python\nprint(2)\n```"
		want := "print(1)\n\nprint(2)"
		if got := ExtractCode(response); got != want {
			t.Errorf("連結結果が違うのだ。期待: %q, 実際: %q", want, got)
		}
	})

	t.Run("タグなしブロックにもフォールバックするのだ", func(t *testing.T) {
		response := "explanation\n```\nfrom manim import *\n```"
		if got := ExtractCode(response); got != "from manim import *" {
			t.Errorf("抽出結果が違うのだ: %q", got)
		}
	})

	t.Run("フェンスがなければimport行起点のヒューリスティックなのだ", func(t *testing.T) {
		response := strings.Join([]string{
			"Sure, here is the scene.",
			"from manim import *",
			"class Intro_Scene1(Scene):",
			"    def construct(self):",
			"        pass",
		}, "\n")

		got := ExtractCode(response)
		if !strings.HasPrefix(got, "from manim import *") {
			t.Errorf("import行から始まっていないのだ: %q", got)
		}
		if !strings.Contains(got, "class Intro_Scene1(Scene):") {
			t.Errorf("クラス定義が含まれていないのだ: %q", got)
		}
		if strings.Contains(got, "Sure, here is") {
			t.Errorf("説明文が混入しているのだ: %q", got)
		}
	})

	t.Run("コードが見つからなければ空文字列なのだ", func(t *testing.T) {
		if got := ExtractCode("I cannot generate code for this."); got != "" {
			t.Errorf("空文字列のはずなのだ: %q", got)
		}
	})
}
