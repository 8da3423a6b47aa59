package codefix

import (
	"strings"
	"testing"
)

const combinedSample = `from manim import *
import numpy as np

class Intro_Scene1(Scene):
    def construct(self):
        title = Text("Intro")
        self.play(Write(title))

class Proof_Scene2(Scene):
    def construct(self):
        self.wait(1)
`

func TestStandalone(t *testing.T) {
	t.Run("単体検証用のハーネスに包まれるのだ", func(t *testing.T) {
		got := Standalone("class A_Scene1(Scene):\n    pass")
		if !strings.HasPrefix(got, "from manim import *") {
			t.Errorf("ヘッダが先頭にないのだ: %q", got)
		}
		if !strings.Contains(got, "config.frame_height = 8") || !strings.Contains(got, "config.frame_width = 14") {
			t.Error("フレーム寸法の固定が入っていないのだ")
		}
		if !strings.Contains(got, `if __name__ == "__main__":`) {
			t.Error("実行ガードが入っていないのだ")
		}
	})
}

func TestExtractClassBlock(t *testing.T) {
	t.Run("指定クラスだけが切り出されるのだ", func(t *testing.T) {
		block := ExtractClassBlock(combinedSample, "Intro_Scene1")
		if !strings.Contains(block, "class Intro_Scene1(Scene):") {
			t.Fatalf("対象クラスが含まれていないのだ: %q", block)
		}
		if strings.Contains(block, "Proof_Scene2") {
			t.Errorf("別のクラスが混入しているのだ: %q", block)
		}
	})

	t.Run("トップレベルのヘルパー関数も一緒に運ぶのだ", func(t *testing.T) {
		code := "def helper():\n    return 1\n\nclass A_Scene1(Scene):\n    def construct(self):\n        helper()\n"
		block := ExtractClassBlock(code, "A_Scene1")
		if !strings.Contains(block, "def helper():") {
			t.Errorf("ヘルパー関数が含まれていないのだ: %q", block)
		}
	})

	t.Run("存在しないクラスは空文字列なのだ", func(t *testing.T) {
		if block := ExtractClassBlock(combinedSample, "Missing_Scene9"); block != "" {
			t.Errorf("空文字列のはずなのだ: %q", block)
		}
	})
}

func TestExtractSceneUnit(t *testing.T) {
	t.Run("期待クラス名があればそのまま受理なのだ", func(t *testing.T) {
		fixed := "from manim import *\n\nclass Intro_Scene1(Scene):\n    def construct(self):\n        pass\n"
		unit := ExtractSceneUnit(fixed, "Intro_Scene1", true)
		if !strings.Contains(unit, "class Intro_Scene1(Scene):") {
			t.Errorf("期待クラスが取れていないのだ: %q", unit)
		}
	})

	t.Run("名前違いはリネームして受理するのだ", func(t *testing.T) {
		fixed := "from manim import *\n\nclass RenamedByModel(Scene):\n    def construct(self):\n        pass\n"
		unit := ExtractSceneUnit(fixed, "Intro_Scene1", true)
		if !strings.Contains(unit, "class Intro_Scene1(Scene):") {
			t.Errorf("期待名へのリネームがされていないのだ: %q", unit)
		}
		if strings.Contains(unit, "RenamedByModel") {
			t.Errorf("元の名前が残っているのだ: %q", unit)
		}
	})

	t.Run("厳格モードでは名前違いを拒否するのだ", func(t *testing.T) {
		fixed := "class RenamedByModel(Scene):\n    def construct(self):\n        pass\n"
		if unit := ExtractSceneUnit(fixed, "Intro_Scene1", false); unit != "" {
			t.Errorf("拒否されるはずなのだ: %q", unit)
		}
	})

	t.Run("クラスが見つからなければヘッダ行を剥がした残りに縮退するのだ", func(t *testing.T) {
		fixed := "from manim import *\nconfig.frame_height = 8\nself.play(something)"
		unit := ExtractSceneUnit(fixed, "Intro_Scene1", true)
		if strings.Contains(unit, "from manim import") || strings.Contains(unit, "config.") {
			t.Errorf("ヘッダ行が残っているのだ: %q", unit)
		}
		if !strings.Contains(unit, "self.play(something)") {
			t.Errorf("本体が失われているのだ: %q", unit)
		}
	})
}

func TestReplaceClassSource(t *testing.T) {
	t.Run("結合コード内の1クラスだけが差し替わるのだ", func(t *testing.T) {
		fixed := "class Intro_Scene1(Scene):\n    def construct(self):\n        self.play(Create(Circle()))"
		merged := ReplaceClassSource(combinedSample, "Intro_Scene1", fixed)

		if !strings.Contains(merged, "Create(Circle())") {
			t.Errorf("修正が反映されていないのだ: %q", merged)
		}
		if strings.Contains(merged, `Text("Intro")`) {
			t.Errorf("旧実装が残っているのだ: %q", merged)
		}
		if !strings.Contains(merged, "class Proof_Scene2(Scene):") {
			t.Errorf("無関係なクラスが壊れたのだ: %q", merged)
		}
	})

	t.Run("修正版の宣言名が違っても期待名に直して埋め込むのだ", func(t *testing.T) {
		fixed := "class WrongName(Scene):\n    def construct(self):\n        self.wait(2)"
		merged := ReplaceClassSource(combinedSample, "Intro_Scene1", fixed)
		if !strings.Contains(merged, "class Intro_Scene1(Scene):") || strings.Contains(merged, "WrongName") {
			t.Errorf("宣言名の矯正がされていないのだ: %q", merged)
		}
	})
}

func TestEnsureImports(t *testing.T) {
	t.Run("NameErrorに対応するimportが補われるのだ", func(t *testing.T) {
		code := "from manim import *\n\nclass A_Scene1(Scene):\n    pass"
		got := EnsureImports(code, "NameError: name 'math' is not defined")
		if !strings.Contains(got, "import math") {
			t.Errorf("mathが補われていないのだ: %q", got)
		}
	})

	t.Run("すでにあるimportは重複させないのだ", func(t *testing.T) {
		code := "from manim import *\nimport math\n\nclass A_Scene1(Scene):\n    pass"
		got := EnsureImports(code, "NameError: name 'math' is not defined")
		if strings.Count(got, "import math") != 1 {
			t.Errorf("importが重複しているのだ: %q", got)
		}
	})

	t.Run("関係ないエラーでは何も変えないのだ", func(t *testing.T) {
		code := "from manim import *"
		if got := EnsureImports(code, "AttributeError: something"); got != code {
			t.Errorf("変更されてしまったのだ: %q", got)
		}
	})
}
