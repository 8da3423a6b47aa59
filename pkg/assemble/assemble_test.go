package assemble

import (
	"fmt"
	"strings"
	"testing"

	"github.com/shouni/go-theorem-kit/pkg/domain"
)

func sceneResult(position int, code string) domain.SceneResult {
	return domain.SceneResult{
		Descriptor: domain.SceneDescriptor{Position: position, Title: fmt.Sprintf("Scene %d", position)},
		Code:       code,
	}
}

func TestMerge(t *testing.T) {
	t.Run("成功シーンが位置順のまま1ファイルになるのだ", func(t *testing.T) {
		results := []domain.SceneResult{
			sceneResult(1, "class A_Scene1(Scene):\n    def construct(self):\n        pass"),
			sceneResult(2, "class B_Scene2(Scene):\n    def construct(self):\n        pass"),
		}

		merged, err := Merge(results)
		if err != nil {
			t.Fatalf("結合に失敗したのだ: %v", err)
		}

		if !strings.HasPrefix(merged, "from manim import *") {
			t.Errorf("共通ヘッダが先頭にないのだ: %q", merged)
		}
		for _, core := range []string{"import numpy as np", "import math", "import random"} {
			if !strings.Contains(merged, core) {
				t.Errorf("共通import %q が入っていないのだ", core)
			}
		}

		posA := strings.Index(merged, "class A_Scene1")
		posB := strings.Index(merged, "class B_Scene2")
		if posA < 0 || posB < 0 || posA > posB {
			t.Errorf("クラスの順序が崩れているのだ: A=%d, B=%d", posA, posB)
		}

		if !strings.Contains(merged, `if __name__ == "__main__":`) {
			t.Error("実行ガードが末尾にないのだ")
		}
	})

	t.Run("失敗シーンは結合から除外されるのだ", func(t *testing.T) {
		results := []domain.SceneResult{
			sceneResult(1, "class A_Scene1(Scene):\n    pass"),
			{Descriptor: domain.SceneDescriptor{Position: 2}, Err: fmt.Errorf("render failed")},
			sceneResult(3, "class C_Scene3(Scene):\n    pass"),
		}

		merged, err := Merge(results)
		if err != nil {
			t.Fatalf("結合に失敗したのだ: %v", err)
		}
		if strings.Contains(merged, "Scene2") {
			t.Errorf("失敗シーンが混入しているのだ: %q", merged)
		}
		if !strings.Contains(merged, "class A_Scene1") || !strings.Contains(merged, "class C_Scene3") {
			t.Error("成功シーンが欠けているのだ")
		}
	})

	t.Run("各ユニットの追加importは和集合になるのだ", func(t *testing.T) {
		results := []domain.SceneResult{
			sceneResult(1, "import itertools\n\nclass A_Scene1(Scene):\n    pass"),
			sceneResult(2, "import itertools\nfrom fractions import Fraction\n\nclass B_Scene2(Scene):\n    pass"),
		}

		merged, err := Merge(results)
		if err != nil {
			t.Fatalf("結合に失敗したのだ: %v", err)
		}
		if strings.Count(merged, "import itertools") != 1 {
			t.Errorf("importが重複しているのだ: %q", merged)
		}
		if !strings.Contains(merged, "from fractions import Fraction") {
			t.Error("固有のimportが失われているのだ")
		}
	})

	t.Run("クラス名の衝突は決定論的に拒否されるのだ", func(t *testing.T) {
		results := []domain.SceneResult{
			sceneResult(1, "class Dup_Scene1(Scene):\n    pass"),
			sceneResult(2, "class Dup_Scene1(Scene):\n    pass"),
		}

		if _, err := Merge(results); err == nil {
			t.Fatal("エラーになるはずなのだ")
		}
	})

	t.Run("成功シーンがゼロならエラーなのだ", func(t *testing.T) {
		results := []domain.SceneResult{
			{Descriptor: domain.SceneDescriptor{Position: 1}, Err: fmt.Errorf("boom")},
		}
		if _, err := Merge(results); err == nil {
			t.Fatal("エラーになるはずなのだ")
		}
	})
}
