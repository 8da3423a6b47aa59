// Package assemble は、独立に生成・検証された複数のシーンユニットを
// 1つの自己完結したManimファイルに束ねるのだ。
package assemble

import (
	"fmt"
	"strings"

	"github.com/shouni/go-theorem-kit/pkg/codefix"
	"github.com/shouni/go-theorem-kit/pkg/domain"
)

// coreImports はどのシーンでも前提にしてよい共通ヘッダなのだ。
// math と random は定番の NameError を未然に防ぐために常に入れておくのだ。
var coreImports = []string{
	"from manim import *",
	"import numpy as np",
	"import math",
	"import random",
}

// Merge は成功したシーンユニットを位置順のまま1ファイルに結合するのだ。
// import 行は全ユニットの和集合（重複排除）、クラス本体はシーン順に並べるのだ。
// ヘルパーコードのシーン間重複はあえて整理しない——各ユニットを自己完結のまま
// 保つ方が、賢い統合よりも壊れにくいのだよ。
// 成功シーンが1つもない場合と、宣言クラス名が衝突している場合はエラーを返すのだ。
func Merge(results []domain.SceneResult) (string, error) {
	successes := domain.SuccessfulCodes(results)
	if len(successes) == 0 {
		return "", fmt.Errorf("結合できる成功シーンが1つもないのだ")
	}

	imports := append([]string{}, coreImports...)
	seen := make(map[string]bool, len(imports))
	for _, imp := range imports {
		seen[imp] = true
	}

	// 各ユニットが持ち込んだ追加 import を出現順に取り込むのだ
	for _, res := range successes {
		for _, line := range strings.Split(res.Code, "\n") {
			t := strings.TrimSpace(line)
			if (strings.HasPrefix(t, "import ") || strings.HasPrefix(t, "from ")) &&
				!strings.Contains(t, "manim") && !seen[t] {
				imports = append(imports, t)
				seen[t] = true
			}
		}
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(imports, "\n"))
	sb.WriteString("\n\n")

	// クラス名の一意性は後段のエラールーティングの生命線なので、
	// 衝突は黙って片方を落とすのではなく決定論的に拒否するのだ
	declared := make(map[string]int)
	for _, res := range successes {
		for _, name := range codefix.DeclaredSceneClasses(res.Code) {
			if prev, ok := declared[name]; ok {
				return "", fmt.Errorf("シーンクラス名 %s がシーン%d とシーン%d で重複しているのだ",
					name, prev, res.Descriptor.Position)
			}
			declared[name] = res.Descriptor.Position
		}

		classBody := classOnward(res.Code)
		if classBody == "" {
			continue
		}
		sb.WriteString(classBody)
		sb.WriteString("\n\n")
	}

	sb.WriteString("if __name__ == \"__main__\":\n")
	sb.WriteString("    # This will be handled by the system\n")
	sb.WriteString("    pass\n")

	return sb.String(), nil
}

// classOnward は最初のクラス定義行から後ろをインデントを保ったまま返します。
func classOnward(code string) string {
	var lines []string
	inClass := false
	for _, line := range strings.Split(code, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "class ") {
			inClass = true
		}
		if inClass {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
