package parser

import (
	"strings"
)

// ExtractCode は、AIの自由形式な応答テキストからPythonコード本体を取り出すのだ。
// 優先順位は (1) ```python タグ付きブロック → (2) タグなしブロック →
// (3) import 行から始まる行単位のヒューリスティック抽出、なのだ。
// どれにも当たらなければ空文字列を返すので、呼び出し側はそれを
// 「この生成は失敗」として扱うのだよ（やみくもな再試行はしないのだ）。
func ExtractCode(response string) string {
	// 方式1: ```python ブロック。複数あれば出現順に空行区切りで連結するのだ
	if code := joinFenceMatches(PythonFenceRegex.FindAllStringSubmatch(response, -1)); code != "" {
		return code
	}

	// 方式2: 言語タグなしの ``` ブロック
	if code := joinFenceMatches(GenericFenceRegex.FindAllStringSubmatch(response, -1)); code != "" {
		return code
	}

	// 方式3: フェンスが一切ない応答への最終手段。import 行を起点に
	// コードらしき行だけを拾い集めるのだ
	var codeLines []string
	inCode := false
	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "from manim import") || strings.HasPrefix(trimmed, "import manim") {
			inCode = true
			codeLines = append(codeLines, line)
			continue
		}
		if inCode && trimmed != "" && !strings.HasPrefix(line, "#") && !strings.HasPrefix(line, "```") {
			codeLines = append(codeLines, line)
		}
	}
	if len(codeLines) > 0 {
		return strings.Join(codeLines, "\n")
	}

	return ""
}

// joinFenceMatches はフェンスの中身を前後の空白を落として連結します。
func joinFenceMatches(matches [][]string) string {
	if len(matches) == 0 {
		return ""
	}
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		if body := strings.TrimSpace(m[1]); body != "" {
			parts = append(parts, body)
		}
	}
	return strings.Join(parts, "\n\n")
}
