package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// SceneDescriptor は AI が立てた動画プランの1シーン分の設計情報なのだ。
// プラン生成の後は不変で、コード生成とナレーション合成の両方がこれを参照するのだよ。
type SceneDescriptor struct {
	Position    int    `json:"position"` // 1始まりの連番。プラン内での識別キーなのだ
	Title       string `json:"title"`
	Purpose     string `json:"purpose"`
	Description string `json:"description"`
	Layout      string `json:"layout"`
	Narration   string `json:"narration"`
}

// ScenePlan はシーンの並び順付きの設計図なのだ。挿入順＝ナレーション順＝映像順で、
// 以降のどの工程でも並び替えてはいけないのだ。
type ScenePlan []SceneDescriptor

// nonAlnumRegex はクラス名に使えない文字（英数字と空白以外）を取り除くためのパターンです。
var nonAlnumRegex = regexp.MustCompile(`[^a-zA-Z0-9\s]`)

// ClassName は、このシーンに対応する Manim シーンクラスの名前を決定論的に導出するのだ。
// タイトルと連番から常に同じ名前が得られるので、後からエラーメッセージに現れた
// クラス名を元のシーンに逆引きできるのだよ。
func (s SceneDescriptor) ClassName() string {
	return ClassName(s.Title, s.Position)
}

// ClassName はタイトルと連番からシーンクラス名を組み立てます。
// 記号を除去し、空白をアンダースコアに置き換え、先頭を大文字化します。
// タイトルが空の場合は Scene{n} 形式にフォールバックします。
func ClassName(title string, position int) string {
	clean := nonAlnumRegex.ReplaceAllString(title, "")
	clean = strings.TrimSpace(clean)
	clean = strings.ReplaceAll(clean, " ", "_")

	if clean == "" {
		return fmt.Sprintf("Scene%d", position)
	}

	runes := []rune(clean)
	if unicode.IsLower(runes[0]) {
		runes[0] = unicode.ToUpper(runes[0])
	}

	return fmt.Sprintf("%s_Scene%d", string(runes), position)
}
