package parser

import (
	"log/slog"
	"strings"

	"github.com/shouni/go-theorem-kit/pkg/domain"
)

// planLabels はシーンブロック内で期待する5つのフィールドラベルなのだ。
var planLabels = []string{"Title:", "Purpose:", "Description:", "Layout:", "Narration:"}

// ParseScenePlan は、AIのプラン応答テキストを順序付きの SceneDescriptor 列に変換するのだ。
// マーカーが見つからない場合は応答全体をプランとみなして解析を続けるのだよ。
// 1つもシーンを取り出せなければ空のプランを返すので、呼び出し側はそれを
// ジョブレベルの失敗として扱う必要があるのだ（0シーン成功ではないのだ！）。
func ParseScenePlan(response string) domain.ScenePlan {
	sceneText := response
	if m := PlanRegex.FindStringSubmatch(response); m != nil {
		sceneText = m[1]
	} else {
		slog.Warn("プランのマーカーが見つからないのだ。応答全体を解析対象にするのだ")
	}

	var plan domain.ScenePlan
	for _, block := range SceneMarkerRegex.Split(sceneText, -1) {
		if strings.TrimSpace(block) == "" {
			continue
		}

		desc := domain.SceneDescriptor{
			Title:       fieldWindow(block, "Title:"),
			Purpose:     fieldWindow(block, "Purpose:"),
			Description: fieldWindow(block, "Description:"),
			Layout:      fieldWindow(block, "Layout:"),
			Narration:   fieldWindow(block, "Narration:"),
		}

		// 5フィールドすべて空のブロックはシーンとして数えないのだ
		if desc.Title == "" && desc.Purpose == "" && desc.Description == "" &&
			desc.Layout == "" && desc.Narration == "" {
			continue
		}

		desc.Position = len(plan) + 1
		plan = append(plan, desc)
	}

	return plan
}

// fieldWindow は「ラベルから次のラベルの直前まで」のテキスト窓を切り出します。
// ラベルが見つからなければ空文字列を返します。
func fieldWindow(block, label string) string {
	start := strings.Index(block, label)
	if start < 0 {
		return ""
	}

	rest := block[start+len(label):]
	end := len(rest)
	for _, other := range planLabels {
		if other == label {
			continue
		}
		if i := strings.Index(rest, other); i >= 0 && i < end {
			end = i
		}
	}

	return strings.TrimSpace(rest[:end])
}
