// Package prompt は、モデルに渡すプロンプトのテンプレートを埋め込みで抱えるのだ。
// テンプレート本文はバイナリに同梱するので、実行環境に余計なファイルは不要なのだよ。
package prompt

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/shouni/go-theorem-kit/pkg/domain"
)

//go:embed planner.md
var plannerPrompt string

//go:embed scene_code.md
var sceneCodePrompt string

//go:embed scene_fix.md
var sceneFixPrompt string

//go:embed full_fix.md
var fullFixPrompt string

var (
	plannerTmpl   = template.Must(template.New("planner").Parse(plannerPrompt))
	sceneCodeTmpl = template.Must(template.New("scene_code").Parse(sceneCodePrompt))
	sceneFixTmpl  = template.Must(template.New("scene_fix").Parse(sceneFixPrompt))
	fullFixTmpl   = template.Must(template.New("full_fix").Parse(fullFixPrompt))
)

// PlannerData はシーン計画プロンプトの埋め込み値なのだ。
type PlannerData struct {
	TheoremName        string
	TheoremDescription string
}

// SceneData は1シーンぶんのコード生成・修正プロンプトの埋め込み値なのだ。
type SceneData struct {
	TheoremName        string
	TheoremDescription string
	SceneNumber        int
	SceneTitle         string
	ScenePurpose       string
	SceneDescription   string
	SceneLayout        string
	SceneNarration     string
	ExpectedClass      string
	SceneCode          string
	ErrorMessage       string
}

// FullFixData は結合ファイル全体の修復プロンプトの埋め込み値なのだ。
type FullFixData struct {
	TheoremName  string
	ScenePlan    string
	ManimCode    string
	ErrorMessage string
}

// NewSceneData はシーン設計からプロンプト用のデータを組み立てるのだ。
func NewSceneData(theoremName, theoremDescription string, scene domain.SceneDescriptor) SceneData {
	return SceneData{
		TheoremName:        theoremName,
		TheoremDescription: theoremDescription,
		SceneNumber:        scene.Position,
		SceneTitle:         scene.Title,
		ScenePurpose:       scene.Purpose,
		SceneDescription:   scene.Description,
		SceneLayout:        scene.Layout,
		SceneNarration:     scene.Narration,
		ExpectedClass:      scene.ClassName(),
	}
}

// Planner はシーン計画プロンプトを描画するのだ。
func Planner(data PlannerData) (string, error) {
	return render(plannerTmpl, data)
}

// SceneCode は1シーンのコード生成プロンプトを描画するのだ。
func SceneCode(data SceneData) (string, error) {
	return render(sceneCodeTmpl, data)
}

// SceneFix は1シーンの修正プロンプトを描画するのだ。
func SceneFix(data SceneData) (string, error) {
	return render(sceneFixTmpl, data)
}

// FullFix は結合ファイル全体の修復プロンプトを描画するのだ。
func FullFix(data FullFixData) (string, error) {
	return render(fullFixTmpl, data)
}

// FormatScenePlan はシーン設計をプロンプト中のラベル付きテキストに整形します。
func FormatScenePlan(scene domain.SceneDescriptor) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", scene.Title)
	fmt.Fprintf(&sb, "Purpose: %s\n", scene.Purpose)
	fmt.Fprintf(&sb, "Description: %s\n", scene.Description)
	fmt.Fprintf(&sb, "Layout: %s\n", scene.Layout)
	fmt.Fprintf(&sb, "Narration: %s\n", scene.Narration)
	return sb.String()
}

func render(tmpl *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("プロンプトテンプレートの描画に失敗したのだ: %w", err)
	}
	return sb.String(), nil
}
