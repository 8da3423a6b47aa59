package parser

import "regexp"

var (
	// PlanRegex は "SCENE PLAN BEGIN:" と "SCENE PLAN END:" に挟まれた本体をキャプチャします。
	PlanRegex = regexp.MustCompile(`(?s)SCENE PLAN BEGIN:(.*?)SCENE PLAN END:`)

	// SceneMarkerRegex は "[Scene N]" 形式のシーン区切り行を特定します。
	SceneMarkerRegex = regexp.MustCompile(`\[Scene \d+\]`)

	// PythonFenceRegex は ```python でタグ付けされたコードブロックをキャプチャします。
	PythonFenceRegex = regexp.MustCompile("(?s)```python(.*?)```")

	// GenericFenceRegex はタグなしのコードブロックをキャプチャします。
	GenericFenceRegex = regexp.MustCompile("(?s)```(.*?)```")

	// SceneClassRegex は Scene を継承するクラス定義行をキャプチャします。
	SceneClassRegex = regexp.MustCompile(`class\s+(\w+)\s*\(\s*Scene\s*\)`)
)
