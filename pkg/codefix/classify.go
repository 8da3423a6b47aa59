package codefix

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shouni/go-theorem-kit/pkg/domain"
	"github.com/shouni/go-theorem-kit/pkg/parser"
)

// エラーメッセージ解析用のパターン群なのだ。フリーテキストへのパターンマッチは
// 本質的に壊れやすいので、戦略を順位付きで並べて個別に差し替えられるようにしてあるのだ。
var (
	fileLineRegex      = regexp.MustCompile(`([^\s]+\.py):(\d+)`)
	richFrameRegex     = regexp.MustCompile(`│\s*❱\s*(\d+)\s*│`)
	callerFrameRegex   = regexp.MustCompile(`in\s+(\w+)`)
	explicitClassRegex = regexp.MustCompile(`class\s+(\w+)[\(:]`)
	lineNumberRegex    = regexp.MustCompile(`line\s+(\d+)`)
	ordinalRegex       = regexp.MustCompile(`Scene(\d+)`)
)

// globalErrorSignatures は「特定のシーンではなく共有ヘッダの問題」と断定できる
// エラー署名の固定テーブルなのだ。
var globalErrorSignatures = []string{
	"NameError: name 'FRAME_HEIGHT' is not defined",
	"NameError: name 'FRAME_WIDTH' is not defined",
	"NameError: name 'PI' is not defined",
	"NameError: name 'TAU' is not defined",
	"NameError: name 'ORIGIN' is not defined",
	"NameError: name 'UP' is not defined",
	"NameError: name 'DOWN' is not defined",
	"NameError: name 'LEFT' is not defined",
	"NameError: name 'RIGHT' is not defined",
	"NameError: name 'IN' is not defined",
	"NameError: name 'OUT' is not defined",
	"NameError: name 'UL' is not defined",
	"NameError: name 'UR' is not defined",
	"NameError: name 'DL' is not defined",
	"NameError: name 'DR' is not defined",
	"ImportError: cannot import name",
}

const manimImportLine = "from manim import *"

// IsGlobalError は、個別シーンを触らずヘッダへのパッチで直すべきエラーかを判定するのだ。
func IsGlobalError(errorMessage string) bool {
	for _, sig := range globalErrorSignatures {
		if strings.Contains(errorMessage, sig) {
			return true
		}
	}
	return false
}

// ApplyGlobalFix は共有ヘッダへの直接パッチを試みるのだ。
// パッチを当てられなければ空文字列を返すのだよ。
func ApplyGlobalFix(code, errorMessage string) string {
	// フレーム寸法の定数が未定義 → config から導出して注入するのだ
	if strings.Contains(errorMessage, "NameError: name 'FRAME_HEIGHT' is not defined") ||
		strings.Contains(errorMessage, "NameError: name 'FRAME_WIDTH' is not defined") {
		return strings.Replace(code, manimImportLine,
			manimImportLine+"\n\n# Constants for frame dimensions\nFRAME_HEIGHT = config.frame_height\nFRAME_WIDTH = config.frame_width", 1)
	}

	// 方向ベクトル定数が未定義 → numpy の import 漏れが定番の原因なのだ
	for _, c := range []string{"ORIGIN", "UP", "DOWN", "LEFT", "RIGHT", "IN", "OUT", "UL", "UR", "DL", "DR"} {
		if strings.Contains(errorMessage, "NameError: name '"+c+"' is not defined") {
			if !strings.Contains(code, "import numpy") && !strings.Contains(code, "import np") {
				return strings.Replace(code, manimImportLine, manimImportLine+"\nimport numpy as np", 1)
			}
		}
	}

	// 数学定数が未定義 → math から導出して注入するのだ
	for _, c := range []string{"PI", "TAU", "E"} {
		if strings.Contains(errorMessage, "NameError: name '"+c+"' is not defined") {
			return strings.Replace(code, manimImportLine,
				manimImportLine+"\nimport math\n\n# Math constants\nPI = math.pi\nTAU = 2 * math.pi\nE = math.e", 1)
		}
	}

	if strings.Contains(errorMessage, "ImportError: cannot import name") {
		return strings.Replace(code, manimImportLine,
			manimImportLine+"\nfrom manim.constants import *  # Import additional constants", 1)
	}

	return ""
}

// IdentifyScene はエラーメッセージから原因らしいシーンクラス名と行番号を推定するのだ。
// 戦略の優先順位: 明示的なクラス宣言の痕跡 → トレースバックの呼び出しフレーム →
// 行番号から直前のクラス定義を逆探索 → 先頭クラスへのフォールバック。
// どれも当たらなければ空文字列を返し、呼び出し側は全体修復に切り替えるのだ。
func IdentifyScene(code, errorMessage string) (string, int) {
	var lineNumber int

	if m := richFrameRegex.FindStringSubmatch(errorMessage); m != nil {
		lineNumber, _ = strconv.Atoi(m[1])
	}
	if lineNumber == 0 {
		if m := fileLineRegex.FindStringSubmatch(errorMessage); m != nil {
			lineNumber, _ = strconv.Atoi(m[2])
		}
	}
	if lineNumber == 0 {
		if m := lineNumberRegex.FindStringSubmatch(errorMessage); m != nil {
			lineNumber, _ = strconv.Atoi(m[1])
		}
	}

	var sceneClass string

	for _, m := range explicitClassRegex.FindAllStringSubmatch(errorMessage, -1) {
		name := m[1]
		if name != "Scene" && (strings.Contains(name, "Scene") || startsUpper(name)) {
			sceneClass = name
			break
		}
	}

	if sceneClass == "" {
		for _, m := range callerFrameRegex.FindAllStringSubmatch(errorMessage, -1) {
			name := m[1]
			if name == "Scene" || name == "construct" || name == "render" {
				continue
			}
			if startsUpper(name) || strings.Contains(name, "Scene") {
				sceneClass = name
				break
			}
		}
	}

	if sceneClass == "" && lineNumber > 0 {
		sceneClass = guessSceneFromLine(code, lineNumber)
	}

	// 最後の手段: このファイル由来のエラーと分かっているなら先頭クラスを疑うのだ
	if sceneClass == "" && strings.Contains(errorMessage, "manim_code.py") {
		if classes := DeclaredSceneClasses(code); len(classes) > 0 {
			sceneClass = classes[0]
		}
	}

	return sceneClass, lineNumber
}

// guessSceneFromLine は、エラー行より手前で最後に宣言されたシーンクラスを探すのだ。
func guessSceneFromLine(code string, lineNumber int) string {
	lines := strings.Split(code, "\n")

	if lineNumber > len(lines) {
		if classes := DeclaredSceneClasses(code); len(classes) > 0 {
			return classes[0]
		}
		return ""
	}

	for i := min(lineNumber-1, len(lines)-1); i >= 0; i-- {
		if m := parser.SceneClassRegex.FindStringSubmatch(lines[i]); m != nil {
			return m[1]
		}
	}

	// 手前に宣言がなければ、末尾クラスのメソッド内とみなすのだ
	if classes := DeclaredSceneClasses(code); len(classes) > 0 {
		return classes[len(classes)-1]
	}
	return ""
}

// ResolveDescriptor は、特定されたクラス名を元のシーン設計に逆引きするのだ。
// まず各シーンから期待名を再生成して突き合わせ、だめなら名前末尾の連番で引き、
// それでも当たらなければ先頭シーンに倒すのだ。
func ResolveDescriptor(plan domain.ScenePlan, sceneClass string) (domain.SceneDescriptor, bool) {
	if len(plan) == 0 {
		return domain.SceneDescriptor{}, false
	}

	for _, scene := range plan {
		if scene.ClassName() == sceneClass {
			return scene, true
		}
	}

	if m := ordinalRegex.FindStringSubmatch(sceneClass); m != nil {
		if idx, err := strconv.Atoi(m[1]); err == nil && idx >= 1 && idx <= len(plan) {
			return plan[idx-1], true
		}
	}

	return plan[0], true
}

func startsUpper(s string) bool {
	return s != "" && s[0] >= 'A' && s[0] <= 'Z'
}
