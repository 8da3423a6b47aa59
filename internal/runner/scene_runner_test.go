package runner

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/shouni/go-theorem-kit/internal/ai"
	"github.com/shouni/go-theorem-kit/internal/debug"
	"github.com/shouni/go-theorem-kit/pkg/domain"
)

// fakeGenerator は応答を順番に返すテスト用の Generator なのだ。
type fakeGenerator struct {
	responses []string
	prompts   []string
}

func (f *fakeGenerator) Generate(_ context.Context, req ai.Request) (string, error) {
	f.prompts = append(f.prompts, req.Prompt)
	if len(f.responses) == 0 {
		return "", fmt.Errorf("応答が尽きたのだ")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

// fakeValidator は構文チェックとレンダリングの結果を台本通りに返すのだ。
type fakeValidator struct {
	syntaxErrs []error
	renderErrs []error
	renders    int
}

func (f *fakeValidator) CheckSyntax(_ context.Context, _ string) error {
	if len(f.syntaxErrs) == 0 {
		return nil
	}
	err := f.syntaxErrs[0]
	f.syntaxErrs = f.syntaxErrs[1:]
	return err
}

func (f *fakeValidator) Render(_ context.Context, _ string, sceneName string) (string, error) {
	f.renders++
	if len(f.renderErrs) == 0 {
		return "/media/" + sceneName + ".mp4", nil
	}
	err := f.renderErrs[0]
	f.renderErrs = f.renderErrs[1:]
	if err != nil {
		return "", err
	}
	return "/media/" + sceneName + ".mp4", nil
}

func fencedScene(className, body string) string {
	return fmt.Sprintf("```python\nfrom manim import *\n\nclass %s(Scene):\n    def construct(self):\n        %s\n```", className, body)
}

func newTestRunner(t *testing.T, gen *fakeGenerator, validator *fakeValidator, maxSyntax, maxRender int) *SceneCodeRunner {
	t.Helper()
	return NewSceneCodeRunner(gen, validator, debug.NewRecorder(t.TempDir()), t.TempDir(), maxSyntax, maxRender, false)
}

func TestSceneCodeRunner_Run(t *testing.T) {
	plan := domain.ScenePlan{
		{Position: 1, Title: "Intro", Narration: "hello"},
	}

	t.Run("一発で検証を通過するのだ", func(t *testing.T) {
		gen := &fakeGenerator{responses: []string{fencedScene("Intro_Scene1", "self.wait(1)")}}
		validator := &fakeValidator{}
		sr := newTestRunner(t, gen, validator, 3, 5)

		results := sr.Run(context.Background(), "Test Theorem", "desc", plan)
		if len(results) != 1 {
			t.Fatalf("結果の数が違うのだ: %d", len(results))
		}
		res := results[0]
		if !res.Succeeded() {
			t.Fatalf("成功するはずなのだ: %v", res.Err)
		}
		if !strings.Contains(res.Code, "class Intro_Scene1(Scene):") {
			t.Errorf("コードが保持されていないのだ: %q", res.Code)
		}
		if res.VideoPath != "/media/Intro_Scene1.mp4" {
			t.Errorf("動画パスが違うのだ: %q", res.VideoPath)
		}
	})

	t.Run("応答からコードを抽出できなければそのシーンは失敗なのだ", func(t *testing.T) {
		gen := &fakeGenerator{responses: []string{"I refuse to write code."}}
		validator := &fakeValidator{}
		sr := newTestRunner(t, gen, validator, 3, 5)

		results := sr.Run(context.Background(), "Test Theorem", "desc", plan)
		if results[0].Succeeded() {
			t.Fatal("失敗するはずなのだ")
		}
		if validator.renders != 0 {
			t.Errorf("抽出失敗後にレンダリングされてしまったのだ: %d", validator.renders)
		}
	})

	t.Run("構文エラーは修正応答で回復するのだ", func(t *testing.T) {
		gen := &fakeGenerator{responses: []string{
			fencedScene("Intro_Scene1", "broken("),
			fencedScene("Intro_Scene1", "self.play(Write(Text(\"fixed\")))"),
		}}
		validator := &fakeValidator{
			syntaxErrs: []error{fmt.Errorf("SyntaxError: unexpected EOF"), nil},
		}
		sr := newTestRunner(t, gen, validator, 3, 5)

		results := sr.Run(context.Background(), "Test Theorem", "desc", plan)
		res := results[0]
		if !res.Succeeded() {
			t.Fatalf("回復するはずなのだ: %v", res.Err)
		}
		if !strings.Contains(res.Code, "fixed") {
			t.Errorf("修正版のコードが採用されていないのだ: %q", res.Code)
		}
	})

	t.Run("構文修正の上限を超えたら失敗なのだ", func(t *testing.T) {
		gen := &fakeGenerator{responses: []string{
			fencedScene("Intro_Scene1", "broken("),
			fencedScene("Intro_Scene1", "still_broken("),
			fencedScene("Intro_Scene1", "yet_broken("),
		}}
		validator := &fakeValidator{
			syntaxErrs: []error{
				fmt.Errorf("SyntaxError: 1"),
				fmt.Errorf("SyntaxError: 2"),
				fmt.Errorf("SyntaxError: 3"),
			},
		}
		sr := newTestRunner(t, gen, validator, 2, 5)

		results := sr.Run(context.Background(), "Test Theorem", "desc", plan)
		if results[0].Succeeded() {
			t.Fatal("失敗するはずなのだ")
		}
		if validator.renders != 0 {
			t.Errorf("構文未解決のままレンダリングされてしまったのだ: %d", validator.renders)
		}
	})

	t.Run("レンダリング失敗から修正応答で復帰するのだ", func(t *testing.T) {
		gen := &fakeGenerator{responses: []string{
			fencedScene("Intro_Scene1", "self.crash()"),
			fencedScene("Intro_Scene1", "self.still_crash()"),
			fencedScene("Intro_Scene1", "self.play(Create(Circle()))"),
		}}
		validator := &fakeValidator{
			renderErrs: []error{fmt.Errorf("render boom 1"), fmt.Errorf("render boom 2"), nil},
		}
		sr := newTestRunner(t, gen, validator, 3, 5)

		results := sr.Run(context.Background(), "Test Theorem", "desc", plan)
		res := results[0]
		if !res.Succeeded() {
			t.Fatalf("3回目で成功するはずなのだ: %v", res.Err)
		}
		if !strings.Contains(res.Code, "Create(Circle())") {
			t.Errorf("最後の修正版が採用されていないのだ: %q", res.Code)
		}
		if validator.renders != 3 {
			t.Errorf("レンダリング回数が違うのだ: %d", validator.renders)
		}
	})

	t.Run("1つのシーンが失敗しても残りは処理されるのだ", func(t *testing.T) {
		twoScenes := domain.ScenePlan{
			{Position: 1, Title: "Doomed"},
			{Position: 2, Title: "Fine"},
		}
		gen := &fakeGenerator{responses: []string{
			fencedScene("Doomed_Scene1", "self.crash()"),
			fencedScene("Doomed_Scene1", "self.crash_again()"),
			fencedScene("Fine_Scene2", "self.wait(1)"),
		}}
		validator := &fakeValidator{
			renderErrs: []error{fmt.Errorf("boom"), fmt.Errorf("boom"), nil},
		}
		sr := newTestRunner(t, gen, validator, 3, 2)

		results := sr.Run(context.Background(), "Test Theorem", "desc", twoScenes)
		if len(results) != 2 {
			t.Fatalf("結果の数が違うのだ: %d", len(results))
		}
		if results[0].Succeeded() {
			t.Error("シーン1は失敗のはずなのだ")
		}
		if !results[1].Succeeded() {
			t.Errorf("シーン2は成功のはずなのだ: %v", results[1].Err)
		}
	})

	t.Run("名前違いの修正応答はリネームされて採用されるのだ", func(t *testing.T) {
		gen := &fakeGenerator{responses: []string{
			fencedScene("Intro_Scene1", "self.crash()"),
			fencedScene("CompletelyDifferentName", "self.play(FadeIn(Dot()))"),
		}}
		validator := &fakeValidator{
			renderErrs: []error{fmt.Errorf("boom"), nil},
		}
		sr := newTestRunner(t, gen, validator, 3, 5)

		results := sr.Run(context.Background(), "Test Theorem", "desc", plan)
		res := results[0]
		if !res.Succeeded() {
			t.Fatalf("成功するはずなのだ: %v", res.Err)
		}
		if !strings.Contains(res.Code, "class Intro_Scene1(Scene):") {
			t.Errorf("期待クラス名にリネームされていないのだ: %q", res.Code)
		}
		if strings.Contains(res.Code, "CompletelyDifferentName") {
			t.Errorf("モデルが付けた名前が残っているのだ: %q", res.Code)
		}
	})
}
