package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/go-theorem-kit/internal/ai"
	"github.com/shouni/go-theorem-kit/internal/config"
	"github.com/shouni/go-theorem-kit/internal/prompt"
	"github.com/shouni/go-theorem-kit/pkg/domain"
	"github.com/shouni/go-theorem-kit/pkg/parser"
)

// PlanRunner は、定理からシーン計画を生成する最初のフェーズを担う構造体なのだ。
type PlanRunner struct {
	gen ai.Generator
}

// NewPlanRunner は PlanRunner の新しいインスタンスを生成して返すのだ。
func NewPlanRunner(gen ai.Generator) *PlanRunner {
	return &PlanRunner{gen: gen}
}

// Run はプロンプト構築、AIによる生成、結果のパースを一気に行うのだ。
// パース結果が空（1シーンも取れない）のときはエラーなのだ——
// 後続フェーズはすべてこの計画を前提にするのだよ。
func (pr *PlanRunner) Run(ctx context.Context, theoremName, theoremDescription string) (domain.ScenePlan, error) {
	promptContent, err := prompt.Planner(prompt.PlannerData{
		TheoremName:        theoremName,
		TheoremDescription: theoremDescription,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("シーン計画の生成を開始するのだ", "theorem", theoremName)

	resp, err := pr.gen.Generate(ctx, ai.Request{
		Prompt:    promptContent,
		MaxTokens: config.PlanMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("シーン計画の生成に失敗したのだ: %w", err)
	}

	plan := parser.ParseScenePlan(resp)
	if len(plan) == 0 {
		return nil, fmt.Errorf("応答からシーン計画を1つも読み取れなかったのだ")
	}

	slog.Info("シーン計画が完成したのだ", "scenes", len(plan))
	return plan, nil
}
