package ai

import (
	"context"
	"crypto/md5"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/patrickmn/go-cache"
	"github.com/shouni/go-ai-client/v2/pkg/ai/gemini"
	"golang.org/x/time/rate"
)

// GeminiGenerator は go-ai-client 経由で Gemini を呼び出す実装なのだ。
// レート制限・再試行・応答キャッシュをこの層で面倒見るので、
// 呼び出し側は Generate を素朴に叩くだけでいいのだ。
type GeminiGenerator struct {
	client     gemini.GenerativeModel
	model      string
	limiter    *rate.Limiter
	cache      *cache.Cache
	maxRetries uint64
	retryDelay time.Duration
}

// NewGeminiGenerator は GeminiGenerator を生成するのだ。
func NewGeminiGenerator(client gemini.GenerativeModel, model string, rateInterval, retryDelay time.Duration, maxRetries int) *GeminiGenerator {
	return &GeminiGenerator{
		client: client,
		model:  model,
		// バースト2: 直列パイプラインでも plan 直後の scene 生成が詰まらない程度なのだ
		limiter:    rate.NewLimiter(rate.Every(rateInterval), 2),
		cache:      cache.New(30*time.Minute, 10*time.Minute),
		maxRetries: uint64(maxRetries),
		retryDelay: retryDelay,
	}
}

// Generate はプロンプトを送信して応答テキストを返すのだ。
// 温度0で運用しているので、同一プロンプトの応答キャッシュは意味論的に安全なのだ。
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	key := responseCacheKey(g.model, req.Prompt)
	if cached, ok := g.cache.Get(key); ok {
		slog.Info("キャッシュ済みの応答を再利用するのだ", "model", g.model)
		return cached.(string), nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("レート制限の待機が中断されたのだ: %w", err)
	}

	// MaxTokens は go-ai-client の呼び出し面では渡せないので助言として記録だけするのだ
	slog.Info("Geminiにプロンプトを送信するのだ",
		"model", g.model, "prompt_chars", len(req.Prompt), "max_tokens_hint", req.MaxTokens)

	var text string
	op := func() error {
		resp, err := g.client.GenerateContent(ctx, req.Prompt, g.model)
		if err != nil {
			slog.Warn("Gemini呼び出しに失敗したので再試行するのだ", "error", err)
			return err
		}
		text = resp.Text
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(g.retryDelay), g.maxRetries),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return "", fmt.Errorf("Geminiからの応答取得に失敗したのだ: %w", err)
	}

	g.cache.Set(key, text, cache.DefaultExpiration)
	return text, nil
}

// responseCacheKey はモデル名とプロンプト全文からキャッシュキーを導出します。
func responseCacheKey(model, prompt string) string {
	return fmt.Sprintf("%s:%x", model, md5.Sum([]byte(prompt)))
}
