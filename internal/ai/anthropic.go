package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
)

// AnthropicGenerator は Anthropic Messages API を直接叩く実装なのだ。
// Gemini 側と同じレート制限・再試行・キャッシュの殻をかぶせてあるので、
// プロバイダの切り替えはパイプラインから見えないのだ。
type AnthropicGenerator struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *cache.Cache
	maxRetries uint64
	retryDelay time.Duration
}

// NewAnthropicGenerator は AnthropicGenerator を生成するのだ。
func NewAnthropicGenerator(apiKey, model string, rateInterval, retryDelay time.Duration, maxRetries int) *AnthropicGenerator {
	return &AnthropicGenerator{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultAnthropicBaseURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(rateInterval), 2),
		cache:      cache.New(30*time.Minute, 10*time.Minute),
		maxRetries: uint64(maxRetries),
		retryDelay: retryDelay,
	}
}

// WithBaseURL はテスト用にエンドポイントを差し替えるのだ。
func (a *AnthropicGenerator) WithBaseURL(baseURL string) *AnthropicGenerator {
	a.baseURL = baseURL
	return a
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate はプロンプトを送信して応答テキストを返すのだ。
// こちらは max_tokens を本物のパラメータとして渡せるのだ。
func (a *AnthropicGenerator) Generate(ctx context.Context, req Request) (string, error) {
	key := responseCacheKey(a.model, req.Prompt)
	if cached, ok := a.cache.Get(key); ok {
		slog.Info("キャッシュ済みの応答を再利用するのだ", "model", a.model)
		return cached.(string), nil
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("レート制限の待機が中断されたのだ: %w", err)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	slog.Info("Anthropicにプロンプトを送信するのだ",
		"model", a.model, "prompt_chars", len(req.Prompt), "max_tokens", maxTokens)

	var text string
	op := func() error {
		result, err := a.call(ctx, req.Prompt, maxTokens)
		if err != nil {
			slog.Warn("Anthropic呼び出しに失敗したので再試行するのだ", "error", err)
			return err
		}
		text = result
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(a.retryDelay), a.maxRetries),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return "", fmt.Errorf("Anthropicからの応答取得に失敗したのだ: %w", err)
	}

	a.cache.Set(key, text, cache.DefaultExpiration)
	return text, nil
}

// call は Messages API を1回呼び出すのだ。
func (a *AnthropicGenerator) call(ctx context.Context, prompt string, maxTokens int) (string, error) {
	body := anthropicRequest{
		Model:       a.model,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: 0,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("リクエストのJSON化に失敗したのだ: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("リクエストの構築に失敗したのだ: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", a.apiKey)
	httpReq.Header.Set("Anthropic-Version", anthropicVersion)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("API呼び出しに失敗したのだ: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("レスポンスの読み込みに失敗したのだ: %w", err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("レスポンスのパースに失敗したのだ: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return "", fmt.Errorf("APIエラー (%d): %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", fmt.Errorf("APIエラー (%d): %s", resp.StatusCode, string(raw))
	}

	if len(parsed.Content) == 0 {
		return "", fmt.Errorf("応答にコンテンツが含まれていないのだ")
	}
	return parsed.Content[0].Text, nil
}
