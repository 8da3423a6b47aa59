package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestAnthropic(serverURL string) *AnthropicGenerator {
	return NewAnthropicGenerator("test-key", "claude-test", time.Millisecond, time.Millisecond, 3).
		WithBaseURL(serverURL)
}

func TestAnthropicGenerator_Generate(t *testing.T) {
	t.Run("リクエストの形式とヘッダが正しいのだ", func(t *testing.T) {
		var gotReq anthropicRequest
		var gotHeaders http.Header

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotHeaders = r.Header.Clone()
			if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
				t.Errorf("リクエストのデコードに失敗したのだ: %v", err)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"content": []map[string]string{{"type": "text", "text": "generated code"}},
			})
		}))
		defer server.Close()

		gen := newTestAnthropic(server.URL)
		text, err := gen.Generate(context.Background(), Request{Prompt: "write a scene", MaxTokens: 8000})
		if err != nil {
			t.Fatalf("生成に失敗したのだ: %v", err)
		}
		if text != "generated code" {
			t.Errorf("応答テキストが違うのだ: %q", text)
		}

		if gotHeaders.Get("X-Api-Key") != "test-key" {
			t.Error("APIキーのヘッダが付いていないのだ")
		}
		if gotHeaders.Get("Anthropic-Version") != anthropicVersion {
			t.Error("バージョンヘッダが付いていないのだ")
		}
		if gotReq.Model != "claude-test" || gotReq.MaxTokens != 8000 || gotReq.Temperature != 0 {
			t.Errorf("リクエスト本文が違うのだ: %+v", gotReq)
		}
		if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" || gotReq.Messages[0].Content != "write a scene" {
			t.Errorf("メッセージの形式が違うのだ: %+v", gotReq.Messages)
		}
	})

	t.Run("一時的な失敗は再試行で乗り越えるのだ", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]string{"type": "overloaded_error", "message": "try later"},
				})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"content": []map[string]string{{"type": "text", "text": "eventually ok"}},
			})
		}))
		defer server.Close()

		gen := newTestAnthropic(server.URL)
		text, err := gen.Generate(context.Background(), Request{Prompt: "p", MaxTokens: 100})
		if err != nil {
			t.Fatalf("再試行で成功するはずなのだ: %v", err)
		}
		if text != "eventually ok" || calls != 3 {
			t.Errorf("再試行の挙動が違うのだ: text=%q calls=%d", text, calls)
		}
	})

	t.Run("再試行上限を超えたらエラーなのだ", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"type": "api_error", "message": "permanent failure"},
			})
		}))
		defer server.Close()

		gen := newTestAnthropic(server.URL)
		if _, err := gen.Generate(context.Background(), Request{Prompt: "p", MaxTokens: 100}); err == nil {
			t.Fatal("エラーになるはずなのだ")
		}
	})

	t.Run("同一プロンプトの2回目はキャッシュから返るのだ", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			json.NewEncoder(w).Encode(map[string]any{
				"content": []map[string]string{{"type": "text", "text": "cached answer"}},
			})
		}))
		defer server.Close()

		gen := newTestAnthropic(server.URL)
		for i := 0; i < 2; i++ {
			text, err := gen.Generate(context.Background(), Request{Prompt: "same prompt", MaxTokens: 100})
			if err != nil {
				t.Fatalf("生成に失敗したのだ: %v", err)
			}
			if text != "cached answer" {
				t.Errorf("応答テキストが違うのだ: %q", text)
			}
		}
		if calls != 1 {
			t.Errorf("キャッシュが効いていないのだ。呼び出し回数: %d", calls)
		}
	})

	t.Run("MaxTokens未指定には既定値が入るのだ", func(t *testing.T) {
		var gotReq anthropicRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&gotReq)
			json.NewEncoder(w).Encode(map[string]any{
				"content": []map[string]string{{"type": "text", "text": "ok"}},
			})
		}))
		defer server.Close()

		gen := newTestAnthropic(server.URL)
		if _, err := gen.Generate(context.Background(), Request{Prompt: "no tokens"}); err != nil {
			t.Fatalf("生成に失敗したのだ: %v", err)
		}
		if gotReq.MaxTokens != 4096 {
			t.Errorf("既定のmax_tokensが入っていないのだ: %d", gotReq.MaxTokens)
		}
	})
}
