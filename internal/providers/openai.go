package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"jurisearch/internal/util"
)

const (
	openAIEmbedModel = "text-embedding-3-small"
	openAIChatModel  = "gpt-4o-mini"
)

// OpenAIProvider is the fallback embedding/summary backend when a key is
// configured. It speaks the REST endpoints directly; HTTP failures come back
// wrapped in the classification sentinels so failover treats a 429 and a 500
// differently.
type OpenAIProvider struct {
	keyName string
	apiKey  string
	client  *http.Client
}

func NewOpenAIProvider(keyName string) *OpenAIProvider {
	return &OpenAIProvider{
		keyName: keyName,
		apiKey:  resolveOpenAIKey(keyName),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (o *OpenAIProvider) info(model string) ProviderInfo {
	return ProviderInfo{Name: "openai", Model: model, Key: o.keyName}
}

func (o *OpenAIProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := o.info(openAIEmbedModel)
	body, err := o.post(ctx, "https://api.openai.com/v1/embeddings", "embedding", map[string]any{
		"model": openAIEmbedModel,
		"input": req.Inputs,
	})
	if err != nil {
		return nil, info, err
	}
	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, info, fmt.Errorf("decode embedding response: %w", err)
	}
	out := make([][]float32, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		out = append(out, d.Embedding)
	}
	return out, info, nil
}

func (o *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := o.info(openAIChatModel)
	prompt := req.Prompt
	if len(req.Context) > 0 {
		prompt = prompt + "\n\nTexto:\n" + strings.Join(req.Context, "\n\n")
	}
	body, err := o.post(ctx, "https://api.openai.com/v1/chat/completions", "generate", map[string]any{
		"model": openAIChatModel,
		"messages": []map[string]string{
			{"role": "system", "content": "Você é um assistente jurídico. Responda em português, de forma breve e objetiva."},
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return GenerateResponse{}, info, err
	}
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return GenerateResponse{}, info, fmt.Errorf("decode generate response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return GenerateResponse{}, info, fmt.Errorf("openai returned empty choices")
	}
	return GenerateResponse{Text: parsed.Choices[0].Message.Content}, info, nil
}

func (o *OpenAIProvider) post(ctx context.Context, url, op string, payload map[string]any) ([]byte, error) {
	if o.apiKey == "" {
		return nil, fmt.Errorf("openai key missing for alias %q: %w", o.keyName, util.ErrPermanent)
	}
	raw, _ := json.Marshal(payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build openai %s request: %w", op, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai %s request failed: %v: %w", op, err, util.ErrTransient)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, classifyOpenAIStatus(op, resp.StatusCode, body)
	}
	return body, nil
}

func classifyOpenAIStatus(op string, status int, body []byte) error {
	detail := fmt.Sprintf("openai %s error %d: %s", op, status, body)
	switch {
	case status == http.StatusTooManyRequests && strings.Contains(string(body), "insufficient_quota"):
		return fmt.Errorf("%s: %w", detail, util.ErrQuotaExhausted)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w", detail, util.ErrRateLimited)
	case status >= 500:
		return fmt.Errorf("%s: %w", detail, util.ErrTransient)
	default:
		return fmt.Errorf("%s: %w", detail, util.ErrPermanent)
	}
}

func resolveOpenAIKey(alias string) string {
	if alias != "" {
		if k := os.Getenv("JURISEARCH_OPENAI_KEY_" + strings.ToUpper(alias)); k != "" {
			return k
		}
	}
	return os.Getenv("OPENAI_API_KEY")
}
