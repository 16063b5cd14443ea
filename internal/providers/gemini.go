package providers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	geminiEmbedModel = "text-embedding-004"
	geminiLLMModel   = "gemini-1.5-flash"
)

// GeminiProvider wraps the Google Generative AI SDK for embeddings and short
// summary generation. The client is created lazily so constructing the
// provider never requires network access.
type GeminiProvider struct {
	keyName string
	apiKey  string

	once    sync.Once
	client  *genai.Client
	initErr error
}

func NewGeminiProvider(keyName string) *GeminiProvider {
	return &GeminiProvider{
		keyName: keyName,
		apiKey:  resolveGeminiKey(keyName),
	}
}

func (g *GeminiProvider) getClient(ctx context.Context) (*genai.Client, error) {
	g.once.Do(func() {
		if g.apiKey == "" {
			g.initErr = fmt.Errorf("gemini key missing for alias %q", g.keyName)
			return
		}
		g.client, g.initErr = genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	})
	return g.client, g.initErr
}

func (g *GeminiProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "gemini", Model: geminiEmbedModel, Key: g.keyName}
	client, err := g.getClient(ctx)
	if err != nil {
		return nil, info, err
	}
	em := client.EmbeddingModel(geminiEmbedModel)
	if len(req.Inputs) == 1 {
		res, err := em.EmbedContent(ctx, genai.Text(req.Inputs[0]))
		if err != nil {
			return nil, info, fmt.Errorf("gemini embed content: %w", err)
		}
		return [][]float32{res.Embedding.Values}, info, nil
	}
	batch := em.NewBatch()
	for _, input := range req.Inputs {
		batch = batch.AddContent(genai.Text(input))
	}
	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, info, fmt.Errorf("gemini batch embed: %w", err)
	}
	out := make([][]float32, 0, len(res.Embeddings))
	for _, e := range res.Embeddings {
		out = append(out, e.Values)
	}
	if len(out) != len(req.Inputs) {
		return nil, info, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(out), len(req.Inputs))
	}
	return out, info, nil
}

func (g *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "gemini", Model: geminiLLMModel, Key: g.keyName}
	client, err := g.getClient(ctx)
	if err != nil {
		return GenerateResponse{}, info, err
	}
	gm := client.GenerativeModel(geminiLLMModel)
	prompt := req.Prompt
	if len(req.Context) > 0 {
		prompt = prompt + "\n\nTexto:\n" + strings.Join(req.Context, "\n\n")
	}
	resp, err := gm.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("gemini generate content: %w", err)
	}
	text := joinCandidateText(resp)
	if strings.TrimSpace(text) == "" {
		return GenerateResponse{}, info, fmt.Errorf("gemini returned empty candidates")
	}
	return GenerateResponse{Text: text}, info, nil
}

func joinCandidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

func resolveGeminiKey(alias string) string {
	if alias != "" {
		k := os.Getenv("JURISEARCH_GEMINI_KEY_" + strings.ToUpper(alias))
		if k != "" {
			return k
		}
	}
	return os.Getenv("GEMINI_API_KEY")
}
