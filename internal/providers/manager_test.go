package providers

import (
	"testing"

	"jurisearch/internal/config"
)

func TestPreferredOrderPutsRealProvidersFirst(t *testing.T) {
	m, err := NewManager(config.Config{
		EmbedProviders: "mock|gemini:k1",
		LLMProviders:   "openai:k2|mock",
		EmbedDim:       768,
	})
	if err != nil {
		t.Fatal(err)
	}

	embed := m.PreferredEmbedOrder()
	if len(embed) != 2 || embed[0] != 1 || embed[1] != 0 {
		t.Fatalf("embed order = %v, want [1 0]", embed)
	}
	llm := m.PreferredLLMOrder()
	if len(llm) != 2 || llm[0] != 0 || llm[1] != 1 {
		t.Fatalf("llm order = %v, want [0 1]", llm)
	}
}

func TestPreferredOrderAllMock(t *testing.T) {
	m, err := NewManager(config.Config{EmbedDim: 768})
	if err != nil {
		t.Fatal(err)
	}
	if got := m.PreferredEmbedOrder(); len(got) != 1 || got[0] != 0 {
		t.Fatalf("embed order = %v, want [0]", got)
	}
}
