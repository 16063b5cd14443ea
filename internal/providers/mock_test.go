package providers

import (
	"context"
	"testing"
)

func TestMockEmbedDeterministic(t *testing.T) {
	p := NewMockProvider(64)
	a, _, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{"dano moral"}, Dimension: 64})
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{"dano moral"}, Dimension: 64})
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 1 || len(a[0]) != 64 {
		t.Fatalf("unexpected shape: %d x %d", len(a), len(a[0]))
	}
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("vector not deterministic at index %d", i)
		}
	}
}
