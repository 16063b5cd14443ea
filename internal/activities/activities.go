package activities

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"jurisearch/internal/config"
	"jurisearch/internal/embedding"
	"jurisearch/internal/models"
	"jurisearch/internal/providers"
	"jurisearch/internal/storage"
	"jurisearch/internal/util"
)

type Activities struct {
	cfg       config.Config
	caseRepo  *storage.CaseRepo
	docRepo   *storage.DocumentRepo
	chunkRepo *storage.ChunkRepo
	providers *providers.Manager
}

func New(cfg config.Config, db *storage.DB) (*Activities, error) {
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	return &Activities{
		cfg:       cfg,
		caseRepo:  storage.NewCaseRepo(db),
		docRepo:   storage.NewDocumentRepo(db),
		chunkRepo: storage.NewChunkRepo(db),
		providers: pm,
	}, nil
}

func (a *Activities) ListPendingCasesActivity(ctx context.Context, in ListPendingCasesInput) (ListPendingCasesOutput, error) {
	cases, err := a.caseRepo.ListCasesByStatus(ctx, models.StatusDownloaded, in.Limit)
	if err != nil {
		return ListPendingCasesOutput{}, err
	}
	out := ListPendingCasesOutput{Cases: make([]PendingCase, 0, len(cases))}
	for _, c := range cases {
		if strings.TrimSpace(c.FilePath) == "" {
			continue
		}
		out.Cases = append(out.Cases, PendingCase{CaseID: c.ID, CaseNumber: c.CaseNumber, FilePath: c.FilePath})
	}
	return out, nil
}

func (a *Activities) ExtractTextActivity(ctx context.Context, in ExtractTextInput) (ExtractTextOutput, error) {
	_ = ctx
	f, r, err := pdf.Open(in.FilePath)
	if err != nil {
		return ExtractTextOutput{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return ExtractTextOutput{}, fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return ExtractTextOutput{}, fmt.Errorf("read extracted text: %w", err)
	}
	text := strings.TrimSpace(util.SanitizeText(buf.String()))
	if text == "" {
		return ExtractTextOutput{}, util.ErrNoExtractableText
	}
	return ExtractTextOutput{Text: text}, nil
}

func (a *Activities) PersistDocumentActivity(ctx context.Context, in PersistDocumentInput) error {
	return a.docRepo.UpsertDocument(ctx, in.CaseID, in.Text)
}

func (a *Activities) GenerateSummaryActivity(ctx context.Context, in GenerateSummaryInput) (GenerateSummaryOutput, error) {
	provider, ref := a.providers.LLMProviderByIndex(in.ProviderIndex)
	text := util.TruncateRunes(in.Text, 12000)
	resp, info, err := provider.Generate(ctx, providers.GenerateRequest{
		Operation: in.Operation,
		Prompt:    "Resuma a decisão judicial a seguir em um parágrafo, em português, citando o resultado e o valor de eventual indenização.",
		Context:   []string{text},
	})
	if err != nil {
		return GenerateSummaryOutput{}, fmt.Errorf("summary via %s failed: %w", ref.Raw, err)
	}
	return GenerateSummaryOutput{Summary: resp.Text, ProviderName: info.Name, Model: info.Model}, nil
}

func (a *Activities) StoreSummaryActivity(ctx context.Context, in StoreSummaryInput) error {
	if strings.TrimSpace(in.Summary) == "" {
		return nil
	}
	return a.docRepo.SetSummary(ctx, in.CaseID, in.Summary)
}

func (a *Activities) ChunkDocumentActivity(ctx context.Context, in ChunkDocumentInput) (ChunkDocumentOutput, error) {
	_ = ctx
	if in.ChunkSize <= 0 {
		in.ChunkSize = a.cfg.ChunkSize
	}
	if in.ChunkOverlap < 0 || in.ChunkOverlap >= in.ChunkSize {
		in.ChunkOverlap = a.cfg.ChunkOverlap
	}

	parts := util.ChunkText(in.Text, in.ChunkSize, in.ChunkOverlap)
	chunks := make([]ChunkItem, 0, len(parts))
	for _, p := range parts {
		text := util.SanitizeText(p.Text)
		if strings.TrimSpace(text) == "" {
			continue
		}
		chunks = append(chunks, ChunkItem{
			ChunkID:     util.ChunkID(in.CaseID, p.Index),
			CaseID:      in.CaseID,
			ChunkIndex:  p.Index,
			StartOffset: p.Start,
			EndOffset:   p.End,
			Text:        text,
		})
	}
	return ChunkDocumentOutput{Chunks: chunks}, nil
}

func (a *Activities) ReplaceChunksActivity(ctx context.Context, in ReplaceChunksInput) error {
	chunks := make([]models.Chunk, 0, len(in.Chunks))
	for _, c := range in.Chunks {
		chunks = append(chunks, models.Chunk{
			ChunkID:     c.ChunkID,
			CaseID:      c.CaseID,
			ChunkIndex:  c.ChunkIndex,
			StartOffset: c.StartOffset,
			EndOffset:   c.EndOffset,
			Text:        c.Text,
		})
	}
	return a.chunkRepo.ReplaceChunks(ctx, in.CaseID, chunks)
}

func (a *Activities) EmbedChunksActivity(ctx context.Context, in EmbedChunksInput) (EmbedChunksOutput, error) {
	inputs := make([]string, 0, len(in.Chunks))
	for _, c := range in.Chunks {
		inputs = append(inputs, c.Text)
	}
	provider, _ := a.providers.EmbedProviderByIndex(in.ProviderIndex)
	vectors, info, err := provider.Embed(ctx, providers.EmbedRequest{
		Operation: in.Operation,
		Inputs:    inputs,
		Dimension: a.cfg.EmbedDim,
	})
	if err != nil {
		return EmbedChunksOutput{}, err
	}
	return EmbedChunksOutput{Vectors: vectors, ProviderName: info.Name, Model: info.Model}, nil
}

// UpsertEmbeddingsActivity normalizes and stores vectors positionally matched
// to chunks. A chunk without a usable vector is skipped, not fatal.
func (a *Activities) UpsertEmbeddingsActivity(ctx context.Context, in UpsertEmbeddingsInput) (UpsertEmbeddingsOutput, error) {
	model := in.Model
	if strings.TrimSpace(model) == "" {
		model = a.cfg.EmbedModel
	}
	out := UpsertEmbeddingsOutput{}
	for i, c := range in.Chunks {
		if i >= len(in.Vectors) || len(in.Vectors[i]) == 0 {
			out.Skipped++
			continue
		}
		vec, err := embedding.Normalize(in.Vectors[i])
		if err != nil {
			out.Skipped++
			continue
		}
		err = a.chunkRepo.UpsertEmbedding(ctx, models.Embedding{
			ChunkID: c.ChunkID,
			CaseID:  c.CaseID,
			Model:   model,
			Vector:  vec,
		})
		if err != nil {
			return out, err
		}
		out.Stored++
	}
	return out, nil
}

func (a *Activities) UpdateCaseStatusActivity(ctx context.Context, in UpdateCaseStatusInput) error {
	return a.caseRepo.UpdateCaseStatus(ctx, in.CaseID, in.Status, in.FailReason)
}

func (a *Activities) WriteCaseArtifactsActivity(ctx context.Context, in WriteCaseArtifactsInput) error {
	_ = ctx
	base := filepath.Join(a.cfg.DataOutRoot, "cases", in.CaseNumber)
	if err := util.EnsureDir(base); err != nil {
		return err
	}
	if err := util.WriteJSONAtomic(filepath.Join(base, "metadata.json"), in.Metadata); err != nil {
		return err
	}
	return util.WriteJSONAtomic(filepath.Join(base, "chunks.json"), in.Chunks)
}
