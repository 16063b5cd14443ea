package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"jurisearch/internal/activities"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func registerCaseActivities(env *testsuite.TestWorkflowEnvironment) {
	registerActivityName(env, "ExtractTextActivity", func(context.Context, activities.ExtractTextInput) (activities.ExtractTextOutput, error) {
		return activities.ExtractTextOutput{}, nil
	})
	registerActivityName(env, "PersistDocumentActivity", func(context.Context, activities.PersistDocumentInput) error { return nil })
	registerActivityName(env, "GenerateSummaryActivity", func(context.Context, activities.GenerateSummaryInput) (activities.GenerateSummaryOutput, error) {
		return activities.GenerateSummaryOutput{}, nil
	})
	registerActivityName(env, "StoreSummaryActivity", func(context.Context, activities.StoreSummaryInput) error { return nil })
	registerActivityName(env, "ChunkDocumentActivity", func(context.Context, activities.ChunkDocumentInput) (activities.ChunkDocumentOutput, error) {
		return activities.ChunkDocumentOutput{}, nil
	})
	registerActivityName(env, "ReplaceChunksActivity", func(context.Context, activities.ReplaceChunksInput) error { return nil })
	registerActivityName(env, "EmbedChunksActivity", func(context.Context, activities.EmbedChunksInput) (activities.EmbedChunksOutput, error) {
		return activities.EmbedChunksOutput{}, nil
	})
	registerActivityName(env, "UpsertEmbeddingsActivity", func(context.Context, activities.UpsertEmbeddingsInput) (activities.UpsertEmbeddingsOutput, error) {
		return activities.UpsertEmbeddingsOutput{}, nil
	})
	registerActivityName(env, "WriteCaseArtifactsActivity", func(context.Context, activities.WriteCaseArtifactsInput) error { return nil })
	registerActivityName(env, "UpdateCaseStatusActivity", func(context.Context, activities.UpdateCaseStatusInput) error { return nil })
}

func TestCaseProcessWorkflowSuccess(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(CaseProcessWorkflow)
	registerCaseActivities(env)

	env.OnActivity("ExtractTextActivity", mock.Anything, activities.ExtractTextInput{FilePath: "/data/decisions/p.pdf"}).
		Return(activities.ExtractTextOutput{Text: "Vistos. A autora alega negativação indevida."}, nil)
	env.OnActivity("PersistDocumentActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("GenerateSummaryActivity", mock.Anything, mock.Anything).
		Return(activities.GenerateSummaryOutput{Summary: "Resumo: ação procedente.", ProviderName: "mock", Model: "mock"}, nil)
	env.OnActivity("StoreSummaryActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ChunkDocumentActivity", mock.Anything, mock.Anything).
		Return(activities.ChunkDocumentOutput{Chunks: []activities.ChunkItem{{ChunkID: "ch1", CaseID: "c1", ChunkIndex: 0, Text: "trecho"}}}, nil)
	env.OnActivity("ReplaceChunksActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("EmbedChunksActivity", mock.Anything, mock.Anything).
		Return(activities.EmbedChunksOutput{Vectors: [][]float32{{0.1, 0.2}}, ProviderName: "mock", Model: "mock-embed"}, nil)
	env.OnActivity("UpsertEmbeddingsActivity", mock.Anything, mock.Anything).
		Return(activities.UpsertEmbeddingsOutput{Stored: 1}, nil)
	env.OnActivity("WriteCaseArtifactsActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("UpdateCaseStatusActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(CaseProcessWorkflow, CaseProcessInput{
		CaseID: "c1", CaseNumber: "1001234-56.2023.8.26.0100", FilePath: "/data/decisions/p.pdf",
		EmbedProviders: 1, LLMProviders: 1, CooldownSeconds: 10,
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "indexed", out)
}

func TestCaseProcessWorkflowNoTextFailsGracefully(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(CaseProcessWorkflow)
	registerCaseActivities(env)

	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).
		Return(activities.ExtractTextOutput{}, errors.New("no extractable text found in PDF"))
	env.OnActivity("UpdateCaseStatusActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(CaseProcessWorkflow, CaseProcessInput{
		CaseID: "c1", CaseNumber: "1001234-56.2023.8.26.0100", FilePath: "/data/decisions/p.pdf",
		EmbedProviders: 1, LLMProviders: 1, CooldownSeconds: 10,
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "error", out)
}

func TestEmbedFailoverFollowsPreferredOrder(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(CaseProcessWorkflow)
	registerCaseActivities(env)

	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).
		Return(activities.ExtractTextOutput{Text: "Vistos. Texto da decisão."}, nil)
	env.OnActivity("PersistDocumentActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("GenerateSummaryActivity", mock.Anything, mock.Anything).
		Return(activities.GenerateSummaryOutput{Summary: "Resumo.", ProviderName: "mock", Model: "mock"}, nil)
	env.OnActivity("StoreSummaryActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ChunkDocumentActivity", mock.Anything, mock.Anything).
		Return(activities.ChunkDocumentOutput{Chunks: []activities.ChunkItem{{ChunkID: "ch1", CaseID: "c1", ChunkIndex: 0, Text: "trecho"}}}, nil)
	env.OnActivity("ReplaceChunksActivity", mock.Anything, mock.Anything).Return(nil)
	// The preferred order starts at index 1, so the real provider is tried
	// before the mock at index 0.
	env.OnActivity("EmbedChunksActivity", mock.Anything, mock.MatchedBy(func(in activities.EmbedChunksInput) bool {
		return in.ProviderIndex == 1
	})).Return(activities.EmbedChunksOutput{Vectors: [][]float32{{0.1, 0.2}}, ProviderName: "gemini", Model: "text-embedding-004"}, nil)
	env.OnActivity("UpsertEmbeddingsActivity", mock.Anything, mock.Anything).
		Return(activities.UpsertEmbeddingsOutput{Stored: 1}, nil)
	env.OnActivity("WriteCaseArtifactsActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("UpdateCaseStatusActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(CaseProcessWorkflow, CaseProcessInput{
		CaseID: "c1", CaseNumber: "1001234-56.2023.8.26.0100", FilePath: "/data/decisions/p.pdf",
		EmbedProviders: 2, LLMProviders: 1,
		EmbedOrder:      []int{1, 0},
		CooldownSeconds: 10,
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "indexed", out)
}

func TestIngestProgressCountsFailedChildOnce(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(CaseIngestWorkflow)
	env.RegisterWorkflow(CaseProcessWorkflow)
	registerCaseActivities(env)
	registerActivityName(env, "ListPendingCasesActivity", func(context.Context, activities.ListPendingCasesInput) (activities.ListPendingCasesOutput, error) {
		return activities.ListPendingCasesOutput{}, nil
	})

	env.OnActivity("ListPendingCasesActivity", mock.Anything, mock.Anything).
		Return(activities.ListPendingCasesOutput{Cases: []activities.PendingCase{
			{CaseID: "c1", CaseNumber: "1001234-56.2023.8.26.0100", FilePath: "/data/decisions/a.pdf"},
			{CaseID: "c2", CaseNumber: "1005678-90.2023.8.26.0114", FilePath: "/data/decisions/b.pdf"},
		}}, nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, activities.ExtractTextInput{FilePath: "/data/decisions/a.pdf"}).
		Return(activities.ExtractTextOutput{Text: "Vistos. Texto da decisão."}, nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, activities.ExtractTextInput{FilePath: "/data/decisions/b.pdf"}).
		Return(activities.ExtractTextOutput{}, errors.New("no extractable text found in PDF"))
	env.OnActivity("PersistDocumentActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("GenerateSummaryActivity", mock.Anything, mock.Anything).
		Return(activities.GenerateSummaryOutput{Summary: "Resumo.", ProviderName: "mock", Model: "mock"}, nil)
	env.OnActivity("StoreSummaryActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ChunkDocumentActivity", mock.Anything, mock.Anything).
		Return(activities.ChunkDocumentOutput{Chunks: []activities.ChunkItem{{ChunkID: "ch1", CaseID: "c1", ChunkIndex: 0, Text: "trecho"}}}, nil)
	env.OnActivity("ReplaceChunksActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("EmbedChunksActivity", mock.Anything, mock.Anything).
		Return(activities.EmbedChunksOutput{Vectors: [][]float32{{0.1, 0.2}}, ProviderName: "mock", Model: "mock-embed"}, nil)
	env.OnActivity("UpsertEmbeddingsActivity", mock.Anything, mock.Anything).
		Return(activities.UpsertEmbeddingsOutput{Stored: 1}, nil)
	env.OnActivity("WriteCaseArtifactsActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("UpdateCaseStatusActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(CaseIngestWorkflow, CaseIngestInput{
		BatchLimit: 10, MaxChildren: 2,
		EmbedProviders: 1, LLMProviders: 1, CooldownSeconds: 10,
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	v, err := env.QueryWorkflow(QueryGetIngestProgress)
	require.NoError(t, err)
	var prog CaseIngestProgress
	require.NoError(t, v.Get(&prog))
	require.Equal(t, 2, prog.Total)
	require.Equal(t, 1, prog.Done)
	require.Equal(t, 1, prog.Failed)
	require.Equal(t, prog.Total, prog.Done+prog.Failed)
	require.Equal(t, "indexed", prog.PerCase["1001234-56.2023.8.26.0100"])
	require.Equal(t, "error", prog.PerCase["1005678-90.2023.8.26.0114"])
}

func TestCaseProcessWorkflowSummaryFailureDoesNotBlockIndexing(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(CaseProcessWorkflow)
	registerCaseActivities(env)

	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).
		Return(activities.ExtractTextOutput{Text: "Vistos. Texto da decisão."}, nil)
	env.OnActivity("PersistDocumentActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("GenerateSummaryActivity", mock.Anything, mock.Anything).
		Return(activities.GenerateSummaryOutput{}, errors.New("quota exceeded"))
	env.OnActivity("ChunkDocumentActivity", mock.Anything, mock.Anything).
		Return(activities.ChunkDocumentOutput{Chunks: []activities.ChunkItem{{ChunkID: "ch1", CaseID: "c1", ChunkIndex: 0, Text: "trecho"}}}, nil)
	env.OnActivity("ReplaceChunksActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("EmbedChunksActivity", mock.Anything, mock.Anything).
		Return(activities.EmbedChunksOutput{Vectors: [][]float32{{0.1, 0.2}}, ProviderName: "mock", Model: "mock-embed"}, nil)
	env.OnActivity("UpsertEmbeddingsActivity", mock.Anything, mock.Anything).
		Return(activities.UpsertEmbeddingsOutput{Stored: 1}, nil)
	env.OnActivity("WriteCaseArtifactsActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("UpdateCaseStatusActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(CaseProcessWorkflow, CaseProcessInput{
		CaseID: "c1", CaseNumber: "1001234-56.2023.8.26.0100", FilePath: "/data/decisions/p.pdf",
		EmbedProviders: 1, LLMProviders: 1, CooldownSeconds: 10,
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "indexed", out)
}
