package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ListPendingCasesActivity)
	w.RegisterActivity(a.ExtractTextActivity)
	w.RegisterActivity(a.PersistDocumentActivity)
	w.RegisterActivity(a.GenerateSummaryActivity)
	w.RegisterActivity(a.StoreSummaryActivity)
	w.RegisterActivity(a.ChunkDocumentActivity)
	w.RegisterActivity(a.ReplaceChunksActivity)
	w.RegisterActivity(a.EmbedChunksActivity)
	w.RegisterActivity(a.UpsertEmbeddingsActivity)
	w.RegisterActivity(a.UpdateCaseStatusActivity)
	w.RegisterActivity(a.WriteCaseArtifactsActivity)
}
