package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.SetContractStatusActivity)
	w.RegisterActivity(a.CountChunksActivity)
	w.RegisterActivity(a.AnalyzeChunkActivity)
	w.RegisterActivity(a.SaveAnalysisActivity)
}
