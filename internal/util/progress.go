package util

// Document ingestion stages, in pipeline order. A document moves strictly
// forward except for the terminal failed state, which any stage can reach.
const (
	StagePending     = "pending"
	StageFragmenting = "fragmenting"
	StageEmbedding   = "embedding"
	StageMining      = "mining"
	StageCompleted   = "completed"
	StageFailed      = "failed"
)

var stageWeights = map[string]int32{
	StagePending:     0,
	StageFragmenting: 25,
	StageEmbedding:   50,
	StageMining:      75,
	StageCompleted:   100,
}

// IngestProgressPercentage maps an ingestion stage to a coarse completion
// percentage for status endpoints. Failed documents keep the percentage of
// the stage they failed in, so -1 signals unknown.
func IngestProgressPercentage(stage string) int32 {
	pct, ok := stageWeights[stage]
	if !ok {
		return -1
	}
	return pct
}

// ValidStage reports whether stage is one of the pipeline stages.
func ValidStage(stage string) bool {
	if stage == StageFailed {
		return true
	}
	_, ok := stageWeights[stage]
	return ok
}
