package miner

import (
	"context"

	"github.com/sanadlabs/sanad/pkg/common"
	"github.com/sanadlabs/sanad/pkg/textspan"
)

// VocabResolver is a deterministic entity resolver backed by the mining
// vocabulary: entities are detected by folded alias matching, ordered by
// earliest mention in the query. It needs no external service, which makes it
// the default resolver for deployments without a dedicated
// question-understanding component.
type VocabResolver struct {
	vocab *Vocabulary
}

// NewVocabResolver creates a resolver over the given vocabulary.
func NewVocabResolver(vocab *Vocabulary) *VocabResolver {
	return &VocabResolver{vocab: vocab}
}

// Resolve detects vocabulary entities mentioned in the query. Confidence
// decays with mention rank; the first-mentioned entity is the strongest
// candidate.
func (r *VocabResolver) Resolve(ctx context.Context, query string) ([]common.ResolvedEntity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	found := r.vocab.mentions(textspan.Fold(query))
	out := make([]common.ResolvedEntity, 0, len(found))
	for i, m := range found {
		confidence := 1.0 - 0.1*float64(i)
		if confidence < 0.5 {
			confidence = 0.5
		}
		out = append(out, common.ResolvedEntity{
			Type:       m.ref.Type,
			ID:         m.ref.ID,
			Confidence: confidence,
		})
	}
	return out, nil
}
