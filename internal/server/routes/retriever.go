package routes

import (
	"context"
	"math"
	"time"

	"github.com/sanadlabs/sanad/internal/server/middleware"
	"github.com/sanadlabs/sanad/internal/util"
	"github.com/sanadlabs/sanad/pkg/ai"
	"github.com/sanadlabs/sanad/pkg/common"
	"github.com/sanadlabs/sanad/pkg/graph"
	"github.com/sanadlabs/sanad/pkg/miner"
	"github.com/sanadlabs/sanad/pkg/retrieval"
	pgxstore "github.com/sanadlabs/sanad/pkg/store/pgx"
)

// vectorBackend adapts the embedding client plus the pgvector store into the
// retriever's vector interface. The query is embedded per request; fragment
// embeddings were written during ingestion.
type vectorBackend struct {
	ai ai.EmbeddingClient
	st *pgxstore.Storage
}

func (b *vectorBackend) TopK(ctx context.Context, query string, k int) ([]*common.Fragment, error) {
	embedding, err := b.ai.GenerateEmbedding(ctx, []byte(query))
	if err != nil {
		return nil, err
	}
	return b.st.TopKByEmbedding(ctx, embedding, k)
}

// embedReranker scores query/fragment pairs by embedding cosine similarity.
// Enabled via RERANK_ENABLED; the retriever falls back to the merge ranking
// when disabled.
type embedReranker struct {
	ai ai.EmbeddingClient
}

func (r *embedReranker) Enabled() bool { return r != nil && r.ai != nil }

func (r *embedReranker) Score(ctx context.Context, query, fragmentText string) (float64, error) {
	vectors, err := r.ai.GenerateEmbeddings(ctx, [][]byte{[]byte(query), []byte(fragmentText)})
	if err != nil {
		return 0, err
	}
	if len(vectors) != 2 {
		return 0, nil
	}
	return cosine(vectors[0], vectors[1]), nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// buildRetriever assembles the per-request retriever over the shared pool and
// the request's embedding client. An empty allow-list means all relation
// types.
func buildRetriever(
	ctx context.Context,
	app *middleware.App,
	allowed []common.RelationType,
) (*retrieval.Retriever, error) {
	st := pgxstore.NewStorage(app.DBConn)

	entities, err := st.AllEntities(ctx)
	if err != nil {
		return nil, err
	}
	vocab, err := miner.NewVocabulary(entities)
	if err != nil {
		return nil, err
	}

	var reranker retrieval.Reranker = retrieval.NoopReranker{}
	if util.GetEnvBool("RERANK_ENABLED", false) {
		reranker = &embedReranker{ai: app.AiClient}
	}

	return retrieval.NewRetriever(retrieval.Params{
		Fragments:        st,
		Vector:           &vectorBackend{ai: app.AiClient, st: st},
		Expander:         graph.NewExpander(st),
		Resolver:         miner.NewVocabResolver(vocab),
		Reranker:         reranker,
		Config:           retrieval.ConfigFromEnv(),
		AllowedRelations: allowed,
		RequestTimeout:   time.Duration(util.GetEnvInt("RETRIEVAL_TIMEOUT_SEC", 30)) * time.Second,
	}), nil
}
