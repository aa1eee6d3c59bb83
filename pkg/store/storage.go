package store

import (
	"context"
	"errors"
	"time"

	"github.com/sanadlabs/sanad/pkg/common"
)

// ErrIntegrity marks a persistence integrity failure: an edge that could not
// be resolved to a stored id, or a justification span whose fragment, offsets,
// or quote do not check out against the stored text. Integrity failures are
// fatal for the ingestion batch; silently skipping them would open an
// invisible gap between a claimed citation and reality.
var ErrIntegrity = errors.New("persistence integrity failure")

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// FragmentStorage persists and queries evidence fragments. Fragment text and
// provenance are write-once: saving an existing fragment id with different
// text is an integrity failure, not an update.
type FragmentStorage interface {
	SaveFragments(ctx context.Context, frags []*common.Fragment) error
	FragmentByID(ctx context.Context, id string) (*common.Fragment, error)
	FragmentsByEntity(ctx context.Context, ref common.NodeRef) ([]*common.Fragment, error)
	FragmentsByDocument(ctx context.Context, sourceDocumentID string) ([]*common.Fragment, error)

	// PurgeDocument removes a document's fragments together with their
	// embeddings, justification spans, and any edges left ungrounded, in one
	// transaction. This is the only deletion path in the system.
	PurgeDocument(ctx context.Context, sourceDocumentID string) error

	SaveEmbeddings(ctx context.Context, fragmentIDs []string, embeddings [][]float32) error
	TopKByEmbedding(ctx context.Context, embedding []float32, k int) ([]*common.Fragment, error)
}

// EdgeStorage persists and queries the typed relationship graph.
type EdgeStorage interface {
	// UpsertMinedEdges stores one document's mined edges as a single
	// transaction: insert-or-lookup by natural key, idempotent span inserts,
	// strength recomputed from the stored span count. Any integrity failure
	// rolls the whole batch back and returns ErrIntegrity.
	UpsertMinedEdges(ctx context.Context, sourceDocumentID string, edges []*common.GraphEdge) error

	Neighbors(ctx context.Context, node common.NodeRef, allowed []common.RelationType) ([]common.NodeRef, error)
	EntitiesByReference(ctx context.Context, referenceID string) ([]common.NodeRef, error)

	// SetEdgeStatus moves an edge between pending and approved; curation only.
	SetEdgeStatus(ctx context.Context, from, to common.NodeRef, relation common.RelationType, status common.EdgeStatus) error
}

// Document is the ingestion-tracking record for one source document. The
// fragments themselves carry the document id; this row only tracks pipeline
// state for status endpoints.
type Document struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	SourceKey     string    `json:"source_key"`
	Stage         string    `json:"stage"`
	FragmentCount int       `json:"fragment_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DocumentStorage tracks documents through the ingestion pipeline.
type DocumentStorage interface {
	CreateDocument(ctx context.Context, doc *Document) error
	DocumentByID(ctx context.Context, id string) (*Document, error)
	ListDocuments(ctx context.Context) ([]*Document, error)
	SetDocumentStage(ctx context.Context, id, stage string, fragmentCount int) error
	DeleteDocument(ctx context.Context, id string) error
}

// ChunkRange invokes fn over [start,end) windows of at most chunkSize until
// total is covered.
func ChunkRange(total, chunkSize int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = total
	}
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

// DedupeStrings removes empty and repeated values, preserving first-seen order.
func DedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
