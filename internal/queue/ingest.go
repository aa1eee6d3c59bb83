package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"

	"github.com/sanadlabs/sanad/internal/storage"
	"github.com/sanadlabs/sanad/internal/timing"
	"github.com/sanadlabs/sanad/internal/util"
	"github.com/sanadlabs/sanad/pkg/ai"
	"github.com/sanadlabs/sanad/pkg/common"
	"github.com/sanadlabs/sanad/pkg/loader"
	"github.com/sanadlabs/sanad/pkg/logger"
	"github.com/sanadlabs/sanad/pkg/store"
	pgxstore "github.com/sanadlabs/sanad/pkg/store/pgx"
)

const embedBatchSize = 64

// IngestMessage requests ingestion of one document manifest.
type IngestMessage struct {
	DocumentID string `json:"document_id"`
	SourceKey  string `json:"source_key"`
}

// MineMessage requests relation mining over one ingested document.
type MineMessage struct {
	DocumentID string `json:"document_id"`
}

// ProcessIngestMessage loads a document manifest, fragments it, embeds the
// fragments, and queues the document for relation mining. Re-ingesting a
// document replaces its previous fragments entirely.
func ProcessIngestMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	aiClient ai.EmbeddingClient,
	ch *amqp091.Channel,
	conn *pgxpool.Pool,
	msg string,
) error {
	data := new(IngestMessage)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return err
	}
	if data.DocumentID == "" {
		return fmt.Errorf("ingest message without document id")
	}

	st := pgxstore.NewStorage(conn)
	fail := func(err error) error {
		if stageErr := st.SetDocumentStage(ctx, data.DocumentID, util.StageFailed, 0); stageErr != nil {
			logger.Warn("[Queue] Failed to mark document failed", "document", data.DocumentID, "err", stageErr)
		}
		return err
	}

	if err := st.SetDocumentStage(ctx, data.DocumentID, util.StageFragmenting, 0); err != nil {
		return err
	}

	sourceKey := data.SourceKey
	if sourceKey == "" {
		sourceKey = storage.ManifestKey(data.DocumentID)
	}
	raw, err := storage.GetFile(ctx, s3Client, sourceKey)
	if err != nil {
		return fail(err)
	}

	manifest, err := loader.ParseManifest(raw)
	if err != nil {
		return fail(err)
	}
	if manifest.ID != data.DocumentID {
		return fail(fmt.Errorf("manifest id %q does not match document %q", manifest.ID, data.DocumentID))
	}

	entities, err := loader.VocabEntities(manifest)
	if err != nil {
		return fail(err)
	}
	if err := st.SaveEntities(ctx, entities); err != nil {
		return fail(err)
	}

	frags, err := loader.Fragments(manifest)
	if err != nil {
		return fail(err)
	}

	// replace, not append: retried or re-uploaded manifests must not leave
	// stale fragments behind
	if err := st.PurgeDocument(ctx, data.DocumentID); err != nil {
		return fail(err)
	}
	if err := st.SaveFragments(ctx, frags); err != nil {
		return fail(err)
	}
	logger.Info("[Queue] Fragments stored", "document", data.DocumentID, "fragments", len(frags))

	if err := st.SetDocumentStage(ctx, data.DocumentID, util.StageEmbedding, len(frags)); err != nil {
		return fail(err)
	}
	embedStart := time.Now()
	if err := embedFragments(ctx, aiClient, st, frags); err != nil {
		return fail(err)
	}
	if err := timing.RecordStageTime(ctx, conn, data.DocumentID, util.StageEmbedding, len(frags), time.Since(embedStart).Milliseconds()); err != nil {
		logger.Warn("[Queue] Failed to record stage time", "document", data.DocumentID, "err", err)
	}

	mineMsg, err := json.Marshal(MineMessage{DocumentID: data.DocumentID})
	if err != nil {
		return fail(err)
	}
	if err := PublishFIFO(ch, MineQueue, mineMsg); err != nil {
		return fail(err)
	}

	publishStage(ch, data.DocumentID, util.StageEmbedding)
	return nil
}

// embedFragments generates and stores embeddings in bounded batches.
func embedFragments(ctx context.Context, aiClient ai.EmbeddingClient, st *pgxstore.Storage, frags []*common.Fragment) error {
	return store.ChunkRange(len(frags), embedBatchSize, func(start, end int) error {
		batch := frags[start:end]
		inputs := make([][]byte, 0, len(batch))
		ids := make([]string, 0, len(batch))
		for _, f := range batch {
			inputs = append(inputs, []byte(f.Text))
			ids = append(ids, f.ID)
		}

		embeddings, err := util.RetryWithContext(ctx, 3, func(ctx context.Context) ([][]float32, error) {
			return aiClient.GenerateEmbeddings(ctx, inputs)
		})
		if err != nil {
			return fmt.Errorf("embed fragments [%d:%d): %w", start, end, err)
		}
		return st.SaveEmbeddings(ctx, ids, embeddings)
	})
}

func publishStage(ch *amqp091.Channel, documentID, stage string) {
	event, err := json.Marshal(map[string]string{
		"document_id": documentID,
		"stage":       stage,
	})
	if err != nil {
		return
	}
	if err := PublishTopic(ch, "document.status", event); err != nil {
		logger.Warn("[Queue] Failed to publish status event", "document", documentID, "err", err)
	}
}
