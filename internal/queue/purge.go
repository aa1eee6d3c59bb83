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
	"github.com/sanadlabs/sanad/pkg/leaselock"
	"github.com/sanadlabs/sanad/pkg/logger"
	pgxstore "github.com/sanadlabs/sanad/pkg/store/pgx"
)

// PurgeMessage requests removal of one document and everything derived from it.
type PurgeMessage struct {
	DocumentID string `json:"document_id"`
	SourceKey  string `json:"source_key"`
}

// ProcessPurgeMessage removes a document's fragments, embeddings, spans, and
// any edges left ungrounded, then drops the tracking row and the stored
// manifest. This is the only deletion path in the system.
func ProcessPurgeMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	ch *amqp091.Channel,
	conn *pgxpool.Pool,
	msg string,
) error {
	data := new(PurgeMessage)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return err
	}
	if data.DocumentID == "" {
		return fmt.Errorf("purge message without document id")
	}

	st := pgxstore.NewStorage(conn)
	lockClient := leaselock.New(conn)

	start := time.Now()
	err := lockClient.WithLease(ctx, "document:"+data.DocumentID, leaselock.Options{
		TTL:         10 * time.Minute,
		RenewEvery:  4 * time.Minute,
		Wait:        true,
		TokenPrefix: "purge/" + data.DocumentID + "/",
	}, func(ctx context.Context) error {
		return st.PurgeDocument(ctx, data.DocumentID)
	})
	if err != nil {
		return err
	}

	if err := st.DeleteDocument(ctx, data.DocumentID); err != nil {
		logger.Warn("[Queue] Failed to delete document row", "document", data.DocumentID, "err", err)
	}

	sourceKey := data.SourceKey
	if sourceKey == "" {
		sourceKey = storage.ManifestKey(data.DocumentID)
	}
	if err := storage.DeleteFile(ctx, s3Client, sourceKey); err != nil {
		logger.Warn("[Queue] Failed to delete manifest object", "key", sourceKey, "err", err)
	}

	logger.Info("[Queue] Document purged", "document", data.DocumentID, "duration_sec", time.Since(start).Seconds())
	return nil
}
