package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"

	"github.com/sanadlabs/sanad/internal/timing"
	"github.com/sanadlabs/sanad/internal/util"
	"github.com/sanadlabs/sanad/pkg/leaselock"
	"github.com/sanadlabs/sanad/pkg/logger"
	"github.com/sanadlabs/sanad/pkg/miner"
	pgxstore "github.com/sanadlabs/sanad/pkg/store/pgx"
)

// ProcessMineMessage mines relationship edges over one document's fragments
// and persists them transactionally. The per-document lease keeps mining and
// purging from interleaving on the same document.
func ProcessMineMessage(
	ctx context.Context,
	ch *amqp091.Channel,
	conn *pgxpool.Pool,
	msg string,
) error {
	data := new(MineMessage)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return err
	}
	if data.DocumentID == "" {
		return fmt.Errorf("mine message without document id")
	}

	st := pgxstore.NewStorage(conn)
	fail := func(err error) error {
		if stageErr := st.SetDocumentStage(ctx, data.DocumentID, util.StageFailed, 0); stageErr != nil {
			logger.Warn("[Queue] Failed to mark document failed", "document", data.DocumentID, "err", stageErr)
		}
		return err
	}

	if err := st.SetDocumentStage(ctx, data.DocumentID, util.StageMining, 0); err != nil {
		return err
	}

	lockClient := leaselock.New(conn)
	mineStart := time.Now()
	var mined int
	err := lockClient.WithLease(ctx, "document:"+data.DocumentID, leaselock.Options{
		TTL:         10 * time.Minute,
		RenewEvery:  4 * time.Minute,
		Wait:        true,
		TokenPrefix: "mine/" + data.DocumentID + "/",
	}, func(ctx context.Context) error {
		entities, err := st.AllEntities(ctx)
		if err != nil {
			return err
		}
		vocab, err := miner.NewVocabulary(entities)
		if err != nil {
			return err
		}

		frags, err := st.FragmentsByDocument(ctx, data.DocumentID)
		if err != nil {
			return err
		}
		if len(frags) == 0 {
			logger.Warn("[Queue] No fragments to mine", "document", data.DocumentID)
			return nil
		}
		mined = len(frags)

		m := miner.New(vocab, miner.DefaultLexicon())
		runner := miner.NewRunner(m, st, util.GetEnvInt("MINER_PARALLEL", 4))
		return runner.MineDocument(ctx, data.DocumentID, frags)
	})
	if err != nil {
		return fail(err)
	}

	if err := timing.RecordStageTime(ctx, conn, data.DocumentID, util.StageMining, mined, time.Since(mineStart).Milliseconds()); err != nil {
		logger.Warn("[Queue] Failed to record stage time", "document", data.DocumentID, "err", err)
	}

	if err := st.SetDocumentStage(ctx, data.DocumentID, util.StageCompleted, 0); err != nil {
		return err
	}
	publishStage(ch, data.DocumentID, util.StageCompleted)
	return nil
}
