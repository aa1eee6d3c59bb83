package routes

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanadlabs/sanad/internal/queue"
	"github.com/sanadlabs/sanad/internal/server/middleware"
	"github.com/sanadlabs/sanad/internal/storage"
	"github.com/sanadlabs/sanad/internal/timing"
	"github.com/sanadlabs/sanad/internal/util"
	"github.com/sanadlabs/sanad/pkg/loader"
	"github.com/sanadlabs/sanad/pkg/logger"
	"github.com/sanadlabs/sanad/pkg/store"
	pgxstore "github.com/sanadlabs/sanad/pkg/store/pgx"
)

type documentView struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Stage         string `json:"stage"`
	Progress      int    `json:"progress"`
	FragmentCount int    `json:"fragment_count"`
	EtaMs         int64  `json:"eta_ms,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func viewOf(doc *store.Document) documentView {
	return documentView{
		ID:            doc.ID,
		Title:         doc.Title,
		Stage:         doc.Stage,
		Progress:      int(util.IngestProgressPercentage(doc.Stage)),
		FragmentCount: doc.FragmentCount,
		CreatedAt:     doc.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:     doc.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// CreateDocumentHandler accepts a document manifest, stores it, and queues the
// document for ingestion. The request body is the manifest JSON itself; its
// declared id becomes the document id. Re-uploading a manifest replaces the
// document's previous fragments.
func CreateDocumentHandler(c echo.Context) error {
	type createDocumentResponse struct {
		Message  string        `json:"message"`
		Document *documentView `json:"document,omitempty"`
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, createDocumentResponse{
			Message: "Invalid request body",
		})
	}

	manifest, err := loader.ParseManifest(body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, createDocumentResponse{
			Message: "Invalid manifest: " + err.Error(),
		})
	}

	// validate entities and entries up front so broken manifests are rejected
	// at upload instead of failing inside the worker
	if _, err := loader.VocabEntities(manifest); err != nil {
		return c.JSON(http.StatusBadRequest, createDocumentResponse{
			Message: "Invalid manifest: " + err.Error(),
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	key, err := storage.PutManifest(ctx, app.S3, manifest.ID, body)
	if err != nil {
		logger.Error("[Documents] Failed to store manifest", "document", manifest.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, createDocumentResponse{
			Message: "Internal server error",
		})
	}

	st := pgxstore.NewStorage(app.DBConn)
	doc := &store.Document{
		ID:        manifest.ID,
		Title:     manifest.Title,
		SourceKey: key,
		Stage:     util.StagePending,
	}
	if err := st.CreateDocument(ctx, doc); err != nil {
		logger.Error("[Documents] Failed to create document", "document", manifest.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, createDocumentResponse{
			Message: "Internal server error",
		})
	}

	msg, err := json.Marshal(queue.IngestMessage{
		DocumentID: manifest.ID,
		SourceKey:  key,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, createDocumentResponse{
			Message: "Internal server error",
		})
	}
	if err := queue.PublishFIFO(app.Queue, queue.IngestQueue, msg); err != nil {
		logger.Error("[Documents] Failed to queue ingestion", "document", manifest.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, createDocumentResponse{
			Message: "Internal server error",
		})
	}

	stored, err := st.DocumentByID(ctx, manifest.ID)
	if err != nil {
		logger.Error("[Documents] Failed to reload document", "document", manifest.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, createDocumentResponse{
			Message: "Internal server error",
		})
	}
	view := viewOf(stored)
	return c.JSON(http.StatusOK, createDocumentResponse{
		Message:  "Document queued for ingestion",
		Document: &view,
	})
}

// GetDocumentsHandler lists all documents with their pipeline progress.
func GetDocumentsHandler(c echo.Context) error {
	type listDocumentsResponse struct {
		Message   string         `json:"message"`
		Documents []documentView `json:"documents"`
	}

	ctx := c.Request().Context()
	st := pgxstore.NewStorage(c.(*middleware.AppContext).App.DBConn)

	docs, err := st.ListDocuments(ctx)
	if err != nil {
		logger.Error("[Documents] Failed to list documents", "err", err)
		return c.JSON(http.StatusInternalServerError, listDocumentsResponse{
			Message: "Internal server error",
		})
	}

	views := make([]documentView, 0, len(docs))
	for _, doc := range docs {
		views = append(views, viewOf(doc))
	}
	return c.JSON(http.StatusOK, listDocumentsResponse{
		Message:   "Documents loaded",
		Documents: views,
	})
}

// GetDocumentHandler returns one document with its pipeline progress.
func GetDocumentHandler(c echo.Context) error {
	type getDocumentResponse struct {
		Message  string        `json:"message"`
		Document *documentView `json:"document,omitempty"`
	}

	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, getDocumentResponse{
			Message: "Invalid request",
		})
	}

	ctx := c.Request().Context()
	conn := c.(*middleware.AppContext).App.DBConn
	st := pgxstore.NewStorage(conn)

	doc, err := st.DocumentByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, getDocumentResponse{
			Message: "Document not found",
		})
	}
	if err != nil {
		logger.Error("[Documents] Failed to load document", "document", id, "err", err)
		return c.JSON(http.StatusInternalServerError, getDocumentResponse{
			Message: "Internal server error",
		})
	}

	view := viewOf(doc)
	if (doc.Stage == util.StageEmbedding || doc.Stage == util.StageMining) && doc.FragmentCount > 0 {
		eta, err := timing.PredictStageTime(ctx, conn, doc.Stage, doc.FragmentCount)
		if err != nil {
			logger.Warn("[Documents] Failed to predict stage time", "document", id, "err", err)
		} else {
			view.EtaMs = eta
		}
	}
	return c.JSON(http.StatusOK, getDocumentResponse{
		Message:  "Document loaded",
		Document: &view,
	})
}

// DeleteDocumentHandler queues a document for purging. Deletion is
// asynchronous: the worker removes fragments, embeddings, spans, and any edges
// left without a justification span.
func DeleteDocumentHandler(c echo.Context) error {
	type deleteDocumentResponse struct {
		Message string `json:"message"`
	}

	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, deleteDocumentResponse{
			Message: "Invalid request",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App
	st := pgxstore.NewStorage(app.DBConn)

	doc, err := st.DocumentByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, deleteDocumentResponse{
			Message: "Document not found",
		})
	}
	if err != nil {
		logger.Error("[Documents] Failed to load document", "document", id, "err", err)
		return c.JSON(http.StatusInternalServerError, deleteDocumentResponse{
			Message: "Internal server error",
		})
	}

	msg, err := json.Marshal(queue.PurgeMessage{
		DocumentID: doc.ID,
		SourceKey:  doc.SourceKey,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, deleteDocumentResponse{
			Message: "Internal server error",
		})
	}
	if err := queue.PublishFIFO(app.Queue, queue.PurgeQueue, msg); err != nil {
		logger.Error("[Documents] Failed to queue purge", "document", id, "err", err)
		return c.JSON(http.StatusInternalServerError, deleteDocumentResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, deleteDocumentResponse{
		Message: "Document queued for deletion",
	})
}
