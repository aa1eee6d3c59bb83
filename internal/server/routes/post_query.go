package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanadlabs/sanad/internal/server/middleware"
	"github.com/sanadlabs/sanad/pkg/ai"
	"github.com/sanadlabs/sanad/pkg/common"
	"github.com/sanadlabs/sanad/pkg/logger"
	"github.com/sanadlabs/sanad/pkg/retrieval"
)

// QueryHandler runs evidence retrieval for one question and returns the
// merged, ranked evidence set.
func QueryHandler(c echo.Context) error {
	type queryEntity struct {
		Type       string  `json:"type" validate:"required"`
		ID         string  `json:"id" validate:"required"`
		Confidence float64 `json:"confidence"`
	}

	type queryRequest struct {
		Query      string        `json:"query" validate:"required"`
		Entities   []queryEntity `json:"entities"`
		TopK       int           `json:"top_k"`
		GraphDepth int           `json:"graph_depth"`
		Relations  []string      `json:"relations"`
	}

	type queryResponse struct {
		Message string            `json:"message"`
		Result  *retrieval.Result `json:"result,omitempty"`
		Metrics *ai.ModelMetrics  `json:"metrics,omitempty"`
	}

	data := new(queryRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, queryResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, queryResponse{
			Message: "Invalid request body",
		})
	}

	resolved := make([]common.ResolvedEntity, 0, len(data.Entities))
	for _, e := range data.Entities {
		entityType, err := common.ParseEntityType(e.Type)
		if err != nil {
			return c.JSON(http.StatusBadRequest, queryResponse{
				Message: "Unknown entity type " + e.Type,
			})
		}
		resolved = append(resolved, common.ResolvedEntity{
			Type:       entityType,
			ID:         e.ID,
			Confidence: e.Confidence,
		})
	}

	allowed := make([]common.RelationType, 0, len(data.Relations))
	for _, r := range data.Relations {
		relation, err := common.ParseRelationType(r)
		if err != nil {
			return c.JSON(http.StatusBadRequest, queryResponse{
				Message: "Unknown relation type " + r,
			})
		}
		allowed = append(allowed, relation)
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	retriever, err := buildRetriever(ctx, app, allowed)
	if err != nil {
		logger.Error("[Query] Failed to build retriever", "err", err)
		return c.JSON(http.StatusInternalServerError, queryResponse{
			Message: "Internal server error",
		})
	}

	result := retriever.Retrieve(ctx, data.Query, resolved, data.TopK, data.GraphDepth)
	metrics := app.AiClient.GetMetrics()
	return c.JSON(http.StatusOK, queryResponse{
		Message: "Query processed successfully",
		Result:  &result,
		Metrics: &metrics,
	})
}
