package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanadlabs/sanad/internal/server/middleware"
	"github.com/sanadlabs/sanad/pkg/common"
	"github.com/sanadlabs/sanad/pkg/logger"
	"github.com/sanadlabs/sanad/pkg/store"
	pgxstore "github.com/sanadlabs/sanad/pkg/store/pgx"
)

// SetEdgeStatusHandler approves or demotes one mined edge. Only approved edges
// participate in graph traversal.
func SetEdgeStatusHandler(c echo.Context) error {
	type edgeStatusRequest struct {
		FromType string `json:"from_type" validate:"required"`
		FromID   string `json:"from_id" validate:"required"`
		ToType   string `json:"to_type" validate:"required"`
		ToID     string `json:"to_id" validate:"required"`
		Relation string `json:"relation" validate:"required"`
		Status   string `json:"status" validate:"required,oneof=approved pending"`
	}

	type edgeStatusResponse struct {
		Message string `json:"message"`
	}

	data := new(edgeStatusRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, edgeStatusResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, edgeStatusResponse{
			Message: "Invalid request body",
		})
	}

	fromType, err := common.ParseEntityType(data.FromType)
	if err != nil {
		return c.JSON(http.StatusBadRequest, edgeStatusResponse{
			Message: "Unknown entity type " + data.FromType,
		})
	}
	toType, err := common.ParseEntityType(data.ToType)
	if err != nil {
		return c.JSON(http.StatusBadRequest, edgeStatusResponse{
			Message: "Unknown entity type " + data.ToType,
		})
	}
	relation, err := common.ParseRelationType(data.Relation)
	if err != nil {
		return c.JSON(http.StatusBadRequest, edgeStatusResponse{
			Message: "Unknown relation type " + data.Relation,
		})
	}

	ctx := c.Request().Context()
	st := pgxstore.NewStorage(c.(*middleware.AppContext).App.DBConn)

	err = st.SetEdgeStatus(
		ctx,
		common.NodeRef{Type: fromType, ID: data.FromID},
		common.NodeRef{Type: toType, ID: data.ToID},
		relation,
		common.EdgeStatus(data.Status),
	)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, edgeStatusResponse{
			Message: "Edge not found",
		})
	}
	if err != nil {
		logger.Error("[Edges] Failed to set edge status", "err", err)
		return c.JSON(http.StatusInternalServerError, edgeStatusResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, edgeStatusResponse{
		Message: "Edge status updated",
	})
}
