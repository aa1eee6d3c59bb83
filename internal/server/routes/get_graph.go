package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanadlabs/sanad/internal/server/middleware"
	"github.com/sanadlabs/sanad/pkg/common"
	"github.com/sanadlabs/sanad/pkg/graph"
	"github.com/sanadlabs/sanad/pkg/logger"
	pgxstore "github.com/sanadlabs/sanad/pkg/store/pgx"
)

// parseRelations validates an optional relation filter; empty means all
// relation types.
func parseRelations(raw []string) ([]common.RelationType, error) {
	if len(raw) == 0 {
		return common.AllRelationTypes, nil
	}
	out := make([]common.RelationType, 0, len(raw))
	for _, r := range raw {
		relation, err := common.ParseRelationType(r)
		if err != nil {
			return nil, err
		}
		out = append(out, relation)
	}
	return out, nil
}

// GetNeighborsHandler returns the direct neighbors of one graph node through
// approved edges.
func GetNeighborsHandler(c echo.Context) error {
	type neighborsRequest struct {
		EntityType string   `query:"type" validate:"required"`
		EntityID   string   `query:"id" validate:"required"`
		Relations  []string `query:"relation"`
	}

	type neighborsResponse struct {
		Message   string           `json:"message"`
		Neighbors []common.NodeRef `json:"neighbors,omitempty"`
	}

	data := new(neighborsRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, neighborsResponse{
			Message: "Invalid request",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, neighborsResponse{
			Message: "Invalid request",
		})
	}

	entityType, err := common.ParseEntityType(data.EntityType)
	if err != nil {
		return c.JSON(http.StatusBadRequest, neighborsResponse{
			Message: "Unknown entity type " + data.EntityType,
		})
	}
	allowed, err := parseRelations(data.Relations)
	if err != nil {
		return c.JSON(http.StatusBadRequest, neighborsResponse{
			Message: err.Error(),
		})
	}

	ctx := c.Request().Context()
	st := pgxstore.NewStorage(c.(*middleware.AppContext).App.DBConn)

	node := common.NodeRef{Type: entityType, ID: data.EntityID}
	neighbors, err := st.Neighbors(ctx, node, allowed)
	if err != nil {
		logger.Error("[Graph] Failed to load neighbors", "node", data.EntityID, "err", err)
		return c.JSON(http.StatusInternalServerError, neighborsResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, neighborsResponse{
		Message:   "Neighbors loaded",
		Neighbors: neighbors,
	})
}

// GetExpandHandler walks the typed graph breadth-first from one node and
// returns each reachable node at its minimum depth.
func GetExpandHandler(c echo.Context) error {
	type expandRequest struct {
		EntityType string   `query:"type" validate:"required"`
		EntityID   string   `query:"id" validate:"required"`
		Depth      int      `query:"depth"`
		Relations  []string `query:"relation"`
	}

	type expandResponse struct {
		Message string      `json:"message"`
		Hops    []graph.Hop `json:"hops,omitempty"`
	}

	data := new(expandRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, expandResponse{
			Message: "Invalid request",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, expandResponse{
			Message: "Invalid request",
		})
	}

	entityType, err := common.ParseEntityType(data.EntityType)
	if err != nil {
		return c.JSON(http.StatusBadRequest, expandResponse{
			Message: "Unknown entity type " + data.EntityType,
		})
	}
	allowed, err := parseRelations(data.Relations)
	if err != nil {
		return c.JSON(http.StatusBadRequest, expandResponse{
			Message: err.Error(),
		})
	}

	depth := data.Depth
	if depth < 1 {
		depth = 1
	}

	ctx := c.Request().Context()
	st := pgxstore.NewStorage(c.(*middleware.AppContext).App.DBConn)

	expander := graph.NewExpander(st)
	hops, err := expander.Expand(ctx, common.NodeRef{Type: entityType, ID: data.EntityID}, depth, allowed)
	if err != nil {
		logger.Error("[Graph] Failed to expand", "node", data.EntityID, "err", err)
		return c.JSON(http.StatusInternalServerError, expandResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, expandResponse{
		Message: "Graph expanded",
		Hops:    hops,
	})
}
