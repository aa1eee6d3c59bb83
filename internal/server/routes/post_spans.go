package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanadlabs/sanad/internal/server/middleware"
	"github.com/sanadlabs/sanad/internal/util"
	"github.com/sanadlabs/sanad/pkg/common"
	"github.com/sanadlabs/sanad/pkg/logger"
	"github.com/sanadlabs/sanad/pkg/store"
	pgxstore "github.com/sanadlabs/sanad/pkg/store/pgx"
	"github.com/sanadlabs/sanad/pkg/textspan"
)

type spanResponse struct {
	Message    string                 `json:"message"`
	Resolution *common.SpanResolution `json:"resolution,omitempty"`
}

// ResolveQuoteHandler resolves a literal quote to byte offsets inside one
// fragment. Quotes that do not occur verbatim come back unresolved; offsets
// are never guessed.
func ResolveQuoteHandler(c echo.Context) error {
	type resolveQuoteRequest struct {
		FragmentID string `json:"fragment_id" validate:"required"`
		Quote      string `json:"quote" validate:"required"`
	}

	data := new(resolveQuoteRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, spanResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, spanResponse{
			Message: "Invalid request body",
		})
	}

	fragment, ok := loadFragment(c, data.FragmentID)
	if !ok {
		return nil
	}

	resolution := textspan.ResolveQuote(fragment.ID, fragment.Text, data.Quote)
	return c.JSON(http.StatusOK, spanResponse{
		Message:    "Quote resolved",
		Resolution: &resolution,
	})
}

// ResolveAnchorHandler resolves free-form anchor text (typically a generated
// answer sentence) to the best-overlapping sentence span of one fragment.
func ResolveAnchorHandler(c echo.Context) error {
	type resolveAnchorRequest struct {
		FragmentID       string `json:"fragment_id" validate:"required"`
		Anchor           string `json:"anchor" validate:"required"`
		MinOverlapTokens int    `json:"min_overlap_tokens"`
		MaxQuoteWords    int    `json:"max_quote_words"`
	}

	data := new(resolveAnchorRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, spanResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, spanResponse{
			Message: "Invalid request body",
		})
	}

	minOverlap := data.MinOverlapTokens
	if minOverlap < 1 {
		minOverlap = util.GetEnvInt("SPAN_MIN_OVERLAP_TOKENS", 2)
	}
	maxWords := data.MaxQuoteWords
	if maxWords < 1 {
		maxWords = util.GetEnvInt("SPAN_MAX_QUOTE_WORDS", 30)
	}

	fragment, ok := loadFragment(c, data.FragmentID)
	if !ok {
		return nil
	}

	resolution := textspan.ResolveAnchor(fragment.ID, fragment.Text, data.Anchor, minOverlap, maxWords)
	return c.JSON(http.StatusOK, spanResponse{
		Message:    "Anchor resolved",
		Resolution: &resolution,
	})
}

// loadFragment fetches one fragment and writes the error response itself when
// the fetch fails.
func loadFragment(c echo.Context, fragmentID string) (*common.Fragment, bool) {
	ctx := c.Request().Context()
	conn := c.(*middleware.AppContext).App.DBConn

	st := pgxstore.NewStorage(conn)
	fragment, err := st.FragmentByID(ctx, fragmentID)
	if errors.Is(err, store.ErrNotFound) {
		_ = c.JSON(http.StatusNotFound, spanResponse{
			Message: "Fragment not found",
		})
		return nil, false
	}
	if err != nil {
		logger.Error("[Spans] Failed to load fragment", "fragment", fragmentID, "err", err)
		_ = c.JSON(http.StatusInternalServerError, spanResponse{
			Message: "Internal server error",
		})
		return nil, false
	}
	return fragment, true
}
