package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/navuara/flightsearch/internal/models"
	"github.com/navuara/flightsearch/internal/providers"
	"github.com/navuara/flightsearch/internal/search"
)

// Searcher resolves a validated query; *search.Orchestrator implements it.
type Searcher interface {
	Search(ctx context.Context, q models.SearchQuery) (search.Response, error)
}

type SearchHandler struct {
	searcher Searcher
	logger   *slog.Logger
}

func NewSearchHandler(s Searcher, logger *slog.Logger) *SearchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchHandler{
		searcher: s,
		logger:   logger,
	}
}

// Search serves GET (query string) and POST (JSON body) searches.
func (h *SearchHandler) Search(c echo.Context) error {
	startTime := time.Now()

	var req models.SearchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to parse request: " + bindMessage(err),
			Code:    http.StatusBadRequest,
		})
	}

	q, err := req.ToQuery()
	if err != nil {
		return h.errorResponse(c, err)
	}

	resp, err := h.searcher.Search(c.Request().Context(), q)
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, search.NewSearchResponse(q, req.Filters(), resp, time.Since(startTime)))
}

// errorResponse maps validation and upstream failures onto status codes.
// Transient upstream failures are flagged retryable so clients can back off.
func (h *SearchHandler) errorResponse(c echo.Context, err error) error {
	if models.IsValidationError(err) {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
	}

	if errors.Is(err, context.Canceled) {
		// The client went away; nobody reads this body.
		return c.NoContent(499)
	}

	status := http.StatusBadGateway
	body := models.ErrorResponse{
		Error:     "upstream_unavailable",
		Message:   "Flight search is temporarily unavailable, please try again",
		Retryable: true,
	}

	if upErr, ok := providers.AsUpstreamError(err); ok {
		switch upErr.Kind {
		case providers.KindBadRequest:
			status = http.StatusBadRequest
			body.Error = "upstream_rejected"
			body.Message = "The flight provider rejected the search: " + upErr.Message
			body.Retryable = false
		case providers.KindTimeout:
			status = http.StatusGatewayTimeout
			body.Error = "upstream_timeout"
			body.Message = "The flight provider did not respond in time, please try again"
		}
	} else if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
		body.Error = "upstream_timeout"
		body.Message = "The flight provider did not respond in time, please try again"
	}
	body.Code = status

	h.logger.Warn("search failed",
		"status", status,
		"error", err,
		"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
	)
	return c.JSON(status, body)
}

func bindMessage(err error) string {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, ok := he.Message.(string); ok {
			return msg
		}
	}
	return err.Error()
}

func HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
