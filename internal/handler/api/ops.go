package api

import (
	"context"
	"net/http"
	"time"

	drepo "PolySentry/internal/domain/repository"
	"PolySentry/internal/services/risk"
	"PolySentry/internal/usecase"
	xhttp "PolySentry/pkg/http"
	xlogger "PolySentry/pkg/logger"

	"github.com/labstack/echo/v4"
)

// OpsHandler exposes the operational read API: daily stats, the live
// risk ledger, recent decisions, and component health.
type OpsHandler struct {
	logger  *xlogger.Logger
	tracker *usecase.Tracker
	risk    *risk.Manager
	archive drepo.Archive
	ledger  drepo.Ledger
}

func NewOpsHandler(logger *xlogger.Logger, tracker *usecase.Tracker, rm *risk.Manager, archive drepo.Archive, ledger drepo.Ledger) *OpsHandler {
	return &OpsHandler{logger: logger, tracker: tracker, risk: rm, archive: archive, ledger: ledger}
}

func (h *OpsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.GET("/stats", h.Stats)
	g.GET("/risk", h.Risk)
	g.GET("/decisions", h.Decisions)
}

func (h *OpsHandler) Stats(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.tracker.Stats())
}

func (h *OpsHandler) Risk(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.risk.Snapshot())
}

type decisionsRequest struct {
	Limit int `query:"limit" default:"50" validate:"gte=1,lte=500"`
}

func (h *OpsHandler) Decisions(c echo.Context) error {
	req := &decisionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, err := h.archive.RecentDecisions(c.Request().Context(), req.Limit)
	if err != nil {
		h.logger.Error("recent decisions query failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

type componentHealth struct {
	Ledger  string `json:"ledger"`
	Archive string `json:"archive"`
}

func (h *OpsHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	status := componentHealth{Ledger: "ok", Archive: "ok"}
	healthy := true
	if err := h.ledger.Health(ctx); err != nil {
		status.Ledger = err.Error()
		healthy = false
	}
	if err := h.archive.Health(ctx); err != nil {
		status.Archive = err.Error()
		healthy = false
	}
	if !healthy {
		h.logger.Warn("health check degraded",
			xlogger.String("ledger", status.Ledger),
			xlogger.String("archive", status.Archive))
		return c.JSON(http.StatusServiceUnavailable, status)
	}
	return c.JSON(http.StatusOK, status)
}
