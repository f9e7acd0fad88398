package api

import (
	"time"

	"ChainWatch/internal/aggregator"
	"ChainWatch/internal/domain/models"
	drepo "ChainWatch/internal/domain/repository"
	"ChainWatch/internal/pipeline"
	"ChainWatch/internal/swarm"
	"ChainWatch/internal/usecase"
	xhttp "ChainWatch/pkg/http"
	xlogger "ChainWatch/pkg/logger"
	"ChainWatch/pkg/util"

	"github.com/labstack/echo/v4"
)

// StatusEchoHandler exposes the monitor's runtime state over HTTP.
type StatusEchoHandler struct {
	logger  *xlogger.Logger
	loop    *usecase.ControlLoop
	router  *swarm.Router
	queue   *pipeline.OpportunityQueue
	agg     *aggregator.Aggregator
	archive drepo.Archive // nil when clickhouse is disabled
}

func NewStatusEchoHandler(
	logger *xlogger.Logger,
	loop *usecase.ControlLoop,
	router *swarm.Router,
	queue *pipeline.OpportunityQueue,
	agg *aggregator.Aggregator,
	archive drepo.Archive,
) *StatusEchoHandler {
	return &StatusEchoHandler{
		logger:  logger,
		loop:    loop,
		router:  router,
		queue:   queue,
		agg:     agg,
		archive: archive,
	}
}

func (h *StatusEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	g := e.Group("/api/v1")
	g.GET("/status", h.Status)
	g.GET("/opportunities", h.Opportunities)
}

func (h *StatusEchoHandler) Healthz(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{
		"state": h.loop.State().String(),
	})
}

type statusResponse struct {
	State        string                       `json:"state"`
	Swarm        []models.EndpointStatus      `json:"swarm"`
	Queue        map[string]int               `json:"queue"`
	Snapshot     *models.MetricsSnapshot      `json:"snapshot"`
	Latency      float64                      `json:"avg_latency_ms"`
	Success      float64                      `json:"success_rate"`
	RecentErrors []xlogger.AggregatedLogEntry `json:"recent_errors,omitempty"`
}

func (h *StatusEchoHandler) Status(c echo.Context) error {
	snap := h.agg.Snapshot()
	return xhttp.SuccessResponse(c, &statusResponse{
		State: h.loop.State().String(),
		Swarm: h.router.Status(),
		Queue: map[string]int{
			"depth":    h.queue.Len(),
			"capacity": h.queue.Cap(),
		},
		Snapshot:     snap,
		Latency:      float64(snap.AvgLatency()) / float64(time.Millisecond),
		Success:      snap.SuccessRate(),
		RecentErrors: h.logger.RecentErrors(),
	})
}

func (h *StatusEchoHandler) Opportunities(c echo.Context) error {
	if h.archive == nil {
		return xhttp.NotFoundResponse(c, "archive not configured")
	}

	now := time.Now()
	from := util.ParseTimeDefault(c.QueryParam("from"), now.Add(-24*time.Hour))
	to := util.ParseTimeDefault(c.QueryParam("to"), now)
	limit := util.ParseIntDefault(c.QueryParam("limit"), 100)
	category := models.Category(c.QueryParam("category"))

	rows, err := h.archive.Query(c.Request().Context(), category, from, to, limit)
	if err != nil {
		h.logger.Error("archive query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}
