package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"EquityPulse/internal/domain/models"
	domrepo "EquityPulse/internal/domain/repository"
	"EquityPulse/internal/service/ratelimit"
	"EquityPulse/internal/usecase"
	xhttp "EquityPulse/pkg/http"
	applogger "EquityPulse/pkg/logger"
	"EquityPulse/pkg/util"

	"github.com/labstack/echo/v4"
)

// FeatureReader serves persisted features.
type FeatureReader interface {
	Return(ctx context.Context, securityID int64, asOf time.Time) (*models.ReturnRecord, error)
	LatestReturns(ctx context.Context) ([]models.ReturnRecord, error)
	BenchmarkReturn(ctx context.Context, benchmarkID int64, asOf time.Time) (*models.BenchmarkReturnRecord, error)
	Portfolio(ctx context.Context, asOf time.Time) (*models.PortfolioRecord, error)
	Triage(ctx context.Context, f models.TriageFilter) ([]models.TriageRow, error)
}

// HealthChecker reports backend reachability.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// ComputeLimit is the token bucket guarding POST /api/features/compute.
type ComputeLimit struct {
	Burst      float64
	RefillRate float64
	RunTimeout time.Duration
}

// FeaturesEchoHandler exposes the feature read API and the manual run trigger.
type FeaturesEchoHandler struct {
	logger  *applogger.Logger
	query   FeatureReader
	runner  usecase.FeatureRunner
	health  HealthChecker
	limiter *ratelimit.Limiter
	limit   ComputeLimit
}

func NewFeaturesEchoHandler(
	logger *applogger.Logger,
	query FeatureReader,
	runner usecase.FeatureRunner,
	health HealthChecker,
	limiter *ratelimit.Limiter,
	limit ComputeLimit,
) *FeaturesEchoHandler {
	if limit.Burst <= 0 {
		limit.Burst = 2
	}
	if limit.RunTimeout <= 0 {
		limit.RunTimeout = 20 * time.Minute
	}
	return &FeaturesEchoHandler{
		logger:  logger,
		query:   query,
		runner:  runner,
		health:  health,
		limiter: limiter,
		limit:   limit,
	}
}

func (h *FeaturesEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)

	g := e.Group("/api")
	g.GET("/features/returns", h.Return)
	g.GET("/features/returns/latest", h.LatestReturns)
	g.GET("/features/benchmarks", h.BenchmarkReturn)
	g.POST("/features/compute", h.Compute)
	g.GET("/portfolio", h.Portfolio)
	g.GET("/portfolio/latest", h.LatestPortfolio)
	g.GET("/triage", h.Triage)
}

func (h *FeaturesEchoHandler) Healthz(c echo.Context) error {
	if err := h.health.Health(c.Request().Context()); err != nil {
		h.logger.Warn("health check failed", applogger.Error(err))
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *FeaturesEchoHandler) Return(c echo.Context) error {
	req := &models.ReturnRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	asOf, _ := util.ParseDate(req.AsOf)

	res, err := h.query.Return(c.Request().Context(), req.SecurityID, asOf)
	if err != nil {
		return h.fail(c, "returns", err, "no features for security %d", req.SecurityID)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *FeaturesEchoHandler) LatestReturns(c echo.Context) error {
	rows, err := h.query.LatestReturns(c.Request().Context())
	if err != nil {
		return h.fail(c, "latest returns", err, "no features computed yet")
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *FeaturesEchoHandler) BenchmarkReturn(c echo.Context) error {
	req := &models.BenchmarkReturnRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	asOf, _ := util.ParseDate(req.AsOf)

	res, err := h.query.BenchmarkReturn(c.Request().Context(), req.BenchmarkID, asOf)
	if err != nil {
		return h.fail(c, "benchmark returns", err, "no features for benchmark %d on %s", req.BenchmarkID, req.AsOf)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *FeaturesEchoHandler) Portfolio(c echo.Context) error {
	req := &models.PortfolioRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	asOf, _ := util.ParseDate(req.AsOf)
	return h.portfolio(c, asOf)
}

func (h *FeaturesEchoHandler) LatestPortfolio(c echo.Context) error {
	return h.portfolio(c, time.Time{})
}

func (h *FeaturesEchoHandler) portfolio(c echo.Context, asOf time.Time) error {
	res, err := h.query.Portfolio(c.Request().Context(), asOf)
	if err != nil {
		return h.fail(c, "portfolio", err, "no portfolio features")
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *FeaturesEchoHandler) Triage(c echo.Context) error {
	req := &models.TriageRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, err := h.query.Triage(c.Request().Context(), models.TriageFilter{
		SortBy:    req.SortBy,
		MinWeight: req.MinWeight,
		Limit:     req.Limit,
	})
	if err != nil {
		return h.fail(c, "triage", err, "no features computed yet")
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// Compute runs the engine synchronously for the requested date.
func (h *FeaturesEchoHandler) Compute(c echo.Context) error {
	if !h.limiter.Allow("compute:"+c.RealIP(), h.limit.Burst, h.limit.RefillRate) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("compute rate limit exceeded"))
	}
	req := &models.ComputeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	asOf, _ := util.ParseDate(req.AsOf)

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.limit.RunTimeout)
	defer cancel()
	report, err := h.runner.Run(ctx, asOf)
	if errors.Is(err, usecase.ErrRunInProgress) {
		return xhttp.AppErrorResponse(c, xhttp.ConflictError("a run for this date is already in progress"))
	}
	if err != nil {
		h.logger.Error("compute usecase error", applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, report)
}

// fail maps ErrNotFound to 404 and everything else to 500.
func (h *FeaturesEchoHandler) fail(c echo.Context, op string, err error, format string, a ...interface{}) error {
	if errors.Is(err, domrepo.ErrNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf(format, a...))
	}
	h.logger.Error(op+" usecase error", applogger.Error(err))
	return xhttp.AppErrorResponse(c, err)
}

var _ xhttp.Handler = (*FeaturesEchoHandler)(nil)
