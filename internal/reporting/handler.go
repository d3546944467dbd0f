package reporting

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	v1 "github.com/storelens-lab/storelens/internal/api/v1"
	httperr "github.com/storelens-lab/storelens/internal/core/errors"
	"github.com/storelens-lab/storelens/internal/core/storage"
)

// RegisterRoutes registers all reporting API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/metrics/customers/:id", s.HandleCustomerMetrics)
	r.GET("/v1/metrics/daily", s.HandleDailyMetrics)
	r.GET("/v1/segments", s.HandleSegments)
	r.GET("/v1/cohorts", s.HandleCohorts)
	r.GET("/v1/runs", s.HandleRecentRuns)
	r.GET("/v1/dashboard", s.HandleDashboard)
	r.POST("/v1/runs/:source", s.HandleTriggerRun)
}

// HandleCustomerMetrics handles GET /v1/metrics/customers/:id
func (s *Service) HandleCustomerMetrics(c *gin.Context) {
	var uri struct {
		ID int64 `uri:"id" binding:"required"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidParamsError,
			Message:   "Invalid customer id",
			Details:   err.Error(),
		})
		return
	}

	metrics, err := s.store.LatestCustomerMetrics(c.Request.Context(), uri.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, httperr.ErrorResponse{
				ErrorType: httperr.HttpNotFoundError,
				Message:   "Customer has not been scored",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to query customer metrics",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, metrics)
}

// HandleDailyMetrics handles GET /v1/metrics/daily
// Query parameters: source, start, end (dates, inclusive; defaults to the
// last 30 days across all sources).
func (s *Service) HandleDailyMetrics(c *gin.Context) {
	var query struct {
		Source string    `form:"source"`
		Start  time.Time `form:"start" time_format:"2006-01-02"`
		End    time.Time `form:"end" time_format:"2006-01-02"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidParamsError,
			Message:   "Invalid query parameters",
			Details:   err.Error(),
		})
		return
	}

	source := v1.SourceType(query.Source)
	if query.Source != "" && !source.Valid() {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpUnknownSourceError,
			Message:   "Unknown source",
			Details:   query.Source,
		})
		return
	}

	end := query.End
	if end.IsZero() {
		end = s.now().UTC()
	}
	start := query.Start
	if start.IsZero() {
		start = end.AddDate(0, 0, -defaultDailyRangeDays)
	}

	daily, err := s.store.DailyMetricsRange(c.Request.Context(), source, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to query daily metrics",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"daily": daily})
}

// HandleSegments handles GET /v1/segments
func (s *Service) HandleSegments(c *gin.Context) {
	segments, err := s.store.SegmentCounts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to query segments",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"segments": segments})
}

// HandleCohorts handles GET /v1/cohorts
// Query parameters: source (optional).
func (s *Service) HandleCohorts(c *gin.Context) {
	rawSource := c.Query("source")
	source := v1.SourceType(rawSource)
	if rawSource != "" && !source.Valid() {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpUnknownSourceError,
			Message:   "Unknown source",
			Details:   rawSource,
		})
		return
	}

	cohorts, err := s.Cohorts(c.Request.Context(), source)
	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to compute cohorts",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cohorts": cohorts})
}

// HandleRecentRuns handles GET /v1/runs
func (s *Service) HandleRecentRuns(c *gin.Context) {
	var query struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidParamsError,
			Message:   "Invalid query parameters",
			Details:   err.Error(),
		})
		return
	}
	if query.Limit <= 0 {
		query.Limit = defaultRunsLimit
	}

	runs, err := s.store.RecentRuns(c.Request.Context(), query.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to query runs",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// HandleDashboard handles GET /v1/dashboard
func (s *Service) HandleDashboard(c *gin.Context) {
	dashboard, err := s.BuildDashboard(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to build dashboard",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, dashboard)
}

// HandleTriggerRun handles POST /v1/runs/:source
// Runs the pipeline for one source synchronously and returns its run log.
func (s *Service) HandleTriggerRun(c *gin.Context) {
	source := v1.SourceType(c.Param("source"))
	if !source.Valid() {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpUnknownSourceError,
			Message:   "Unknown source",
			Details:   c.Param("source"),
		})
		return
	}
	if s.trigger == nil {
		c.JSON(http.StatusServiceUnavailable, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Pipeline is not configured",
		})
		return
	}

	result := s.trigger.RunForSource(c.Request.Context(), source)
	c.JSON(http.StatusOK, gin.H{"run": result.Run})
}
