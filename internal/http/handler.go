package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"reporting-service/internal/apperr"
	"reporting-service/internal/http/middleware"
	"reporting-service/internal/model"
	"reporting-service/internal/report"
	"reporting-service/internal/service"
)

type Handler struct {
	reports *service.ReportService
	log     zerolog.Logger
}

func NewHandler(reports *service.ReportService, log zerolog.Logger) *Handler {
	return &Handler{reports: reports, log: log}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware, limitMiddleware gin.HandlerFunc) {
	protected := r.Group("/reports")
	protected.Use(authMiddleware, limitMiddleware)

	protected.GET("", h.listReports)
	for _, slug := range h.reports.Slugs() {
		protected.GET("/"+slug, h.getReport(slug))
	}
}

func (h *Handler) listReports(c *gin.Context) {
	if _, ok := middleware.MustPrincipal(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": h.reports.Slugs()})
}

func (h *Handler) getReport(slug string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.MustPrincipal(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
			return
		}

		query := parseReportQuery(c)

		payload, scope, err := h.reports.Generate(c.Request.Context(), principal, slug, query)
		if err != nil {
			h.handleError(c, slug, err)
			return
		}

		c.JSON(http.StatusOK, report.Success(slug, scope, payload, time.Now().UTC()))
	}
}

func parseReportQuery(c *gin.Context) model.ReportQuery {
	query := model.ReportQuery{
		DealershipID: strings.TrimSpace(c.Query("dealershipId")),
		StartDate:    strings.TrimSpace(c.Query("startDate")),
		EndDate:      strings.TrimSpace(c.Query("endDate")),
	}

	switch strings.ToLower(strings.TrimSpace(c.Query("bucket"))) {
	case "week":
		query.Bucket = model.BucketWeek
	case "month":
		query.Bucket = model.BucketMonth
	default:
		query.Bucket = model.BucketDay
	}

	return query
}

// handleError maps classified errors onto the envelope and status. The full
// cause stays in the server log; only validation messages travel outward.
func (h *Handler) handleError(c *gin.Context, slug string, err error) {
	if apperr.KindOf(err) != apperr.KindValidation {
		h.log.Error().Err(err).Str("report", slug).Msg("report generation failed")
	}
	c.JSON(report.StatusFor(err), report.Failure(err))
}
