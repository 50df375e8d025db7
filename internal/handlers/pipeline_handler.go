package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "mana/internal/errors"
	"mana/internal/services"
)

// PipelineHandler exposes the batch jobs to external schedulers.
type PipelineHandler struct {
	snapshotService services.SnapshotServicer
	budgetService   services.BudgetServicer
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(snapshotService services.SnapshotServicer, budgetService services.BudgetServicer) *PipelineHandler {
	return &PipelineHandler{snapshotService: snapshotService, budgetService: budgetService}
}

// ComputeSnapshotsRequest represents the request payload for computing snapshots.
type ComputeSnapshotsRequest struct {
	RecordedAt time.Time `json:"recorded_at" binding:"required"`
}

// FreezeLimitsRequest selects the month whose limits are frozen. Both
// fields default to the previous UTC month.
type FreezeLimitsRequest struct {
	Year  int `json:"year" binding:"omitempty,min=1970,max=9999"`
	Month int `json:"month" binding:"omitempty,min=1,max=12"`
}

// ComputeSnapshots handles computing and recording net-worth snapshots.
// @Summary     Compute net-worth snapshots
// @Description Compute and record net-worth snapshots for all users (pipeline endpoint)
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Param       X-API-Key  header   string                   true "Pipeline API key"
// @Param       request    body     ComputeSnapshotsRequest  true "Snapshot parameters"
// @Success     200        {object} map[string]int           "Snapshots recorded count"
// @Failure     400        {object} ErrorResponse            "Invalid input"
// @Failure     401        {object} ErrorResponse            "Invalid API key"
// @Failure     503        {object} ErrorResponse            "Pipeline not configured"
// @Router      /pipeline/snapshots [post]
func (h *PipelineHandler) ComputeSnapshots(c *gin.Context) {
	var req ComputeSnapshotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	count, err := h.snapshotService.ComputeAndRecordSnapshots(req.RecordedAt)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"snapshots_recorded": count})
}

// FreezeLimits handles pinning the current limit of every budget on a closed month.
// @Summary     Freeze budget limits
// @Description Store the current limit as an override for a month on every budget that has none (pipeline endpoint)
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Param       X-API-Key  header   string               true  "Pipeline API key"
// @Param       request    body     FreezeLimitsRequest  false "Month to freeze (default previous month)"
// @Success     200        {object} map[string]int       "Overrides created count"
// @Failure     400        {object} ErrorResponse        "Invalid input"
// @Failure     401        {object} ErrorResponse        "Invalid API key"
// @Failure     503        {object} ErrorResponse        "Pipeline not configured"
// @Router      /pipeline/budgets/freeze [post]
func (h *PipelineHandler) FreezeLimits(c *gin.Context) {
	var req FreezeLimitsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}

	year, month := req.Year, time.Month(req.Month)
	if year == 0 || month == 0 {
		now := time.Now().UTC()
		prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		if year == 0 {
			year = prev.Year()
		}
		if month == 0 {
			month = prev.Month()
		}
	}

	count, err := h.budgetService.FreezeLimits(year, month)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"year": year, "month": int(month), "overrides_created": count})
}
