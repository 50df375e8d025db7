package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "mana/internal/errors"
	"mana/internal/services"
)

// ReportHandler serves the monthly reports computed by the reconciliation engine.
type ReportHandler struct {
	reportService   services.ReportServicer
	snapshotService services.SnapshotServicer
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportService services.ReportServicer, snapshotService services.SnapshotServicer) *ReportHandler {
	return &ReportHandler{reportService: reportService, snapshotService: snapshotService}
}

// GetBudgetStatuses handles the status of every budget of the user
// @Summary     Get budget statuses
// @Description Evaluate every budget for the month
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       year  query int false "Year (default current)"
// @Param       month query int false "Month 1-12 (default current)"
// @Success     200 {array}  reconcile.BudgetStatus "Budget statuses"
// @Failure     400 {object} ErrorResponse "Invalid period"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /reports/budgets [get]
func (h *ReportHandler) GetBudgetStatuses(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	year, month, err := parseYearMonth(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	statuses, err := h.reportService.BudgetStatuses(c.Request.Context(), userID, year, month)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"year": year, "month": int(month), "budgets": statuses})
}

// GetInvoices handles the invoices of every card of the user
// @Summary     Get card invoices
// @Description Resolve the invoice of every card for the month
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       year  query int false "Year (default current)"
// @Param       month query int false "Month 1-12 (default current)"
// @Success     200 {array}  reconcile.Invoice "Invoices"
// @Failure     400 {object} ErrorResponse "Invalid period"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /reports/invoices [get]
func (h *ReportHandler) GetInvoices(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	year, month, err := parseYearMonth(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	invoices, err := h.reportService.CardInvoices(c.Request.Context(), userID, year, month)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"year": year, "month": int(month), "invoices": invoices})
}

// GetDashboard handles the monthly overview
// @Summary     Get dashboard
// @Description Income, expenses, spending by category, budgets, invoices and net worth for the month
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       year  query int false "Year (default current)"
// @Param       month query int false "Month 1-12 (default current)"
// @Success     200 {object} services.Dashboard "Dashboard"
// @Failure     400 {object} ErrorResponse "Invalid period"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /reports/dashboard [get]
func (h *ReportHandler) GetDashboard(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	year, month, err := parseYearMonth(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	dashboard, err := h.reportService.Dashboard(c.Request.Context(), userID, year, month)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dashboard)
}

// GetSnapshots handles retrieving net-worth snapshots for the authenticated user.
// @Summary     Get net-worth snapshots
// @Description Get paginated net-worth snapshots for a date range
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       from_date query string true  "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       to_date   query string true  "End date (RFC3339 or YYYY-MM-DD)"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.NetWorthSnapshot] "Paginated snapshots"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /reports/snapshots [get]
func (h *ReportHandler) GetSnapshots(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	from, err := requiredDate(c, "from_date")
	if err != nil {
		respondWithError(c, err)
		return
	}
	to, err := requiredDate(c, "to_date")
	if err != nil {
		respondWithError(c, err)
		return
	}
	// to_date is inclusive
	to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)

	page, err := bindPage(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.snapshotService.GetSnapshots(userID, from, to, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func requiredDate(c *gin.Context, field string) (time.Time, error) {
	v := c.Query(field)
	if v == "" {
		return time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidInput, field+" is required")
	}
	return parseDate(field, v)
}
