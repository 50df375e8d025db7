package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "mana/internal/errors"
	"mana/internal/services"
)

// CardHandler handles card-related requests
type CardHandler struct {
	cardService   services.CardServicer
	reportService services.ReportServicer
	auditService  services.AuditServicer
}

// NewCardHandler creates a new CardHandler
func NewCardHandler(cardService services.CardServicer, reportService services.ReportServicer, auditService services.AuditServicer) *CardHandler {
	return &CardHandler{cardService: cardService, reportService: reportService, auditService: auditService}
}

// CreateCardRequest represents the request payload for creating a card.
// DueDate is the day of month the invoice is due; 0 leaves it unset.
type CreateCardRequest struct {
	Name       string          `json:"name" binding:"required,min=1,max=100"`
	LastDigits string          `json:"last_digits" binding:"omitempty,len=4,numeric"`
	HasCredit  bool            `json:"has_credit"`
	HasDebit   bool            `json:"has_debit"`
	Limit      decimal.Decimal `json:"limit" swaggertype:"string"`
	Balance    decimal.Decimal `json:"balance" swaggertype:"string"`
	DueDate    int             `json:"due_date" binding:"day_of_month"`
	Color      string          `json:"color" binding:"omitempty,hex_color"`
}

// UpdateCardRequest represents the request payload for updating a card
type UpdateCardRequest struct {
	Name       *string          `json:"name" binding:"omitempty,min=1,max=100"`
	LastDigits *string          `json:"last_digits" binding:"omitempty,len=4,numeric"`
	HasCredit  *bool            `json:"has_credit"`
	HasDebit   *bool            `json:"has_debit"`
	Limit      *decimal.Decimal `json:"limit" swaggertype:"string"`
	DueDate    *int             `json:"due_date" binding:"omitempty,day_of_month"`
	Color      *string          `json:"color" binding:"omitempty,hex_color"`
}

// CreateCard handles the creation of a new card
// @Summary     Create a card
// @Description Register a credit and/or debit card
// @Tags        cards
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateCardRequest true "Card details"
// @Success     201 {object} models.Card "Card created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cards [post]
func (h *CardHandler) CreateCard(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	card, err := h.cardService.CreateCard(userID, services.CardInput{
		Name:       req.Name,
		LastDigits: req.LastDigits,
		HasCredit:  req.HasCredit,
		HasDebit:   req.HasDebit,
		Limit:      req.Limit,
		Balance:    req.Balance,
		DueDay:     req.DueDate,
		Color:      req.Color,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_CARD", "card", card.ID, c.ClientIP(),
		map[string]interface{}{"name": card.Name, "has_credit": card.HasCredit, "has_debit": card.HasDebit})

	c.JSON(http.StatusCreated, gin.H{"card": card})
}

// GetUserCards handles listing cards for the authenticated user
// @Summary     Get cards
// @Description Get a paginated list of cards for the authenticated user
// @Tags        cards
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Card] "Paginated cards"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cards [get]
func (h *CardHandler) GetUserCards(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	page, err := bindPage(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.cardService.GetUserCards(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetCardByID handles the retrieval of a specific card
// @Summary     Get card by ID
// @Description Get a specific card by ID
// @Tags        cards
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Card ID"
// @Success     200 {object} models.Card "Card details"
// @Failure     400 {object} ErrorResponse "Invalid card ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Card not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cards/{id} [get]
func (h *CardHandler) GetCardByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	cardID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	card, err := h.cardService.GetCardByID(userID, cardID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"card": card})
}

// UpdateCard handles updating a card
// @Summary     Update card
// @Description Update card fields. Used and balance only move through transactions
// @Tags        cards
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "Card ID"
// @Param       request body UpdateCardRequest true "Card fields"
// @Success     200 {object} models.Card "Card updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Card not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cards/{id} [put]
func (h *CardHandler) UpdateCard(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	cardID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	card, err := h.cardService.UpdateCard(userID, cardID, services.CardUpdate{
		Name:       req.Name,
		LastDigits: req.LastDigits,
		HasCredit:  req.HasCredit,
		HasDebit:   req.HasDebit,
		Limit:      req.Limit,
		DueDay:     req.DueDate,
		Color:      req.Color,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_CARD", "card", cardID, c.ClientIP(),
		map[string]interface{}{"name": card.Name, "due_date": card.DueDay})

	c.JSON(http.StatusOK, gin.H{"card": card})
}

// DeleteCard handles deleting a card
// @Summary     Delete card
// @Description Delete a card
// @Tags        cards
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Card ID"
// @Success     200 {object} map[string]string "Card deleted"
// @Failure     400 {object} ErrorResponse "Invalid card ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Card not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cards/{id} [delete]
func (h *CardHandler) DeleteCard(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	cardID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.cardService.DeleteCard(userID, cardID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_CARD", "card", cardID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Card deleted successfully"})
}

// GetCardInvoice handles computing the invoice of a card for one month
// @Summary     Get card invoice
// @Description Sum credit charges of the billing cycle closing in the month; cards without a due day report the running used total
// @Tags        cards
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string true  "Card ID"
// @Param       year  query int    false "Year (default current)"
// @Param       month query int    false "Month 1-12 (default current)"
// @Success     200 {object} reconcile.Invoice "Invoice"
// @Failure     400 {object} ErrorResponse "Invalid input or period"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Card not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cards/{id}/invoice [get]
func (h *CardHandler) GetCardInvoice(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	cardID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	year, month, err := parseYearMonth(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	invoice, err := h.reportService.CardInvoice(c.Request.Context(), userID, cardID, year, month)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invoice": invoice})
}
