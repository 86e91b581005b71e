package handlers

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/Ramsey-B/fern/pkg/builder"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/orchestrator"
	"github.com/Ramsey-B/fern/pkg/utils"
)

// QuotesHandler edits single quote requests.
type QuotesHandler struct {
	orchestrator *orchestrator.Orchestrator
}

// NewQuotesHandler creates a new quotes handler
func NewQuotesHandler(orch *orchestrator.Orchestrator) *QuotesHandler {
	return &QuotesHandler{orchestrator: orch}
}

// QuoteRequest is the request body for adding or updating a quote request
type QuoteRequest struct {
	RowNo       int     `json:"row_no" validate:"gte=0"`
	RequestDate string  `json:"request_date"`
	Customer    string  `json:"customer"`
	ItemCode    string  `json:"item_code" validate:"required_without=ItemName"`
	ItemName    string  `json:"item_name" validate:"required_without=ItemCode"`
	Quantity    float64 `json:"quantity" validate:"gte=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
	Amount      float64 `json:"amount" validate:"gte=0"`
	DueDate     string  `json:"due_date"`
	Status      string  `json:"status"`
	Note        string  `json:"note"`
}

// QuoteResponse is the body of a quote write.
type QuoteResponse struct {
	orchestrator.Result
	Quote *models.QuoteRequestLine `json:"quote,omitempty"`
}

// toQuote fills the status default and derives a missing amount.
func (r QuoteRequest) toQuote(id uuid.UUID) models.QuoteRequestLine {
	amount := r.Amount
	if amount == 0 && r.Quantity != 0 && r.UnitPrice != 0 {
		amount = decimal.NewFromFloat(r.UnitPrice).Mul(decimal.NewFromFloat(r.Quantity)).Round(2).InexactFloat64()
	}
	status := r.Status
	if status == "" {
		status = builder.DefaultQuoteStatus
	}
	return models.QuoteRequestLine{
		ID:          id,
		RowNo:       r.RowNo,
		RequestDate: r.RequestDate,
		Customer:    r.Customer,
		ItemCode:    r.ItemCode,
		ItemName:    r.ItemName,
		Quantity:    r.Quantity,
		UnitPrice:   r.UnitPrice,
		Amount:      amount,
		DueDate:     r.DueDate,
		Status:      status,
		Note:        r.Note,
	}
}

// RegisterRoutes registers the quote routes
func (h *QuotesHandler) RegisterRoutes(g *echo.Group) {
	quotes := g.Group("/quotes")
	quotes.POST("", h.Create)
	quotes.PUT("/:id", h.Update)
	quotes.DELETE("/:id", h.Delete)
}

// Create handles POST /quotes
func (h *QuotesHandler) Create(c echo.Context) error {
	req, err := utils.BindRequest[QuoteRequest](c)
	if err != nil {
		return err
	}

	quote := req.toQuote(uuid.New())
	result, err := h.orchestrator.AddQuote(c.Request().Context(), quote)
	if err != nil {
		return err
	}
	return CreatedResponse(c, QuoteResponse{Result: result, Quote: &quote})
}

// Update handles PUT /quotes/:id
func (h *QuotesHandler) Update(c echo.Context) error {
	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	req, err := utils.BindRequest[QuoteRequest](c)
	if err != nil {
		return err
	}

	quote := req.toQuote(id)
	result, err := h.orchestrator.UpdateQuote(c.Request().Context(), quote)
	if err != nil {
		return err
	}
	return SuccessResponse(c, QuoteResponse{Result: result, Quote: &quote})
}

// Delete handles DELETE /quotes/:id
func (h *QuotesHandler) Delete(c echo.Context) error {
	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	result, err := h.orchestrator.DeleteQuote(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return SuccessResponse(c, QuoteResponse{Result: result})
}
