package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
)

type documentResponse struct {
	ID                    uuid.UUID              `json:"id"`
	Type                  string                 `json:"type"`
	Number                string                 `json:"number"`
	Status                string                 `json:"status"`
	ClientID              uuid.UUID              `json:"client_id"`
	GlobalDiscountPercent decimal.Decimal        `json:"global_discount_percent"`
	PreTax                decimal.Decimal        `json:"pre_tax"`
	Tax                   decimal.Decimal        `json:"tax"`
	Total                 decimal.Decimal        `json:"total"`
	RemainingDue          decimal.Decimal        `json:"remaining_due"`
	LinkedQuoteID         *uuid.UUID             `json:"linked_quote_id,omitempty"`
	LinkedDocumentID      *uuid.UUID             `json:"linked_document_id,omitempty"`
	Notes                 *string                `json:"notes,omitempty"`
	IssuedAt              time.Time              `json:"issued_at"`
	Lines                 []documentLineResponse `json:"lines"`
}

type documentLineResponse struct {
	Position        int             `json:"position"`
	ProductID       *uuid.UUID      `json:"product_id,omitempty"`
	Label           string          `json:"label"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	LineHT          decimal.Decimal `json:"line_ht"`
	LineTVA         decimal.Decimal `json:"line_tva"`
	LineTTC         decimal.Decimal `json:"line_ttc"`
}

func newDocumentResponse(doc *models.Document) *documentResponse {
	if doc == nil {
		return nil
	}
	lines := make([]documentLineResponse, 0, len(doc.Lines))
	for _, line := range doc.Lines {
		lines = append(lines, documentLineResponse{
			Position:        line.Position,
			ProductID:       line.ProductID,
			Label:           line.Label,
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			TaxRate:         line.TaxRate,
			DiscountPercent: line.DiscountPercent,
			LineHT:          line.LineHT,
			LineTVA:         line.LineTVA,
			LineTTC:         line.LineTTC,
		})
	}
	return &documentResponse{
		ID:                    doc.ID,
		Type:                  string(doc.Type),
		Number:                doc.Number,
		Status:                string(doc.Status),
		ClientID:              doc.ClientID,
		GlobalDiscountPercent: doc.GlobalDiscountPercent,
		PreTax:                doc.PreTax,
		Tax:                   doc.Tax,
		Total:                 doc.Total,
		RemainingDue:          doc.RemainingDue,
		LinkedQuoteID:         doc.LinkedQuoteID,
		LinkedDocumentID:      doc.LinkedDocumentID,
		Notes:                 doc.Notes,
		IssuedAt:              doc.IssuedAt,
		Lines:                 lines,
	}
}

type paymentResponse struct {
	ID                uuid.UUID       `json:"id"`
	DocumentID        uuid.UUID       `json:"document_id"`
	Amount            decimal.Decimal `json:"amount"`
	Method            string          `json:"method"`
	Status            string          `json:"status"`
	ReversesPaymentID *uuid.UUID      `json:"reverses_payment_id,omitempty"`
	ReceivedAt        time.Time       `json:"received_at"`
}

func newPaymentResponse(p *models.Payment) *paymentResponse {
	if p == nil {
		return nil
	}
	return &paymentResponse{
		ID:                p.ID,
		DocumentID:        p.DocumentID,
		Amount:            p.Amount,
		Method:            string(p.Method),
		Status:            string(p.Status),
		ReversesPaymentID: p.ReversesPaymentID,
		ReceivedAt:        p.ReceivedAt,
	}
}

type stockMovementResponse struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"product_id"`
	Type          string          `json:"type"`
	QuantityDelta decimal.Decimal `json:"quantity_delta"`
	StockBefore   decimal.Decimal `json:"stock_before"`
	StockAfter    decimal.Decimal `json:"stock_after"`
	Reason        string          `json:"reason"`
	ReferenceID   *uuid.UUID      `json:"reference_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func newStockMovementResponse(m models.StockMovement) stockMovementResponse {
	return stockMovementResponse{
		ID:            m.ID,
		ProductID:     m.ProductID,
		Type:          string(m.Type),
		QuantityDelta: m.QuantityDelta,
		StockBefore:   m.StockBefore,
		StockAfter:    m.StockAfter,
		Reason:        m.Reason,
		ReferenceID:   m.ReferenceID,
		CreatedAt:     m.CreatedAt,
	}
}

func newStockMovementList(rows []models.StockMovement) []stockMovementResponse {
	out := make([]stockMovementResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, newStockMovementResponse(row))
	}
	return out
}

type pointsMovementResponse struct {
	ID               uuid.UUID  `json:"id"`
	ClientID         uuid.UUID  `json:"client_id"`
	Type             string     `json:"type"`
	Points           int64      `json:"points"`
	Delta            int64      `json:"delta"`
	BalanceAfter     int64      `json:"balance_after"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	SourceMovementID *uuid.UUID `json:"source_movement_id,omitempty"`
	DocumentID       *uuid.UUID `json:"document_id,omitempty"`
	Reason           string     `json:"reason"`
	CreatedAt        time.Time  `json:"created_at"`
}

func newPointsMovementResponse(m *models.PointsMovement) *pointsMovementResponse {
	if m == nil {
		return nil
	}
	return &pointsMovementResponse{
		ID:               m.ID,
		ClientID:         m.ClientID,
		Type:             string(m.Type),
		Points:           m.Points,
		Delta:            m.Delta,
		BalanceAfter:     m.BalanceAfter,
		ExpiresAt:        m.ExpiresAt,
		SourceMovementID: m.SourceMovementID,
		DocumentID:       m.DocumentID,
		Reason:           m.Reason,
		CreatedAt:        m.CreatedAt,
	}
}

type clientResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         *string   `json:"email,omitempty"`
	IsWalkIn      bool      `json:"is_walk_in"`
	PointsBalance int64     `json:"points_balance"`
}

func newClientResponse(c *models.Client) *clientResponse {
	if c == nil {
		return nil
	}
	return &clientResponse{
		ID:            c.ID,
		Name:          c.Name,
		Email:         c.Email,
		IsWalkIn:      c.IsWalkIn,
		PointsBalance: c.PointsBalance,
	}
}
