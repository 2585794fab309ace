package extract

import (
	"context"

	"github.com/shopspring/decimal"
)

// Result is the normalized extraction output for one receipt page.
// Produced once per upload and immutable afterwards; never persisted.
// Absent fields stay nil/empty — validation happens where they are used.
type Result struct {
	Date         string           `json:"date,omitempty"` // YYYY-MM-DD
	TicketNumber string           `json:"ticket_number,omitempty"`
	TotalTTC     *decimal.Decimal `json:"total_ttc,omitempty"`
	TotalHT      *decimal.Decimal `json:"total_ht,omitempty"`
	TotalTVA     *decimal.Decimal `json:"total_tva,omitempty"`
	MerchantName string           `json:"merchant_name,omitempty"`
	Keywords     []string         `json:"keywords,omitempty"`
}

// FieldExtractor is the interface the pipeline depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, image []byte, mimeType string) (Result, []byte /*rawJSON*/, error)
}
