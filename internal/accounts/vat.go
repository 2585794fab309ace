// Package accounts maps spending categories and VAT rates onto the
// chart of accounts used by the ledger backend.
package accounts

import (
	"github.com/tlacroix/receiptledger/internal/common"
)

// VatSpec is one entry of the closed VAT table: the journal tax code and
// the tax-liability account for a rate. The zero rate carries neither.
type VatSpec struct {
	Rate             string
	TaxCode          string
	LiabilityAccount string
}

// The table is closed and explicit. Codes are never inferred from the
// rate value; a rate outside this set fails the whole operation.
var vatTable = map[string]VatSpec{
	"20":  {Rate: "20", TaxCode: "TVA20", LiabilityAccount: "44566200"},
	"10":  {Rate: "10", TaxCode: "TVA10", LiabilityAccount: "44566100"},
	"5.5": {Rate: "5.5", TaxCode: "TVA055", LiabilityAccount: "44566055"},
	"0":   {Rate: "0", TaxCode: "", LiabilityAccount: ""},
}

// LookupVat returns the spec for a VAT rate identifier. Unknown rates are
// rejected, never substituted with the 20% entry.
func LookupVat(rate string) (VatSpec, error) {
	spec, ok := vatTable[rate]
	if !ok {
		return VatSpec{}, common.NewValidationError("vat_rate", "unknown rate "+rate)
	}
	return spec, nil
}

// VatRates lists the recognized rate identifiers.
func VatRates() []string {
	return []string{"20", "10", "5.5", "0"}
}
