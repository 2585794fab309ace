package extract

import "strings"

// BuildPrompt composes the fixed instruction sent with every receipt
// image. The extractor must return one JSON object using these exact
// field names; multiple VAT rates on a receipt are summed into a single
// total_tva before being returned.
func BuildPrompt() string {
	parts := []string{
		"You are an expense-receipt reader. Look at the attached receipt or invoice image and return ONLY one JSON object, nothing else.",
		"Fields (omit any you cannot read): " +
			`"date" (ISO-8601, YYYY-MM-DD), ` +
			`"ticket_number" (ticket or invoice number), ` +
			`"total_ttc" (total including tax), ` +
			`"total_ht" (total excluding tax), ` +
			`"total_tva" (tax amount), ` +
			`"merchant_name", ` +
			`"keywords" (short lowercase words describing the purchase, e.g. item types or shop kind).`,
		"Amounts are plain numbers with a dot decimal separator.",
		"If the receipt shows several VAT rates, sum the tax amounts into a single total_tva.",
		"Never invent values. Never output null; omit unknown fields instead.",
	}
	return strings.Join(parts, " ")
}
