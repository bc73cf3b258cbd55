package pos

import "math"

// round2 rounds to the nearest paisa. Money stays in rupees as float64 the
// whole way; every aggregate passes through here exactly once.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// TaxBreakdown is the tax view of a bill. Intra-state bills split into CGST
// and SGST on the same taxable value; inter-state bills carry the whole
// amount as IGST. The split itself is service-supplied; the client selects
// which fields to render and never re-derives the rate.
type TaxBreakdown struct {
	Subtotal      float64 `json:"subtotal"`
	CGST          float64 `json:"cgst"`
	SGST          float64 `json:"sgst"`
	IGST          float64 `json:"igst"`
	GrandTotal    float64 `json:"grand_total"`
	IsInterState  bool    `json:"is_inter_state"`
	PlaceOfSupply string  `json:"place_of_supply,omitempty"`
}

// TaxLine is one rendered tax row.
type TaxLine struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// TotalTax is the combined tax regardless of jurisdiction.
func (t TaxBreakdown) TotalTax() float64 {
	if t.IsInterState {
		return t.IGST
	}
	return round2(t.CGST + t.SGST)
}

// DisplayLines selects the rows to render: IGST for inter-state, CGST+SGST
// otherwise. An intra-state bill never shows an IGST row and vice versa.
func (t TaxBreakdown) DisplayLines() []TaxLine {
	if t.IsInterState {
		return []TaxLine{{Label: "IGST", Amount: t.IGST}}
	}
	return []TaxLine{
		{Label: "CGST", Amount: t.CGST},
		{Label: "SGST", Amount: t.SGST},
	}
}

// SplitPreview builds a local display preview from a subtotal and a combined
// tax amount before the service has issued the bill. Intra-state halves the
// amount with paisa rounding so the two parts always re-add to the combined
// tax. The authoritative split still comes from the service; this never
// overrides a generated bill.
func SplitPreview(subtotal, taxAmount float64, isInterState bool, placeOfSupply string) TaxBreakdown {
	subtotal = round2(subtotal)
	taxAmount = round2(taxAmount)

	breakdown := TaxBreakdown{
		Subtotal:      subtotal,
		GrandTotal:    round2(subtotal + taxAmount),
		IsInterState:  isInterState,
		PlaceOfSupply: placeOfSupply,
	}

	if isInterState {
		breakdown.IGST = taxAmount
		return breakdown
	}

	breakdown.CGST = round2(taxAmount / 2)
	breakdown.SGST = round2(taxAmount - breakdown.CGST)
	return breakdown
}
