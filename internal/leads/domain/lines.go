package domain

import (
	"math"

	"github.com/google/uuid"
)

// ProductLine is one product row of a lead or a deal.
type ProductLine struct {
	ID                 uuid.UUID
	Position           int
	ProductCode        string
	ProductName        string
	Qty                float64
	Rate               float64
	Amount             float64
	DiscountPercentage float64
	DiscountAmount     float64
	NetAmount          float64
}

// ComputeLine derives amount, discount and net amount from quantity, rate
// and discount. A zero quantity or rate zeroes every amount. A discount
// percentage takes precedence over a given discount amount.
func ComputeLine(line ProductLine) ProductLine {
	if line.Qty == 0 || line.Rate == 0 {
		line.Amount = 0
		line.DiscountAmount = 0
		line.NetAmount = 0
		return line
	}

	line.Amount = round2(line.Qty * line.Rate)
	if line.DiscountPercentage != 0 {
		line.DiscountAmount = round2(line.Amount * line.DiscountPercentage / 100)
	}
	line.NetAmount = round2(line.Amount - line.DiscountAmount)
	return line
}

// ComputeLines applies ComputeLine to every line and renumbers positions.
func ComputeLines(lines []ProductLine) []ProductLine {
	out := make([]ProductLine, len(lines))
	for i, line := range lines {
		line.Position = i
		out[i] = ComputeLine(line)
	}
	return out
}

// Totals are the document totals derived from its lines.
type Totals struct {
	Total    float64
	NetTotal float64
}

// ComputeTotals sums line amounts and net amounts.
func ComputeTotals(lines []ProductLine) Totals {
	var t Totals
	for _, line := range lines {
		t.Total += line.Amount
		t.NetTotal += line.NetAmount
	}
	t.Total = round2(t.Total)
	t.NetTotal = round2(t.NetTotal)
	return t
}

// CopyForDeal clones lead lines into new deal-owned rows. Net amount
// defaults to the amount when the source never computed it.
func CopyForDeal(lines []ProductLine) []ProductLine {
	out := make([]ProductLine, 0, len(lines))
	for i, line := range lines {
		copied := line
		copied.ID = uuid.Nil
		copied.Position = i
		if copied.NetAmount == 0 && copied.DiscountAmount == 0 {
			copied.NetAmount = copied.Amount
		}
		out = append(out, copied)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
