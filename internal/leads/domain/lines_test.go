package domain

import "testing"

func TestComputeLine(t *testing.T) {
	cases := []struct {
		name string
		in   ProductLine
		want ProductLine
	}{
		{
			name: "plain",
			in:   ProductLine{Qty: 3, Rate: 2.5},
			want: ProductLine{Qty: 3, Rate: 2.5, Amount: 7.5, NetAmount: 7.5},
		},
		{
			name: "percentage discount",
			in:   ProductLine{Qty: 2, Rate: 50, DiscountPercentage: 10},
			want: ProductLine{Qty: 2, Rate: 50, DiscountPercentage: 10, Amount: 100, DiscountAmount: 10, NetAmount: 90},
		},
		{
			name: "fixed discount",
			in:   ProductLine{Qty: 1, Rate: 20, DiscountAmount: 5},
			want: ProductLine{Qty: 1, Rate: 20, Amount: 20, DiscountAmount: 5, NetAmount: 15},
		},
		{
			name: "zero quantity zeroes amounts",
			in:   ProductLine{Qty: 0, Rate: 20, Amount: 99, DiscountAmount: 4, NetAmount: 95},
			want: ProductLine{Qty: 0, Rate: 20},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeLine(tc.in)
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestComputeTotalsMatchesLines(t *testing.T) {
	lines := ComputeLines([]ProductLine{
		{ProductName: "Torta", Qty: 2, Rate: 18.5},
		{ProductName: "Biscotti", Qty: 1.5, Rate: 12, DiscountPercentage: 10},
	})
	totals := ComputeTotals(lines)

	if totals.Total != 55 {
		t.Fatalf("expected total 55, got %v", totals.Total)
	}
	if totals.NetTotal != 53.2 {
		t.Fatalf("expected net total 53.2, got %v", totals.NetTotal)
	}
	if lines[1].Position != 1 {
		t.Fatalf("expected positions to be renumbered")
	}
}

func TestCopyForDealKeepsAmounts(t *testing.T) {
	source := ComputeLines([]ProductLine{
		{ProductName: "A", Qty: 2, Rate: 10},
		{ProductName: "B", Qty: 1, Rate: 5, DiscountPercentage: 20},
		{ProductName: "C", Qty: 4, Rate: 1, Amount: 4},
	})
	source[2].NetAmount = 0

	copied := CopyForDeal(source)
	if len(copied) != len(source) {
		t.Fatalf("expected %d lines, got %d", len(source), len(copied))
	}
	for i := range source[:2] {
		if copied[i].Amount != source[i].Amount || copied[i].NetAmount != source[i].NetAmount {
			t.Fatalf("line %d amounts changed: %+v vs %+v", i, copied[i], source[i])
		}
	}
	if copied[2].NetAmount != 4 {
		t.Fatalf("expected net amount to default to amount, got %v", copied[2].NetAmount)
	}
	if ComputeTotals(copied).NetTotal != 28 {
		t.Fatalf("unexpected net total %v", ComputeTotals(copied).NetTotal)
	}
}
