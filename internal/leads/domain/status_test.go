package domain

import "testing"

func TestStatusSlug(t *testing.T) {
	cases := map[string]string{
		"Awaiting Payment":   "awaiting_payment",
		"  Not Paid ":        "not_paid",
		"In attesa - (pag.)": "in_attesa_pag",
		"New":                "new",
		"":                   "",
	}
	for in, want := range cases {
		if got := StatusSlug(in); got != want {
			t.Fatalf("StatusSlug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStatusCatalogNormalize(t *testing.T) {
	catalog := NewStatusCatalog(
		[]string{"New", "Awaiting Payment", "Not Paid"},
		map[string]string{"Attesa Pagamento": "Awaiting Payment"},
	)

	cases := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"Awaiting Payment", "Awaiting Payment", true},
		{"Attesa Pagamento", "Awaiting Payment", true},
		{"attesa pagamento", "Awaiting Payment", true},
		{"NOT PAID", "Not Paid", true},
		{" Shipped ", "Shipped", false},
	}
	for _, tc := range cases {
		got, ok := catalog.Normalize(tc.in)
		if got != tc.want || ok != tc.wantOK {
			t.Fatalf("Normalize(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestStatusCatalogIgnoresAliasOutsideVocabulary(t *testing.T) {
	catalog := NewStatusCatalog(
		[]string{"New", "Confirmed"},
		map[string]string{"Rifiutato": "Rejected", "Confermato": "Confirmed"},
	)

	for _, in := range []string{"Rifiutato", "rifiutato"} {
		if got, ok := catalog.Normalize(in); ok {
			t.Fatalf("Normalize(%q) = (%q, true), want no match for a removed status", in, got)
		}
	}
	if got, ok := catalog.Normalize("confermato"); !ok || got != "Confirmed" {
		t.Fatalf("expected alias into vocabulary to resolve, got (%q, %v)", got, ok)
	}
}

func TestOrderNumber(t *testing.T) {
	cases := map[string]string{
		"CRM-LEAD-2025-00021": "25-00021",
		"CRM-LEAD-1999-7":     "99-7",
		"LEAD-42":             "LEAD-42",
		"CRM-LEAD-25-00021":   "CRM-LEAD-25-00021",
	}
	for in, want := range cases {
		if got := OrderNumber(in); got != want {
			t.Fatalf("OrderNumber(%q) = %q, want %q", in, got, want)
		}
	}
}
