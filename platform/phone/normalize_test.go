package phone

import "testing"

func TestDigitsStripsEverythingButDigits(t *testing.T) {
	cases := map[string]string{
		"":                   "",
		"+39 333-123 4567":   "393331234567",
		"(0039) 333.123.456": "0039333123456",
		"abc":                "",
		"٣٣٣":                "",
	}
	for in, want := range cases {
		if got := Digits(in); got != want {
			t.Fatalf("Digits(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestDigitsIsIdempotent(t *testing.T) {
	inputs := []string{"", "+39 333 123 4567", "tel:+1 (555) 010-9999 ext 12", "  42  "}
	for _, in := range inputs {
		once := Digits(in)
		if twice := Digits(once); twice != once {
			t.Fatalf("Digits not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestPretty(t *testing.T) {
	cases := map[string]string{
		"393331234567":     "+39 333 123 4567",
		"123":              "123",
		"":                 "",
		"3933":             "+39 33",
		"39333123":         "+39 333 123",
		"39333123456789":   "+39 333 123 4567 89",
		"+39 333 123 4567": "+39 333 123 4567",
	}
	for in, want := range cases {
		if got := Pretty(in); got != want {
			t.Fatalf("Pretty(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestDisplayAndSame(t *testing.T) {
	if got := Display("+39 3331234567"); got != "+39 333 123 4567" {
		t.Fatalf("unexpected display form %q", got)
	}
	if got := Display("12"); got != "12" {
		t.Fatalf("expected short number unchanged, got %q", got)
	}
	if !Same("+39 333 123 4567", "393331234567") {
		t.Fatalf("expected numbers with same digits to match")
	}
	if Same("", "") {
		t.Fatalf("expected empty numbers not to match")
	}
}

func TestNormalizeE164(t *testing.T) {
	if got := NormalizeE164("393331234567", "IT"); got != "+393331234567" {
		t.Fatalf("expected +393331234567, got %q", got)
	}
	if got := NormalizeE164("", "IT"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
