package sanitize

import "testing"

func TestStripHTML(t *testing.T) {
	cases := map[string]string{
		"<p>Torta&nbsp;al   cioccolato</p>":                 "Torta al cioccolato",
		"plain   text\n here":                                "plain text here",
		"<div>Fish &amp; Chips<br/>2 pcs</div>":             "Fish & Chips 2 pcs",
		"<style>p{color:red}</style><p>visible</p>":          "visible",
		"&lt;script&gt;alert(1)&lt;/script&gt;":              "<script>alert(1)</script>",
		"":                                                   "",
	}
	for in, want := range cases {
		if got := StripHTML(in); got != want {
			t.Fatalf("StripHTML(%q): expected %q, got %q", in, want, got)
		}
	}
}
