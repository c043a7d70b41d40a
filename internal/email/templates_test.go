package email

import (
	"strings"
	"testing"
	"time"
)

func TestRenderEscalationDigest(t *testing.T) {
	subject, content, err := renderEscalationDigest(Digest{
		Entries: []DigestEntry{
			{OrderNumber: "25-00007", Customer: "Anna <Rossi>", AwaitingSince: time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)},
			{OrderNumber: "25-00008", Customer: "Marco"},
		},
		Threshold:  72 * time.Hour,
		Checked:    5,
		Skipped:    1,
		ReportedAt: time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if subject != "2 order(s) marked as not paid" {
		t.Fatalf("unexpected subject %q", subject)
	}
	for _, want := range []string{"25-00007", "Anna &lt;Rossi&gt;", "2025-03-01 09:30 UTC", "72h0m0s", "Checked 5, skipped 1, failed 0"} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in digest:\n%s", want, content)
		}
	}
}

func TestNoopSenderIgnoresDigest(t *testing.T) {
	if err := (NoopSender{}).SendEscalationDigest(t.Context(), Digest{Entries: []DigestEntry{{OrderNumber: "1"}}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
