package transport

import "testing"

func TestGatewayWebhookSender(t *testing.T) {
	cases := map[string]GatewayWebhook{
		"393331234567": {SenderID: "393331234567@s.whatsapp.net"},
		"393331234568": {From: "393331234568:12@s.whatsapp.net in 120363@g.us"},
		"393331234569": {SenderID: "393331234569"},
	}
	for want, hook := range cases {
		if got := hook.Sender(); got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}

func TestGatewayWebhookIsReaction(t *testing.T) {
	var w GatewayWebhook
	if w.IsReaction() {
		t.Fatalf("empty event is not a reaction")
	}
	w.Reaction.ID, w.Reaction.Message = "3EB0", "👍"
	if !w.IsReaction() {
		t.Fatalf("expected reaction")
	}
}
