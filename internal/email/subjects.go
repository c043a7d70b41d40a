package email

const (
	subjectEscalationDigestFmt = "%d order(s) marked as not paid"
)
