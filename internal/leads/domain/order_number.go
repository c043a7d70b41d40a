package domain

import "regexp"

var leadNamePattern = regexp.MustCompile(`^CRM-LEAD-\d{2}(\d{2})-(\d+)$`)

// OrderNumber is the short customer-facing form of a lead name:
// "CRM-LEAD-2025-00021" becomes "25-00021". Other names are returned as is.
func OrderNumber(leadName string) string {
	m := leadNamePattern.FindStringSubmatch(leadName)
	if m == nil {
		return leadName
	}
	return m[1] + "-" + m[2]
}
