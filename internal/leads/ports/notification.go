package ports

import (
	"context"

	"crm_workflow_backend/internal/leads/domain"
)

// PreparationNotifier tells the customer a converted order is being
// prepared.
type PreparationNotifier interface {
	NotifyPreparation(ctx context.Context, lead domain.Lead, deal domain.Deal, lines []domain.ProductLine) error
}
