// Package leads provides lead management functionality.
// This file defines the public API of the leads bounded context.
// Other domains read leads and deals through Reader only.
package leads

import (
	"context"
	"errors"

	"crm_workflow_backend/internal/leads/domain"
	"crm_workflow_backend/internal/leads/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a lead or deal does not exist.
var ErrNotFound = errors.New("not found")

// Reader exposes read-only lead and deal data.
type Reader struct {
	repo *repository.Repository
}

// NewReader creates a reader on its own repository so it can be wired
// before the leads module itself.
func NewReader(pool *pgxpool.Pool) *Reader {
	return &Reader{repo: repository.New(pool)}
}

func (r *Reader) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := r.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Reader) LeadProducts(ctx context.Context, leadID uuid.UUID) ([]domain.ProductLine, error) {
	return r.repo.ListLeadProducts(ctx, leadID)
}

func (r *Reader) GetDeal(ctx context.Context, id uuid.UUID) (domain.Deal, error) {
	deal, err := r.repo.GetDeal(ctx, id)
	if errors.Is(err, repository.ErrDealNotFound) {
		return domain.Deal{}, ErrNotFound
	}
	return deal, err
}

func (r *Reader) DealContactIDs(ctx context.Context, dealID uuid.UUID) ([]uuid.UUID, error) {
	return r.repo.DealContactIDs(ctx, dealID)
}

// StatusNames lists the current status vocabulary of an entity kind.
func (r *Reader) StatusNames(ctx context.Context, entity domain.EntityKind) ([]string, error) {
	statuses, err := r.repo.ListStatuses(ctx, entity)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(statuses))
	for _, st := range statuses {
		names = append(names, st.Name)
	}
	return names, nil
}

// PrimaryDealContact returns the deal's primary contact id, if any.
func (r *Reader) PrimaryDealContact(ctx context.Context, dealID uuid.UUID) (*uuid.UUID, error) {
	return r.repo.PrimaryDealContact(ctx, dealID)
}

// LatestLeadByMobile returns the newest lead whose mobile carries digits.
func (r *Reader) LatestLeadByMobile(ctx context.Context, digits string) (domain.Lead, error) {
	lead, err := r.repo.FindLatestByMobile(ctx, digits)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

// LatestDealByMobile returns the newest deal whose mobile carries digits.
func (r *Reader) LatestDealByMobile(ctx context.Context, digits string) (domain.Deal, error) {
	deal, err := r.repo.FindLatestDealByMobile(ctx, digits)
	if errors.Is(err, repository.ErrDealNotFound) {
		return domain.Deal{}, ErrNotFound
	}
	return deal, err
}
