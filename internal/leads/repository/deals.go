package repository

import (
	"context"
	"errors"
	"time"

	"crm_workflow_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrDealNotFound = errors.New("deal not found")

const dealColumns = `
    id, name, lead_id, organization_id, status, deal_owner, mobile_no, website, territory,
    industry, annual_revenue, source, sla, sla_status, sla_creation, response_by,
    first_response_time, first_responded_on, communication_status, expected_closure_date,
    delivery_date, delivery_address, order_date, order_notes, total, net_total,
    created_at, updated_at`

func scanDeal(row pgx.Row) (domain.Deal, error) {
	var d domain.Deal
	err := row.Scan(
		&d.ID, &d.Name, &d.LeadID, &d.OrganizationID, &d.Status, &d.DealOwner, &d.MobileNo, &d.Website, &d.Territory,
		&d.Industry, &d.AnnualRevenue, &d.Source, &d.SLA, &d.SLAStatus, &d.SLACreation, &d.ResponseBy,
		&d.FirstResponseTime, &d.FirstRespondedOn, &d.CommunicationStatus, &d.ExpectedClosureDate,
		&d.DeliveryDate, &d.DeliveryAddress, &d.OrderDate, &d.OrderNotes, &d.Total, &d.NetTotal,
		&d.CreatedAt, &d.UpdatedAt,
	)
	return d, err
}

// CreateDealParams holds every field a deal is created with.
type CreateDealParams struct {
	LeadID              uuid.UUID
	OrganizationID      *uuid.UUID
	Status              string
	DealOwner           string
	MobileNo            string
	Website             string
	Territory           string
	Industry            string
	AnnualRevenue       float64
	Source              string
	SLA                 string
	SLAStatus           string
	SLACreation         *time.Time
	ResponseBy          *time.Time
	FirstResponseTime   float64
	FirstRespondedOn    *time.Time
	CommunicationStatus string
	ExpectedClosureDate *time.Time
	DeliveryDate        *time.Time
	DeliveryAddress     string
	OrderDate           *time.Time
	OrderNotes          string
}

func (r *Repository) GetDeal(ctx context.Context, id uuid.UUID) (domain.Deal, error) {
	deal, err := scanDeal(r.pool.QueryRow(ctx, `SELECT`+dealColumns+` FROM deals WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Deal{}, ErrDealNotFound
	}
	return deal, err
}

func (r *Repository) CreateDeal(ctx context.Context, p CreateDealParams) (domain.Deal, error) {
	return scanDeal(r.pool.QueryRow(ctx, `
    INSERT INTO deals (
        lead_id, organization_id, status, deal_owner, mobile_no, website, territory, industry,
        annual_revenue, source, sla, sla_status, sla_creation, response_by, first_response_time,
        first_responded_on, communication_status, expected_closure_date, delivery_date,
        delivery_address, order_date, order_notes
    )
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
    RETURNING`+dealColumns,
		p.LeadID, p.OrganizationID, p.Status, p.DealOwner, p.MobileNo, p.Website, p.Territory, p.Industry,
		p.AnnualRevenue, p.Source, p.SLA, p.SLAStatus, p.SLACreation, p.ResponseBy, p.FirstResponseTime,
		p.FirstRespondedOn, p.CommunicationStatus, p.ExpectedClosureDate, p.DeliveryDate,
		p.DeliveryAddress, p.OrderDate, p.OrderNotes,
	))
}

// AddDealContact links a contact to a deal. A primary link demotes every
// other contact of the deal.
func (r *Repository) AddDealContact(ctx context.Context, dealID, contactID uuid.UUID, primary bool) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if primary {
		if _, err := tx.Exec(ctx, `UPDATE deal_contacts SET is_primary = false WHERE deal_id = $1 AND contact_id <> $2`, dealID, contactID); err != nil {
			return err
		}
	}
	_, err = tx.Exec(ctx, `
    INSERT INTO deal_contacts (deal_id, contact_id, is_primary)
    VALUES ($1, $2, $3)
    ON CONFLICT (deal_id, contact_id) DO UPDATE SET is_primary = EXCLUDED.is_primary
  `, dealID, contactID, primary)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// DealContactIDs lists the contacts of a deal, primary first.
func (r *Repository) DealContactIDs(ctx context.Context, dealID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
    SELECT contact_id
    FROM deal_contacts
    WHERE deal_id = $1
    ORDER BY is_primary DESC, contact_id
  `, dealID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// PrimaryDealContact returns the contact flagged primary on the deal, or
// nil when none is.
func (r *Repository) PrimaryDealContact(ctx context.Context, dealID uuid.UUID) (*uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
    SELECT contact_id
    FROM deal_contacts
    WHERE deal_id = $1 AND is_primary
    LIMIT 1
  `, dealID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// FindLatestDealByMobile returns the most recently created deal whose
// mobile number carries digits.
func (r *Repository) FindLatestDealByMobile(ctx context.Context, digits string) (domain.Deal, error) {
	deal, err := scanDeal(r.pool.QueryRow(ctx, `
    SELECT`+dealColumns+`
    FROM deals
    WHERE regexp_replace(mobile_no, '\D', '', 'g') = $1
    ORDER BY created_at DESC
    LIMIT 1
  `, digits))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Deal{}, ErrDealNotFound
	}
	return deal, err
}
