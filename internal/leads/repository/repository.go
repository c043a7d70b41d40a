package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"crm_workflow_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("lead not found")
	// ErrStatusChanged is returned by UpdateStatus when the lead no longer
	// has the expected status.
	ErrStatusChanged = errors.New("lead status changed")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `
    id, name, first_name, last_name, email, mobile_no, phone, organization, website,
    territory, industry, annual_revenue, source, status, converted, lead_owner,
    sla, sla_status, sla_creation, response_by, first_response_time, first_responded_on,
    communication_status, delivery_date, delivery_address, order_date, order_details,
    total, net_total, created_at, updated_at`

func scanLead(row pgx.Row) (domain.Lead, error) {
	var l domain.Lead
	err := row.Scan(
		&l.ID, &l.Name, &l.FirstName, &l.LastName, &l.Email, &l.MobileNo, &l.Phone, &l.Organization, &l.Website,
		&l.Territory, &l.Industry, &l.AnnualRevenue, &l.Source, &l.Status, &l.Converted, &l.LeadOwner,
		&l.SLA, &l.SLAStatus, &l.SLACreation, &l.ResponseBy, &l.FirstResponseTime, &l.FirstRespondedOn,
		&l.CommunicationStatus, &l.DeliveryDate, &l.DeliveryAddress, &l.OrderDate, &l.OrderDetails,
		&l.Total, &l.NetTotal, &l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}

// CreateLeadParams describes a new lead.
type CreateLeadParams struct {
	FirstName       string
	LastName        string
	Email           string
	MobileNo        string
	Phone           string
	Organization    string
	Website         string
	Source          string
	Status          string
	LeadOwner       string
	DeliveryDate    *time.Time
	DeliveryAddress string
	OrderDate       *time.Time
	OrderDetails    json.RawMessage
}

// IdentityKey is the duplicate-detection key of a lead. Email wins over
// mobile when both are set; with neither, only leads without email and
// mobile match.
type IdentityKey struct {
	FirstName    string
	LastName     string
	Organization string
	Email        string
	MobileDigits string
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `SELECT`+leadColumns+` FROM leads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) GetByName(ctx context.Context, name string) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `SELECT`+leadColumns+` FROM leads WHERE name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

// FindByIdentity returns the oldest lead matching the key.
func (r *Repository) FindByIdentity(ctx context.Context, key IdentityKey) (domain.Lead, error) {
	var row pgx.Row
	switch {
	case strings.TrimSpace(key.Email) != "":
		row = r.pool.QueryRow(ctx, `
    SELECT`+leadColumns+`
    FROM leads
    WHERE first_name = $1 AND last_name = $2 AND organization = $3 AND lower(email) = lower($4)
    ORDER BY created_at
    LIMIT 1
  `, key.FirstName, key.LastName, key.Organization, key.Email)
	case key.MobileDigits != "":
		row = r.pool.QueryRow(ctx, `
    SELECT`+leadColumns+`
    FROM leads
    WHERE first_name = $1 AND last_name = $2 AND organization = $3
      AND regexp_replace(mobile_no, '\D', '', 'g') = $4
    ORDER BY created_at
    LIMIT 1
  `, key.FirstName, key.LastName, key.Organization, key.MobileDigits)
	default:
		row = r.pool.QueryRow(ctx, `
    SELECT`+leadColumns+`
    FROM leads
    WHERE first_name = $1 AND last_name = $2 AND organization = $3
      AND email = '' AND mobile_no = ''
    ORDER BY created_at
    LIMIT 1
  `, key.FirstName, key.LastName, key.Organization)
	}

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

// FindLatestByMobile returns the most recently created lead whose mobile
// number carries digits.
func (r *Repository) FindLatestByMobile(ctx context.Context, digits string) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
    SELECT`+leadColumns+`
    FROM leads
    WHERE regexp_replace(mobile_no, '\D', '', 'g') = $1
    ORDER BY created_at DESC
    LIMIT 1
  `, digits))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) ListByStatus(ctx context.Context, status string) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
    SELECT`+leadColumns+`
    FROM leads
    WHERE status = $1
    ORDER BY created_at
  `, status)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Lead, error) {
		return scanLead(row)
	})
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (domain.Lead, error) {
	details := params.OrderDetails
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}
	return scanLead(r.pool.QueryRow(ctx, `
    INSERT INTO leads (
        first_name, last_name, email, mobile_no, phone, organization, website, source,
        status, lead_owner, delivery_date, delivery_address, order_date, order_details
    )
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
    RETURNING`+leadColumns,
		params.FirstName, params.LastName, params.Email, params.MobileNo, params.Phone, params.Organization,
		params.Website, params.Source, params.Status, params.LeadOwner, params.DeliveryDate,
		params.DeliveryAddress, params.OrderDate, details,
	))
}
