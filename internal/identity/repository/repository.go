package repository

import (
	"context"
	"errors"
	"strings"

	"crm_workflow_backend/internal/identity/domain"
	"crm_workflow_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateContactParams describes a new contact with its phone and email rows.
type CreateContactParams struct {
	FirstName   string
	LastName    string
	Email       string
	MobileNo    string
	Phone       string
	CompanyName string
	Website     string
	Phones      []domain.ContactPhone
	Emails      []domain.ContactEmail
}

// UpdateProfileParams carries the conversational profile fields. Empty
// optional values leave the stored value unchanged.
type UpdateProfileParams struct {
	ContactID   uuid.UUID
	FirstName   string
	LastName    string
	Email       string
	Website     string
	CompanyName string
}

// OrganizationParams describes an organization to find or create.
type OrganizationParams struct {
	Name          string
	Website       string
	Territory     string
	Industry      string
	AnnualRevenue float64
}

const contactColumns = `
    c.id, c.first_name, c.last_name, c.email, c.mobile_no, c.phone,
    c.company_name, c.website, c.created_at, c.updated_at`

func scanContact(row pgx.Row) (domain.Contact, error) {
	var c domain.Contact
	err := row.Scan(
		&c.ID,
		&c.FirstName,
		&c.LastName,
		&c.Email,
		&c.MobileNo,
		&c.Phone,
		&c.CompanyName,
		&c.Website,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

// FindContactByDigits returns the oldest contact whose canonical phone
// matches digits, falling back to secondary phone rows.
func (r *Repository) FindContactByDigits(ctx context.Context, digits string) (domain.Contact, error) {
	contact, err := scanContact(r.pool.QueryRow(ctx, `
    SELECT`+contactColumns+`
    FROM contacts c
    WHERE regexp_replace(c.mobile_no, '\D', '', 'g') = $1
    ORDER BY c.created_at
    LIMIT 1
  `, digits))
	if errors.Is(err, pgx.ErrNoRows) {
		contact, err = scanContact(r.pool.QueryRow(ctx, `
    SELECT`+contactColumns+`
    FROM contacts c
    JOIN contact_phones p ON p.contact_id = c.id
    WHERE regexp_replace(p.phone, '\D', '', 'g') = $1
    ORDER BY c.created_at
    LIMIT 1
  `, digits))
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Contact{}, ErrNotFound
	}
	if err != nil {
		return domain.Contact{}, err
	}
	return r.loadChildren(ctx, r.pool, contact)
}

// FindContactByEmail matches the main email or any email row, case-insensitively.
func (r *Repository) FindContactByEmail(ctx context.Context, email string) (domain.Contact, error) {
	contact, err := scanContact(r.pool.QueryRow(ctx, `
    SELECT`+contactColumns+`
    FROM contacts c
    WHERE lower(c.email) = lower($1)
       OR EXISTS (SELECT 1 FROM contact_emails e WHERE e.contact_id = c.id AND lower(e.email) = lower($1))
    ORDER BY c.created_at
    LIMIT 1
  `, strings.TrimSpace(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Contact{}, ErrNotFound
	}
	if err != nil {
		return domain.Contact{}, err
	}
	return r.loadChildren(ctx, r.pool, contact)
}

func (r *Repository) GetContact(ctx context.Context, id uuid.UUID) (domain.Contact, error) {
	contact, err := scanContact(r.pool.QueryRow(ctx, `
    SELECT`+contactColumns+`
    FROM contacts c
    WHERE c.id = $1
  `, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Contact{}, ErrNotFound
	}
	if err != nil {
		return domain.Contact{}, err
	}
	return r.loadChildren(ctx, r.pool, contact)
}

func (r *Repository) loadChildren(ctx context.Context, q db.Querier, contact domain.Contact) (domain.Contact, error) {
	rows, err := q.Query(ctx, `
    SELECT id, phone, is_primary_mobile_no, is_primary_phone
    FROM contact_phones
    WHERE contact_id = $1
    ORDER BY position, id
  `, contact.ID)
	if err != nil {
		return domain.Contact{}, err
	}
	phones, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ContactPhone, error) {
		var p domain.ContactPhone
		err := row.Scan(&p.ID, &p.Phone, &p.IsPrimaryMobileNo, &p.IsPrimaryPhone)
		return p, err
	})
	if err != nil {
		return domain.Contact{}, err
	}

	rows, err = q.Query(ctx, `
    SELECT id, email, is_primary
    FROM contact_emails
    WHERE contact_id = $1
    ORDER BY position, id
  `, contact.ID)
	if err != nil {
		return domain.Contact{}, err
	}
	emails, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ContactEmail, error) {
		var e domain.ContactEmail
		err := row.Scan(&e.ID, &e.Email, &e.IsPrimary)
		return e, err
	})
	if err != nil {
		return domain.Contact{}, err
	}

	contact.Phones = phones
	contact.Emails = emails
	return contact, nil
}

// CreateContact inserts the contact and its child rows in one transaction.
func (r *Repository) CreateContact(ctx context.Context, params CreateContactParams) (domain.Contact, error) {
	var created domain.Contact
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		contact, err := scanContact(tx.QueryRow(ctx, `
    INSERT INTO contacts AS c (first_name, last_name, email, mobile_no, phone, company_name, website)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    RETURNING`+contactColumns,
			params.FirstName, params.LastName, params.Email, params.MobileNo, params.Phone, params.CompanyName, params.Website))
		if err != nil {
			return err
		}

		for i, p := range params.Phones {
			if _, err := tx.Exec(ctx, `
    INSERT INTO contact_phones (contact_id, phone, is_primary_mobile_no, is_primary_phone, position)
    VALUES ($1, $2, $3, $4, $5)
  `, contact.ID, p.Phone, p.IsPrimaryMobileNo, p.IsPrimaryPhone, i); err != nil {
				return err
			}
		}
		for i, e := range params.Emails {
			if _, err := tx.Exec(ctx, `
    INSERT INTO contact_emails (contact_id, email, is_primary, position)
    VALUES ($1, $2, $3, $4)
  `, contact.ID, e.Email, e.IsPrimary, i); err != nil {
				return err
			}
		}

		created, err = r.loadChildren(ctx, tx, contact)
		return err
	})
	return created, err
}

// NormalizeContactPhones writes the pretty mobile number and, when rowID is
// set, the primary mobile row.
func (r *Repository) NormalizeContactPhones(ctx context.Context, contactID uuid.UUID, mobile string, rowID uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
    UPDATE contacts SET mobile_no = $2, updated_at = now() WHERE id = $1
  `, contactID, mobile)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if rowID == uuid.Nil {
			return nil
		}
		_, err = tx.Exec(ctx, `
    UPDATE contact_phones SET phone = $3 WHERE id = $2 AND contact_id = $1
  `, contactID, rowID, mobile)
		return err
	})
}

// UpdateContactProfile saves name, website and company, and makes Email the
// primary email row when it is set.
func (r *Repository) UpdateContactProfile(ctx context.Context, params UpdateProfileParams) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
    UPDATE contacts
    SET first_name = $2,
        last_name = $3,
        email = COALESCE(NULLIF($4, ''), email),
        website = COALESCE(NULLIF($5, ''), website),
        company_name = COALESCE(NULLIF($6, ''), company_name),
        updated_at = now()
    WHERE id = $1
  `, params.ContactID, params.FirstName, params.LastName, params.Email, params.Website, params.CompanyName)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if params.Email == "" {
			return nil
		}

		tag, err = tx.Exec(ctx, `
    UPDATE contact_emails
    SET is_primary = (lower(email) = lower($2))
    WHERE contact_id = $1
  `, params.ContactID, params.Email)
		if err != nil {
			return err
		}

		var exists bool
		if err := tx.QueryRow(ctx, `
    SELECT EXISTS (SELECT 1 FROM contact_emails WHERE contact_id = $1 AND lower(email) = lower($2))
  `, params.ContactID, params.Email).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return nil
		}
		_, err = tx.Exec(ctx, `
    INSERT INTO contact_emails (contact_id, email, is_primary, position)
    VALUES ($1, $2, true, $3)
  `, params.ContactID, params.Email, tag.RowsAffected())
		return err
	})
}

func scanOrganization(row pgx.Row) (domain.Organization, error) {
	var org domain.Organization
	err := row.Scan(&org.ID, &org.Name, &org.Website, &org.Territory, &org.Industry, &org.AnnualRevenue, &org.CreatedAt)
	return org, err
}

func (r *Repository) FindOrganizationByName(ctx context.Context, name string) (domain.Organization, error) {
	org, err := scanOrganization(r.pool.QueryRow(ctx, `
    SELECT id, name, website, territory, industry, annual_revenue::float8, created_at
    FROM organizations
    WHERE name = $1
  `, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Organization{}, ErrNotFound
	}
	return org, err
}

// EnsureOrganization finds the organization by exact name or creates it.
// The boolean reports whether a row was created.
func (r *Repository) EnsureOrganization(ctx context.Context, params OrganizationParams) (domain.Organization, bool, error) {
	org, err := scanOrganization(r.pool.QueryRow(ctx, `
    INSERT INTO organizations (name, website, territory, industry, annual_revenue)
    VALUES ($1, $2, $3, $4, $5)
    ON CONFLICT (name) DO NOTHING
    RETURNING id, name, website, territory, industry, annual_revenue::float8, created_at
  `, params.Name, params.Website, params.Territory, params.Industry, params.AnnualRevenue))
	if err == nil {
		return org, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Organization{}, false, err
	}
	org, err = r.FindOrganizationByName(ctx, params.Name)
	return org, false, err
}

func (r *Repository) LinkContactOrganization(ctx context.Context, contactID, organizationID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
    INSERT INTO contact_organizations (contact_id, organization_id)
    VALUES ($1, $2)
    ON CONFLICT DO NOTHING
  `, contactID, organizationID)
	return err
}
