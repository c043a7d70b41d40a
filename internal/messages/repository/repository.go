package repository

import (
	"context"
	"errors"

	"crm_workflow_backend/internal/messages/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("message not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const messageColumns = `
    id, message_id, type, "from", "to", message, content_type, message_type, template_name,
    template_parameters, header_parameters, is_reply, reply_to_message_id, profile_name,
    label, status, reference_type, reference_id, created_at`

func scanMessage(row pgx.Row) (domain.Message, error) {
	var m domain.Message
	err := row.Scan(
		&m.ID, &m.ExternalID, &m.Type, &m.From, &m.To, &m.Body, &m.ContentType, &m.MessageType, &m.TemplateName,
		&m.TemplateParams, &m.HeaderParams, &m.IsReply, &m.ReplyToExternalID, &m.ProfileName,
		&m.Label, &m.Status, &m.ReferenceType, &m.ReferenceID, &m.CreatedAt,
	)
	return m, err
}

func collectMessages(rows pgx.Rows) ([]domain.Message, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Message, error) {
		return scanMessage(row)
	})
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// Insert stores a message together with its counterpart digits.
func (r *Repository) Insert(ctx context.Context, m domain.Message) (domain.Message, error) {
	return scanMessage(r.pool.QueryRow(ctx, `
    INSERT INTO whatsapp_messages (
        message_id, type, "from", "to", counterpart_digits, message, content_type, message_type,
        template_name, template_parameters, header_parameters, is_reply, reply_to_message_id,
        profile_name, label, status, reference_type, reference_id
    )
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
    RETURNING`+messageColumns,
		m.ExternalID, m.Type, m.From, m.To, m.CounterpartDigits(), m.Body, m.ContentType, m.MessageType,
		m.TemplateName, orEmpty(m.TemplateParams), orEmpty(m.HeaderParams), m.IsReply, m.ReplyToExternalID,
		m.ProfileName, m.Label, m.Status, m.ReferenceType, m.ReferenceID,
	))
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Message, error) {
	m, err := scanMessage(r.pool.QueryRow(ctx, `SELECT`+messageColumns+` FROM whatsapp_messages WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Message{}, ErrNotFound
	}
	return m, err
}

// FindByExternalID returns the oldest message carrying the channel id.
func (r *Repository) FindByExternalID(ctx context.Context, externalID string) (domain.Message, error) {
	m, err := scanMessage(r.pool.QueryRow(ctx, `
    SELECT`+messageColumns+`
    FROM whatsapp_messages
    WHERE message_id = $1
    ORDER BY created_at
    LIMIT 1
  `, externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Message{}, ErrNotFound
	}
	return m, err
}

// ListByCounterparts returns every message exchanged with any of the
// phones, oldest first.
func (r *Repository) ListByCounterparts(ctx context.Context, digits []string) ([]domain.Message, error) {
	if len(digits) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
    SELECT`+messageColumns+`
    FROM whatsapp_messages
    WHERE counterpart_digits = ANY($1)
    ORDER BY created_at, id
  `, digits)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// LatestIncomingPhone returns the sender of the newest inbound message
// attributed to the entity, or "".
func (r *Repository) LatestIncomingPhone(ctx context.Context, ref domain.EntityRef) (string, error) {
	var from string
	err := r.pool.QueryRow(ctx, `
    SELECT "from"
    FROM whatsapp_messages
    WHERE reference_type = $1 AND reference_id = $2 AND type = 'Incoming' AND "from" <> ''
    ORDER BY created_at DESC
    LIMIT 1
  `, ref.Type, ref.ID).Scan(&from)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return from, err
}

// GetTemplates loads the named templates keyed by name. Unknown names are
// absent from the result.
func (r *Repository) GetTemplates(ctx context.Context, names []string) (map[string]domain.Template, error) {
	out := make(map[string]domain.Template, len(names))
	if len(names) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `
    SELECT name, language, header, template, footer
    FROM whatsapp_templates
    WHERE name = ANY($1)
  `, names)
	if err != nil {
		return nil, err
	}
	templates, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Template, error) {
		var t domain.Template
		err := row.Scan(&t.Name, &t.Language, &t.Header, &t.Body, &t.Footer)
		return t, err
	})
	if err != nil {
		return nil, err
	}
	for _, t := range templates {
		out[t.Name] = t
	}
	return out, nil
}

// UpsertTemplate creates or replaces a template.
func (r *Repository) UpsertTemplate(ctx context.Context, t domain.Template) error {
	_, err := r.pool.Exec(ctx, `
    INSERT INTO whatsapp_templates (name, language, header, template, footer)
    VALUES ($1, $2, $3, $4, $5)
    ON CONFLICT (name) DO UPDATE
    SET language = EXCLUDED.language,
        header = EXCLUDED.header,
        template = EXCLUDED.template,
        footer = EXCLUDED.footer
  `, t.Name, t.Language, t.Header, t.Body, t.Footer)
	return err
}

// UpdateStatus records a delivery status reported by the channel.
func (r *Repository) UpdateStatus(ctx context.Context, externalID, status string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE whatsapp_messages SET status = $2 WHERE message_id = $1`, externalID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
