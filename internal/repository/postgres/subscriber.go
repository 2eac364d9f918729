package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/ignite/engagement-tracker/internal/service/subscriber"
)

// SubscriberRepo implements subscriber.Repository against PostgreSQL.
type SubscriberRepo struct{ db *sql.DB }

// NewSubscriberRepo creates a Postgres-backed subscriber repository.
func NewSubscriberRepo(db *sql.DB) *SubscriberRepo { return &SubscriberRepo{db: db} }

func (r *SubscriberRepo) FindByUID(ctx context.Context, uid string) (*domain.Subscriber, error) {
	s := &domain.Subscriber{}
	err := r.db.QueryRowContext(ctx, `
		SELECT subscriber_id, subscriber_uid, list_id, email, COALESCE(ip_address,''),
		       status, COALESCE(source,''), date_added
		FROM list_subscribers
		WHERE subscriber_uid = $1
	`, uid).Scan(&s.ID, &s.UID, &s.ListID, &s.Email, &s.IPAddress, &s.Status, &s.Source, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, subscriber.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find subscriber: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT f.tag, v.value
		FROM list_field_values v
		JOIN list_fields f ON f.field_id = v.field_id
		WHERE v.subscriber_id = $1
	`, s.ID)
	if err != nil {
		return nil, fmt.Errorf("load subscriber fields: %w", err)
	}
	defer rows.Close()

	s.Fields = make(map[string]string)
	for rows.Next() {
		var tag, value string
		if err := rows.Scan(&tag, &value); err != nil {
			return nil, fmt.Errorf("scan subscriber field: %w", err)
		}
		s.Fields[tag] = value
	}
	return s, rows.Err()
}

func (r *SubscriberRepo) FindList(ctx context.Context, listID string) (*domain.List, error) {
	l := &domain.List{}
	err := r.db.QueryRowContext(ctx, `
		SELECT list_id, list_uid, name, COALESCE(display_name,''), COALESCE(from_name,''),
		       COALESCE(company_name,''), COALESCE(company_website,''), COALESCE(company_address,''),
		       COALESCE(company_city,''), COALESCE(company_country,''),
		       COALESCE(subscriber_not_found_redirect,'')
		FROM lists
		WHERE list_id = $1
	`, listID).Scan(
		&l.ID, &l.UID, &l.Name, &l.DisplayName, &l.FromName,
		&l.Company.Name, &l.Company.Website, &l.Company.Address,
		&l.Company.City, &l.Company.Country,
		&l.SubscriberNotFoundRedirect,
	)
	if err == sql.ErrNoRows {
		return nil, subscriber.ErrListNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find list: %w", err)
	}
	return l, nil
}

func (r *SubscriberRepo) UpdateIPAddress(ctx context.Context, subscriberID, ip string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE list_subscribers SET ip_address = $2, last_updated = NOW() WHERE subscriber_id = $1`,
		subscriberID, ip,
	)
	if err != nil {
		return fmt.Errorf("update subscriber ip: %w", err)
	}
	return nil
}

func (r *SubscriberRepo) CopyToList(ctx context.Context, sub *domain.Subscriber, targetListID string, move bool) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin copy: %w", err)
	}
	defer tx.Rollback()

	newID := uuid.New().String()
	newUID := uuid.New().String()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO list_subscribers (subscriber_id, subscriber_uid, list_id, email, ip_address, status, source, date_added, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, 'move-copy', NOW(), NOW())
		ON CONFLICT (list_id, email) DO NOTHING
	`, newID, newUID, targetListID, sub.Email, sub.IPAddress, domain.SubscriberConfirmed)
	if err != nil {
		return false, fmt.Errorf("insert subscriber copy: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	// values map onto the target list's fields by tag
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO list_field_values (field_id, subscriber_id, value)
		SELECT tf.field_id, $2, v.value
		FROM list_field_values v
		JOIN list_fields sf ON sf.field_id = v.field_id
		JOIN list_fields tf ON tf.tag = sf.tag AND tf.list_id = $3
		WHERE v.subscriber_id = $1
		ON CONFLICT (field_id, subscriber_id) DO NOTHING
	`, sub.ID, newID, targetListID); err != nil {
		return false, fmt.Errorf("copy subscriber fields: %w", err)
	}

	if move {
		if _, err := tx.ExecContext(ctx,
			`UPDATE list_subscribers SET status = $2, last_updated = NOW() WHERE subscriber_id = $1`,
			sub.ID, domain.SubscriberMoved,
		); err != nil {
			return false, fmt.Errorf("mark subscriber moved: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit copy: %w", err)
	}
	return true, nil
}

func (r *SubscriberRepo) UpsertFieldValue(ctx context.Context, subscriberID, fieldID, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO list_field_values (field_id, subscriber_id, value, last_updated)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (field_id, subscriber_id) DO UPDATE SET value = EXCLUDED.value, last_updated = NOW()
	`, fieldID, subscriberID, value)
	if err != nil {
		return fmt.Errorf("upsert field value: %w", err)
	}
	return nil
}
