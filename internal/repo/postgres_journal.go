package repo

import (
	"context"
	"database/sql"

	"github.com/LeventeLantos/messenger-transport/internal/model"
)

// PostgresJournal persists delivery records in a deliveries table:
//
//	message_id TEXT PRIMARY KEY, recipient TEXT, status TEXT,
//	platform_message_id TEXT NULL, last_error TEXT NULL,
//	sent_at TIMESTAMPTZ NULL, created_at/updated_at TIMESTAMPTZ.
type PostgresJournal struct {
	db *sql.DB
}

func NewPostgresJournal(db *sql.DB) *PostgresJournal {
	return &PostgresJournal{db: db}
}

func (r *PostgresJournal) Record(ctx context.Context, messageID, recipient string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO deliveries (message_id, recipient, status, created_at, updated_at)
		VALUES ($1, $2, 'pending', now(), now())
		ON CONFLICT (message_id) DO NOTHING
	`, messageID, recipient)
	return err
}

func (r *PostgresJournal) MarkSent(ctx context.Context, messageID, platformMessageID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE deliveries
		SET status = 'sent',
		    sent_at = now(),
		    platform_message_id = $2,
		    updated_at = now()
		WHERE message_id = $1
	`, messageID, platformMessageID)
	return err
}

func (r *PostgresJournal) MarkFailed(ctx context.Context, messageID, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE deliveries
		SET status = 'failed',
		    last_error = $2,
		    updated_at = now()
		WHERE message_id = $1
	`, messageID, reason)
	return err
}

func (r *PostgresJournal) ListSent(ctx context.Context, limit, offset int) ([]model.DeliveryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT message_id, recipient, status, platform_message_id,
		       last_error, sent_at, created_at, updated_at
		FROM deliveries
		WHERE status = 'sent'
		ORDER BY sent_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DeliveryRecord
	for rows.Next() {
		var rec model.DeliveryRecord
		var status string
		var platformID sql.NullString
		var lastErr sql.NullString
		var sentAt sql.NullTime

		if err := rows.Scan(
			&rec.MessageID,
			&rec.Recipient,
			&status,
			&platformID,
			&lastErr,
			&sentAt,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		); err != nil {
			return nil, err
		}

		rec.Status = model.Status(status)

		if platformID.Valid {
			s := platformID.String
			rec.PlatformMessageID = &s
		}
		if lastErr.Valid {
			s := lastErr.String
			rec.LastError = &s
		}
		if sentAt.Valid {
			t := sentAt.Time
			rec.SentAt = &t
		}

		out = append(out, rec)
	}
	return out, rows.Err()
}
