package notifications

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aurahealth/notify/pkg/pg"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStorage persists mailboxes in PostgreSQL behind the same Storage
// contract as MemoryStorage. Append order is captured by a sequence column
// so snapshots replay exactly the order records were committed in.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a storage on an existing connection pool.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

// Migrate applies the notifications schema migrations.
func (s *PostgresStorage) Migrate(ctx context.Context, log *slog.Logger) error {
	return pg.Migrate(ctx, s.pool, migrationsFS, "migrations", log)
}

func (s *PostgresStorage) Append(ctx context.Context, n Notification) error {
	if n.ID == "" {
		return ErrMissingID
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, mailbox, user_id, title, message, type, data, read, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), $7, $8, $9)`,
		n.ID, n.Mailbox(), n.UserID, n.Title, n.Message, n.Type, []byte(n.Data), n.Read, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Snapshot(ctx context.Context, mailbox string) ([]Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, COALESCE(user_id, ''), title, message, COALESCE(type, ''), data, read, created_at
		FROM notifications
		WHERE mailbox = $1
		ORDER BY seq DESC`,
		mailbox,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot mailbox: %w", err)
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		var n Notification
		var data []byte
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &data, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Data = json.RawMessage(data)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot mailbox: %w", err)
	}
	return out, nil
}

func (s *PostgresStorage) MarkRead(ctx context.Context, mailbox, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE mailbox = $1 AND id = $2`,
		mailbox, id,
	)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStorage) MarkAllRead(ctx context.Context, mailbox string) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE mailbox = $1 AND NOT read`,
		mailbox,
	); err != nil {
		return fmt.Errorf("mark mailbox read: %w", err)
	}
	return nil
}

func (s *PostgresStorage) CountUnread(ctx context.Context, mailbox string) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM notifications WHERE mailbox = $1 AND NOT read`,
		mailbox,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}
