package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nodeloom/loom/pkg/models"
	"github.com/nodeloom/loom/pkg/persistence"
)

// WebhookRepository handles webhook registration rows.
type WebhookRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewWebhookRepository(db *sql.DB, logger *slog.Logger) *WebhookRepository {
	return &WebhookRepository{db: db, logger: logger}
}

const webhookColumns = `
	key
  , graph_id
  , method
  , secret
  , allowed_origins
  , active
  , call_count
  , last_called_at
  , created_at
  , updated_at
`

// Webhooks returns every stored registration.
func (r *WebhookRepository) Webhooks(ctx context.Context) ([]*models.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhooks: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	webhooks := make([]*models.Webhook, 0)

	for rows.Next() {
		webhook, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}

		webhooks = append(webhooks, webhook)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating webhooks: %w", err)
	}

	return webhooks, nil
}

// WebhookByKey returns one registration or persistence.ErrWebhookNotFound.
func (r *WebhookRepository) WebhookByKey(ctx context.Context, key string) (*models.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE key = $1`

	webhook, err := scanWebhook(r.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrWebhookNotFound
		}

		return nil, fmt.Errorf("failed to scan webhook: %w", err)
	}

	return webhook, nil
}

// SaveWebhook upserts the registration row.
func (r *WebhookRepository) SaveWebhook(ctx context.Context, webhook *models.Webhook) error {
	webhook.UpdatedAt = time.Now().UTC()

	originsJSON, err := json.Marshal(webhook.AllowedOrigins)
	if err != nil {
		return fmt.Errorf("failed to marshal allowed origins: %w", err)
	}

	query := `
		INSERT INTO webhooks (key, graph_id, method, secret, allowed_origins, active, call_count, last_called_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (key) DO UPDATE SET
			method = EXCLUDED.method,
			secret = EXCLUDED.secret,
			allowed_origins = EXCLUDED.allowed_origins,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		webhook.Key,
		webhook.GraphID,
		webhook.Method,
		webhook.Secret,
		originsJSON,
		webhook.Active,
		webhook.CallCount,
		webhook.LastCalledAt,
		webhook.CreatedAt,
		webhook.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save webhook: %w", err)
	}

	return nil
}

// DeleteWebhook removes the registration row.
func (r *WebhookRepository) DeleteWebhook(ctx context.Context, key string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM webhooks WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.ErrWebhookNotFound
	}

	return nil
}

// RecordCall bumps the usage counters in a single statement.
func (r *WebhookRepository) RecordCall(ctx context.Context, key string) error {
	query := `
		UPDATE webhooks
		SET call_count = call_count + 1, last_called_at = NOW(), updated_at = NOW()
		WHERE key = $1
	`

	result, err := r.db.ExecContext(ctx, query, key)
	if err != nil {
		return fmt.Errorf("failed to record webhook call: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.ErrWebhookNotFound
	}

	return nil
}

func scanWebhook(row rowScanner) (*models.Webhook, error) {
	var (
		webhook      models.Webhook
		originsJSON  []byte
		lastCalledAt sql.NullTime
	)

	err := row.Scan(
		&webhook.Key,
		&webhook.GraphID,
		&webhook.Method,
		&webhook.Secret,
		&originsJSON,
		&webhook.Active,
		&webhook.CallCount,
		&lastCalledAt,
		&webhook.CreatedAt,
		&webhook.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastCalledAt.Valid {
		webhook.LastCalledAt = &lastCalledAt.Time
	}

	if len(originsJSON) > 0 {
		if err := json.Unmarshal(originsJSON, &webhook.AllowedOrigins); err != nil {
			return nil, fmt.Errorf("failed to unmarshal allowed origins: %w", err)
		}
	}

	return &webhook, nil
}
