package repository

import (
	"context"
	"errors"

	"expertbooking/internal/infra"
	"expertbooking/internal/infra/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrEventAlreadyProcessed signals a duplicate webhook delivery; the caller
// treats it as success without re-running the transition.
var ErrEventAlreadyProcessed = errors.New("webhook event already processed")

type WebhookEventRepository struct{}

func NewWebhookEventRepository() *WebhookEventRepository {
	return &WebhookEventRepository{}
}

// Record inserts the event keyed by (provider, event_id). The unique
// constraint makes this the dedup gate for provider retries.
func (r *WebhookEventRepository) Record(ctx context.Context, tx db.DBTX, provider, eventID, eventType string, payload []byte, signatureValid bool) (uuid.UUID, error) {
	id := uuid.New()
	var insertedID uuid.UUID
	err := tx.QueryRow(ctx,
		`INSERT INTO webhook_events (id, provider, event_id, event_type, payload, signature_valid, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 ON CONFLICT (provider, event_id) DO NOTHING
		 RETURNING id`,
		id, provider, eventID, eventType, payload, signatureValid,
	).Scan(&insertedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrEventAlreadyProcessed
		}
		return uuid.Nil, infra.WrapRepoErr("failed to record webhook event", err)
	}
	return insertedID, nil
}

func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, tx db.DBTX, id uuid.UUID) error {
	_, err := tx.Exec(ctx,
		`UPDATE webhook_events SET processed_at = now() WHERE id = $1`, id)
	if err != nil {
		return infra.WrapRepoErr("failed to mark webhook event processed", err)
	}
	return nil
}

// MarkFailed records a reconciliation anomaly for manual review; the event
// stays processed so the provider is not asked to retry something we cannot
// safely apply.
func (r *WebhookEventRepository) MarkFailed(ctx context.Context, tx db.DBTX, id uuid.UUID, reason string) error {
	_, err := tx.Exec(ctx,
		`UPDATE webhook_events SET processed_at = now(), processing_error = $2 WHERE id = $1`,
		id, reason)
	if err != nil {
		return infra.WrapRepoErr("failed to mark webhook event failed", err)
	}
	return nil
}
