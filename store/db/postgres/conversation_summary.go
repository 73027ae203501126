package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/minseo-dev/libra/store"
)

// UpsertConversationSummary inserts or updates the rolling summary row.
func (d *DB) UpsertConversationSummary(ctx context.Context, upsert *store.UpsertConversationSummary) (*store.ConversationSummary, error) {
	stmt := `
		INSERT INTO conversation_summary (conversation_id, summary, updated_ts)
		VALUES ($1, $2, $3)
		ON CONFLICT (conversation_id) DO UPDATE SET
			summary = EXCLUDED.summary,
			updated_ts = EXCLUDED.updated_ts
		RETURNING id, conversation_id, summary, updated_ts
	`
	var summary store.ConversationSummary
	err := d.db.QueryRowContext(ctx, stmt,
		upsert.ConversationID,
		upsert.Summary,
		time.Now().Unix(),
	).Scan(
		&summary.ID,
		&summary.ConversationID,
		&summary.Summary,
		&summary.UpdatedTs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert conversation summary")
	}
	return &summary, nil
}

func (d *DB) GetConversationSummary(ctx context.Context, find *store.FindConversationSummary) (*store.ConversationSummary, error) {
	if find.ConversationID == nil {
		return nil, errors.New("conversation id required")
	}

	var summary store.ConversationSummary
	err := d.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, summary, updated_ts
		FROM conversation_summary
		WHERE conversation_id = $1
	`, *find.ConversationID).Scan(
		&summary.ID,
		&summary.ConversationID,
		&summary.Summary,
		&summary.UpdatedTs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get conversation summary")
	}
	return &summary, nil
}
