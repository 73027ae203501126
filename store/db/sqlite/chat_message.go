package sqlite

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/minseo-dev/libra/store"
)

func (d *DB) CreateChatMessage(ctx context.Context, create *store.CreateChatMessage) (*store.ChatMessage, error) {
	stmt := `
		INSERT INTO chat_message (conversation_id, role, content, route)
		VALUES (?, ?, ?, ?)
		RETURNING id, conversation_id, role, content, route, created_ts
	`
	var message store.ChatMessage
	err := d.db.QueryRowContext(ctx, stmt,
		create.ConversationID,
		create.Role,
		create.Content,
		create.Route,
	).Scan(
		&message.ID,
		&message.ConversationID,
		&message.Role,
		&message.Content,
		&message.Route,
		&message.CreatedTs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create chat message")
	}
	return &message, nil
}

func (d *DB) ListChatMessages(ctx context.Context, find *store.FindChatMessage) ([]*store.ChatMessage, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ConversationID != nil {
		where, args = append(where, "conversation_id = ?"), append(args, *find.ConversationID)
	}

	// Most recent N, but returned oldest first so callers can replay in order.
	query := `
		SELECT id, conversation_id, role, content, route, created_ts
		FROM (
			SELECT id, conversation_id, role, content, route, created_ts
			FROM chat_message
			WHERE ` + strings.Join(where, " AND ") + `
			ORDER BY id DESC
	`
	if find.Limit != nil {
		query += " LIMIT ?"
		args = append(args, *find.Limit)
	}
	query += `
		) ORDER BY id ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list chat messages")
	}
	defer rows.Close()

	messages := []*store.ChatMessage{}
	for rows.Next() {
		var message store.ChatMessage
		if err := rows.Scan(
			&message.ID,
			&message.ConversationID,
			&message.Role,
			&message.Content,
			&message.Route,
			&message.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan chat message")
		}
		messages = append(messages, &message)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}
	return messages, nil
}
