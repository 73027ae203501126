package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/minseo-dev/libra/store"
)

func (d *DB) GetUser(ctx context.Context, find *store.FindUser) (*store.User, error) {
	if find.ID == nil {
		return nil, errors.New("user id required")
	}

	var user store.User
	err := d.db.QueryRowContext(ctx, `
		SELECT id, name, affiliation, created_ts FROM user_profile WHERE id = ?
	`, *find.ID).Scan(&user.ID, &user.Name, &user.Affiliation, &user.CreatedTs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get user")
	}
	return &user, nil
}

func (d *DB) CreateUser(ctx context.Context, create *store.User) (*store.User, error) {
	stmt := `
		INSERT INTO user_profile (id, name, affiliation)
		VALUES (?, ?, ?)
		RETURNING id, name, affiliation, created_ts
	`
	var user store.User
	err := d.db.QueryRowContext(ctx, stmt, create.ID, create.Name, create.Affiliation).Scan(
		&user.ID,
		&user.Name,
		&user.Affiliation,
		&user.CreatedTs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create user")
	}
	return &user, nil
}
