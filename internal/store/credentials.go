package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// credentialsRow is the fixed primary key of the single credentials row.
const credentialsRow = 1

// credentialRepo implements CredentialRepo with a single-row table.
type credentialRepo struct {
	db *sql.DB
}

func (r *credentialRepo) Save(ctx context.Context, c Credentials) error {
	if c.Token == "" {
		return errors.New("save credentials: empty token")
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}
	query, args := builder().Insert(credentialsTable).
		Columns("id", "token", "username", "updated_at").
		Values(credentialsRow, c.Token, c.Username, c.UpdatedAt).
		OnConflict(
			entsql.ConflictColumns("id"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

func (r *credentialRepo) Load(ctx context.Context) (Credentials, error) {
	query, args := builder().Select("token", "username", "updated_at").
		From(entsql.Table(credentialsTable)).
		Where(entsql.EQ("id", credentialsRow)).
		Query()

	var (
		c        Credentials
		username sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&c.Token, &username, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Credentials{}, ErrNoCredentials
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("load credentials: %w", err)
	}
	c.Username = username.String
	return c, nil
}

func (r *credentialRepo) Clear(ctx context.Context) error {
	query, args := builder().Delete(credentialsTable).Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
