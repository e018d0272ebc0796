package store

import (
	"context"

	"tap-arena/internal/game"
)

const userColumns = `id, username, password_hash, role, created_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.CreatedAt); err != nil {
		return User{}, mapNotFound(err)
	}
	u.Role = game.Role(role)
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (User, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// EnsureUser inserts the user unless the username is taken and returns the stored row.
// created reports whether this call inserted it.
func (s *Store) EnsureUser(ctx context.Context, username, passwordHash string, role game.Role) (User, bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		INSERT INTO users (id, username, password_hash, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO NOTHING`,
		NewID(), username, passwordHash, string(role))
	if err != nil {
		return User{}, false, err
	}
	u, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return User{}, false, err
	}
	return u, tag.RowsAffected() == 1, nil
}
