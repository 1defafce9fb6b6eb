package postgres

import (
	"context"
	"fmt"
)

const upsertUserSQL = `INSERT INTO users (first_name, last_name, email, password_hash)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (email) DO UPDATE
	SET first_name = EXCLUDED.first_name,
		last_name = EXCLUDED.last_name,
		password_hash = EXCLUDED.password_hash,
		updated_at = now()
	RETURNING id`

// User is a row of the users table. The service itself only needs user IDs;
// full rows are written by the seeding tool.
type User struct {
	ID           int64
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
}

// UserRepository writes users.
type UserRepository struct {
	db DB
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert inserts u or updates the user with the same email, returning its ID.
func (r *UserRepository) Upsert(ctx context.Context, u User) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, upsertUserSQL, u.FirstName, u.LastName, u.Email, u.PasswordHash).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting user %q: %w", u.Email, err)
	}
	return id, nil
}
