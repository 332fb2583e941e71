package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Repository is the PostgreSQL credential store: users and issued refresh tokens.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, password, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("query user by email: %w", err)
	}

	return user, nil
}

func (r *Repository) InsertRefreshToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (user_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, userID, token, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

// DeleteRefreshTokensForUser removes every refresh token of the user. Zero
// affected rows is not an error.
func (r *Repository) DeleteRefreshTokensForUser(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return fmt.Errorf("delete refresh tokens: %w", err)
	}

	return nil
}

// UpsertUser creates the user or resets its password when the email exists.
func (r *Repository) UpsertUser(ctx context.Context, email, plainPassword string) (int64, error) {
	email = strings.TrimSpace(email)
	if email == "" || plainPassword == "" {
		return 0, fmt.Errorf("email and password are required")
	}
	if len(plainPassword) < MinPasswordLength || len(plainPassword) > MaxPasswordLength {
		return 0, fmt.Errorf("password must be %d to %d bytes", MinPasswordLength, MaxPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plainPassword), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()

	var id int64
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (email)
		DO UPDATE SET
			password = EXCLUDED.password,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`, email, string(hash), now).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert user: %w", err)
	}

	return id, nil
}

// DeleteExpiredRefreshTokens removes up to batchSize rows that expired before cutoff.
func (r *Repository) DeleteExpiredRefreshTokens(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM refresh_tokens
			WHERE expires_at < $1
			ORDER BY expires_at ASC
			LIMIT $2
		)
		DELETE FROM refresh_tokens t
		USING stale
		WHERE t.id = stale.id
	`, cutoff.UTC(), batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired refresh tokens rows affected: %w", err)
	}

	return affected, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

var ErrUserNotFound = errors.New("user not found")
