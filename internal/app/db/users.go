package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAccountNotFound is returned when no account matches the lookup.
var ErrAccountNotFound = errors.New("account not found")

// Account is one row in the users table.
type Account struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	AvatarURL    string
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// AccountRepo provides access to the users table.
type AccountRepo struct {
	pool *pgxpool.Pool
}

// NewAccountRepo constructs an AccountRepo over the pool.
func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// CreateAccount inserts a new account row.
func (r *AccountRepo) CreateAccount(ctx context.Context, account Account) error {
	const query = `
		INSERT INTO users (id, email, display_name, password_hash, avatar_url)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query,
		account.ID, account.Email, account.DisplayName, account.PasswordHash, account.AvatarURL)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}

	return nil
}

// GetAccountByEmail returns the account with the given email.
func (r *AccountRepo) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	const query = `
		SELECT id, email, display_name, password_hash, avatar_url, created_at, last_login_at
		FROM users
		WHERE email = $1`

	return r.scanAccount(r.pool.QueryRow(ctx, query, email))
}

// GetAccountByID returns the account with the given id.
func (r *AccountRepo) GetAccountByID(ctx context.Context, id string) (Account, error) {
	const query = `
		SELECT id, email, display_name, password_hash, avatar_url, created_at, last_login_at
		FROM users
		WHERE id = $1`

	return r.scanAccount(r.pool.QueryRow(ctx, query, id))
}

// UpdateAvatar sets the account's avatar URL.
func (r *AccountRepo) UpdateAvatar(ctx context.Context, id, avatarURL string) error {
	const query = `UPDATE users SET avatar_url = $2 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, avatarURL)
	if err != nil {
		return fmt.Errorf("failed to update avatar: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// UpdateLastLogin stamps the account's last sign-in time.
func (r *AccountRepo) UpdateLastLogin(ctx context.Context, id string) error {
	const query = `UPDATE users SET last_login_at = now() WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	return nil
}

func (r *AccountRepo) scanAccount(row pgx.Row) (Account, error) {
	var account Account

	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.DisplayName,
		&account.PasswordHash,
		&account.AvatarURL,
		&account.CreatedAt,
		&account.LastLoginAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("failed to scan account: %w", err)
	}

	return account, nil
}
