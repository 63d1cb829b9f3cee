package rest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwise1/waste_patrol/internal/model"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, name, email, password_hash, role, phone, address, auth_provider, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Phone,
		&user.Address,
		&user.AuthProvider,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (api *API) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	stmt := `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`

	err := api.DB.QueryRow(ctx, stmt, email).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (api *API) CreateUserRepo(ctx context.Context, user model.User) (model.User, error) {
	stmt := `
        INSERT INTO users (
            name,
            email,
            password_hash,
            role,
            phone,
            address,
            auth_provider,
            is_active
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING ` + userColumns

	return scanUser(api.DB.QueryRow(ctx, stmt,
		user.Name, user.Email, user.PasswordHash, user.Role,
		user.Phone, user.Address, user.AuthProvider, user.IsActive,
	))
}

func (api *API) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	stmt := `-- name: get-user-by-email
		SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	return scanUser(api.DB.QueryRow(ctx, stmt, email))
}

func (api *API) GetUserByID(ctx context.Context, userID string) (model.User, error) {
	stmt := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	return scanUser(api.DB.QueryRow(ctx, stmt, userID))
}

// StoreRefreshToken stores the refresh token in the database
func (api *API) StoreRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	query := `
        INSERT INTO auth_tokens (user_id, token_type, token_value, expires_at, created_at)
        VALUES ($1, 'refresh', $2, $3, NOW())
    `
	_, err := api.DB.Exec(ctx, query, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

func (api *API) ValidateRefreshToken(ctx context.Context, token string) error {
	query := `
        SELECT 1 FROM auth_tokens
        WHERE token_value = $1 AND token_type = 'refresh' AND is_revoked = FALSE AND expires_at > NOW()
    `
	var exists int
	err := api.DB.QueryRow(ctx, query, token).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("refresh token is invalid or expired")
		}
		return err
	}
	return nil
}

func (api *API) RevokeRefreshToken(ctx context.Context, token string) error {
	query := `
        UPDATE auth_tokens
        SET is_revoked = TRUE
        WHERE token_value = $1
    `
	_, err := api.DB.Exec(ctx, query, token)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RevokeUserTokens revokes every outstanding refresh token of a user.
func (api *API) RevokeUserTokens(ctx context.Context, userID string) error {
	query := `
        UPDATE auth_tokens
        SET is_revoked = TRUE
        WHERE user_id = $1 AND is_revoked = FALSE
    `
	_, err := api.DB.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke user tokens: %w", err)
	}
	return nil
}
