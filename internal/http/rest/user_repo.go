package rest

import (
	"context"
	"fmt"

	"github.com/bwise1/waste_patrol/internal/model"
	"github.com/bwise1/waste_patrol/util/values"
)

func (api *API) UpdateProfileRepo(ctx context.Context, userID string, req model.UpdateProfileRequest) (model.User, error) {
	stmt := `
        UPDATE users
        SET name = $2, phone = $3, address = $4, updated_at = NOW()
        WHERE id = $1
        RETURNING ` + userColumns

	return scanUser(api.DB.QueryRow(ctx, stmt, userID, req.Name, req.Phone, req.Address))
}

func (api *API) UpdatePasswordRepo(ctx context.Context, userID, passwordHash string) error {
	stmt := `
        UPDATE users
        SET password_hash = $2, updated_at = NOW()
        WHERE id = $1
    `
	_, err := api.DB.Exec(ctx, stmt, userID, passwordHash)
	return err
}

func (api *API) ListUsersRepo(ctx context.Context, params model.UserListParams) ([]model.User, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argCount := 0

	if params.Role != "" {
		argCount++
		where += fmt.Sprintf(" AND role = $%d", argCount)
		args = append(args, params.Role)
	}
	if params.Search != "" {
		argCount++
		where += fmt.Sprintf(" AND (name ILIKE $%d OR email ILIKE $%d)", argCount, argCount)
		args = append(args, "%"+params.Search+"%")
	}

	var total int
	if err := api.DB.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting users: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		userColumns, where, argCount+1, argCount+2)
	args = append(args, params.Limit, (params.Page-1)*params.Limit)

	rows, err := api.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

func (api *API) ListAuthoritiesRepo(ctx context.Context) ([]model.UserSummary, error) {
	stmt := `
        SELECT id, name, email, phone FROM users
        WHERE role = $1 AND is_active = TRUE
        ORDER BY name
    `
	rows, err := api.DB.Query(ctx, stmt, values.RoleAuthority)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	authorities := []model.UserSummary{}
	for rows.Next() {
		var u model.UserSummary
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Phone); err != nil {
			return nil, err
		}
		authorities = append(authorities, u)
	}
	return authorities, rows.Err()
}

func (api *API) ToggleUserStatusRepo(ctx context.Context, userID string) (model.User, error) {
	stmt := `
        UPDATE users
        SET is_active = NOT is_active, updated_at = NOW()
        WHERE id = $1
        RETURNING ` + userColumns

	return scanUser(api.DB.QueryRow(ctx, stmt, userID))
}

func (api *API) UpdateUserRoleRepo(ctx context.Context, userID, role string) (model.User, error) {
	stmt := `
        UPDATE users
        SET role = $2, updated_at = NOW()
        WHERE id = $1
        RETURNING ` + userColumns

	return scanUser(api.DB.QueryRow(ctx, stmt, userID, role))
}
