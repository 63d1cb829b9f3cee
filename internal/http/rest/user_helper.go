package rest

import (
	"context"
	"errors"

	"github.com/bwise1/waste_patrol/internal/model"
	"github.com/bwise1/waste_patrol/util"
	"github.com/bwise1/waste_patrol/util/values"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

const maxPageSize = 100

func (api *API) UpdateProfileHelper(ctx context.Context, user model.User, req model.UpdateProfileRequest) (model.User, string, string, error) {
	if err := util.ValidateStruct(req); err != nil {
		return model.User{}, values.BadRequestBody, "Validation failed", err
	}

	updated, err := api.UpdateProfileRepo(ctx, user.ID.String(), req)
	if err != nil {
		return model.User{}, values.Error, "Failed to update profile", err
	}
	return updated, values.Success, "Profile updated successfully", nil
}

func (api *API) ChangePasswordHelper(ctx context.Context, user model.User, req model.ChangePasswordRequest) (string, string, error) {
	if err := util.ValidateStruct(req); err != nil {
		return values.BadRequestBody, "Validation failed", err
	}
	if user.PasswordHash == nil {
		return values.BadRequestBody, "Password sign-in is not enabled for this account", nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return values.NotAuthorised, "Current password is incorrect", nil
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		return values.Error, values.SystemErr, err
	}
	if err := api.UpdatePasswordRepo(ctx, user.ID.String(), hash); err != nil {
		return values.Error, "Failed to change password", err
	}
	if err := api.RevokeUserTokens(ctx, user.ID.String()); err != nil {
		return values.Error, values.SystemErr, err
	}
	return values.Success, "Password changed successfully", nil
}

func (api *API) ListUsersHelper(ctx context.Context, params model.UserListParams) (map[string]interface{}, string, string, error) {
	if params.Limit > maxPageSize {
		params.Limit = maxPageSize
	}
	if params.Role != "" && util.ValidateVar(params.Role, "role") != nil {
		return nil, values.BadRequestBody, "Invalid role filter", nil
	}

	users, total, err := api.ListUsersRepo(ctx, params)
	if err != nil {
		return nil, values.Error, "Failed to fetch users", err
	}
	return map[string]interface{}{
		"users":      users,
		"pagination": model.NewPagination(params.Page, params.Limit, total),
	}, values.Success, "Users retrieved successfully", nil
}

// ToggleUserStatusHelper activates or deactivates another user's account.
func (api *API) ToggleUserStatusHelper(ctx context.Context, actor model.User, target uuid.UUID) (model.User, string, string, error) {
	if actor.ID == target {
		return model.User{}, values.NotAllowed, "You cannot change your own account status", nil
	}

	user, err := api.ToggleUserStatusRepo(ctx, target.String())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, values.NotFound, "User not found", err
		}
		return model.User{}, values.Error, "Failed to update user status", err
	}
	if !user.IsActive {
		if err := api.RevokeUserTokens(ctx, user.ID.String()); err != nil {
			return model.User{}, values.Error, values.SystemErr, err
		}
	}

	message := "User deactivated successfully"
	if user.IsActive {
		message = "User activated successfully"
	}
	return user, values.Success, message, nil
}

func (api *API) UpdateUserRoleHelper(ctx context.Context, actor model.User, target uuid.UUID, req model.UpdateRoleRequest) (model.User, string, string, error) {
	if err := util.ValidateStruct(req); err != nil {
		return model.User{}, values.BadRequestBody, "Validation failed", err
	}
	if actor.ID == target {
		return model.User{}, values.NotAllowed, "You cannot change your own role", nil
	}

	user, err := api.UpdateUserRoleRepo(ctx, target.String(), req.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, values.NotFound, "User not found", err
		}
		return model.User{}, values.Error, "Failed to update user role", err
	}
	return user, values.Success, "User role updated successfully", nil
}
