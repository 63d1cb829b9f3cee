package rest

import (
	"context"
	"errors"
	"time"

	"github.com/apex/log"
	googleauth "github.com/bwise1/waste_patrol/internal/http/google"
	"github.com/bwise1/waste_patrol/internal/model"
	"github.com/bwise1/waste_patrol/util"
	"github.com/bwise1/waste_patrol/util/values"
	"github.com/golang-jwt/jwt"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type TokenClaims struct {
	UserID string `json:"sub"`
	Role   string `json:"role"`
	Type   string `json:"typ"`
	Exp    int64  `json:"exp"`
}

func (api *API) createToken(user model.User) (string, time.Time, error) {
	expTime, err := time.ParseDuration(api.Config.JwtExpires)
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now()
	expiresAt := now.Add(expTime)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"exp":  expiresAt.Unix(),
		"iat":  now.Unix(),
		"typ":  tokenTypeAccess,
	})

	tokenString, err := token.SignedString([]byte(api.Config.JwtSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

func (api *API) createRefreshToken(id string) (string, time.Time, error) {
	expTime, err := time.ParseDuration(api.Config.RefreshExpiry)
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now()
	expiresAt := now.Add(expTime)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": id,
		"exp": expiresAt.Unix(),
		"iat": now.Unix(),
		"jti": util.GenerateUUID().String(),
		"typ": tokenTypeRefresh,
	})

	tokenString, err := token.SignedString([]byte(api.Config.RefreshSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// issueTokens signs an access/refresh pair and stores the refresh token.
func (api *API) issueTokens(ctx context.Context, user model.User) (model.LoginResponse, error) {
	token, _, err := api.createToken(user)
	if err != nil {
		return model.LoginResponse{}, err
	}
	refresh, expiresAt, err := api.createRefreshToken(user.ID.String())
	if err != nil {
		return model.LoginResponse{}, err
	}
	if err := api.StoreRefreshToken(ctx, user.ID.String(), refresh, expiresAt); err != nil {
		return model.LoginResponse{}, err
	}
	return model.LoginResponse{User: &user, Token: token, RefreshToken: refresh}, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (api *API) RegisterUser(ctx context.Context, req model.RegisterRequest) (model.LoginResponse, string, string, error) {
	req.Email = util.NormalizeEmail(req.Email)
	if err := util.ValidateStruct(req); err != nil {
		return model.LoginResponse{}, values.BadRequestBody, "Validation failed", err
	}

	exists, err := api.EmailExists(ctx, req.Email)
	if err != nil {
		return model.LoginResponse{}, values.Error, "Error checking email", err
	}
	if exists {
		return model.LoginResponse{}, values.Conflict, "User already exists with this email", nil
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return model.LoginResponse{}, values.Error, values.SystemErr, err
	}

	user, err := api.CreateUserRepo(ctx, model.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: &hash,
		Role:         values.RoleCitizen,
		Phone:        req.Phone,
		Address:      req.Address,
		AuthProvider: values.AuthProviderEmail,
		IsActive:     true,
	})
	if err != nil {
		return model.LoginResponse{}, values.Error, "Error creating new user", err
	}

	resp, err := api.issueTokens(ctx, user)
	if err != nil {
		return model.LoginResponse{}, values.Error, values.SystemErr, err
	}
	return resp, values.Created, "User registered successfully", nil
}

func (api *API) LoginUser(ctx context.Context, req model.LoginRequest) (model.LoginResponse, string, string, error) {
	req.Email = util.NormalizeEmail(req.Email)
	if err := util.ValidateStruct(req); err != nil {
		return model.LoginResponse{}, values.BadRequestBody, "Validation failed", err
	}

	user, err := api.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.LoginResponse{}, values.NotAuthorised, "Invalid credentials", nil
		}
		return model.LoginResponse{}, values.Error, values.SystemErr, err
	}

	if user.PasswordHash == nil {
		return model.LoginResponse{}, values.NotAuthorised, "Invalid credentials", nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return model.LoginResponse{}, values.NotAuthorised, "Invalid credentials", nil
	}
	if !user.IsActive {
		return model.LoginResponse{}, values.NotAllowed, "Account is deactivated", nil
	}

	resp, err := api.issueTokens(ctx, user)
	if err != nil {
		return model.LoginResponse{}, values.Error, values.SystemErr, err
	}
	return resp, values.Success, "Login successful", nil
}

// GoogleLoginUser signs in an existing account or creates a citizen for a new Google user.
func (api *API) GoogleLoginUser(ctx context.Context, req model.GoogleLoginRequest) (model.LoginResponse, string, string, error) {
	if err := util.ValidateStruct(req); err != nil {
		return model.LoginResponse{}, values.BadRequestBody, "Validation failed", err
	}
	if api.Google == nil {
		return model.LoginResponse{}, values.Unavailable, "Google sign-in is not configured", nil
	}

	profile, err := api.Google.Profile(ctx, req.AccessToken)
	if err != nil {
		if errors.Is(err, googleauth.ErrUnverifiedEmail) {
			return model.LoginResponse{}, values.NotAllowed, "Google account email is not verified", err
		}
		return model.LoginResponse{}, values.NotAuthorised, "Failed to verify Google account", err
	}

	email := util.NormalizeEmail(profile.Email)
	user, err := api.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		user, err = api.CreateUserRepo(ctx, model.User{
			Name:         profile.Name,
			Email:        email,
			Role:         values.RoleCitizen,
			AuthProvider: values.AuthProviderGoogle,
			IsActive:     true,
		})
		if err != nil {
			return model.LoginResponse{}, values.Error, "Error creating new user", err
		}
		log.WithField("user_id", user.ID).Info("created user from google sign-in")
	case err != nil:
		return model.LoginResponse{}, values.Error, values.SystemErr, err
	}

	if !user.IsActive {
		return model.LoginResponse{}, values.NotAllowed, "Account is deactivated", nil
	}

	resp, err := api.issueTokens(ctx, user)
	if err != nil {
		return model.LoginResponse{}, values.Error, values.SystemErr, err
	}
	return resp, values.Success, "Login successful", nil
}

// RefreshTokens rotates a refresh token: the presented one is revoked and a new pair issued.
func (api *API) RefreshTokens(ctx context.Context, req model.RefreshTokenRequest) (model.LoginResponse, string, string, error) {
	if err := util.ValidateStruct(req); err != nil {
		return model.LoginResponse{}, values.BadRequestBody, "Validation failed", err
	}

	claims, err := api.verifyToken(req.RefreshToken, true)
	if err != nil {
		if errors.Is(err, errTokenExpired) {
			return model.LoginResponse{}, values.TokenExpired, "Refresh token expired", err
		}
		return model.LoginResponse{}, values.NotAuthorised, "Invalid refresh token", err
	}

	if err := api.ValidateRefreshToken(ctx, req.RefreshToken); err != nil {
		return model.LoginResponse{}, values.NotAuthorised, "Invalid refresh token", err
	}

	user, err := api.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return model.LoginResponse{}, values.NotAuthorised, "Invalid refresh token", err
	}
	if !user.IsActive {
		return model.LoginResponse{}, values.NotAllowed, "Account is deactivated", nil
	}

	if err := api.RevokeRefreshToken(ctx, req.RefreshToken); err != nil {
		return model.LoginResponse{}, values.Error, values.SystemErr, err
	}

	resp, err := api.issueTokens(ctx, user)
	if err != nil {
		return model.LoginResponse{}, values.Error, values.SystemErr, err
	}
	return resp, values.Success, "Token refreshed", nil
}

func (api *API) LogoutUser(ctx context.Context, req model.RefreshTokenRequest) (string, string, error) {
	if err := util.ValidateStruct(req); err != nil {
		return values.BadRequestBody, "Validation failed", err
	}
	if err := api.RevokeRefreshToken(ctx, req.RefreshToken); err != nil {
		return values.Error, values.SystemErr, err
	}
	return values.Success, "Logged out successfully", nil
}
