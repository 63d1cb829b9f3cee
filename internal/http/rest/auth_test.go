package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	googleauth "github.com/bwise1/waste_patrol/internal/http/google"
	"github.com/bwise1/waste_patrol/internal/model"
	"github.com/bwise1/waste_patrol/util"
	"github.com/bwise1/waste_patrol/util/values"
	"github.com/golang-jwt/jwt"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeGoogle struct {
	profile *googleauth.Profile
	err     error
}

func (f fakeGoogle) Profile(context.Context, string) (*googleauth.Profile, error) {
	return f.profile, f.err
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	created := testUser(values.RoleCitizen)
	created.Email = "rahim@example.com"

	env.mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("rahim@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	env.mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(anyArgs(8)...).
		WillReturnRows(userRows(created))
	env.mock.ExpectExec(`INSERT INTO auth_tokens`).
		WithArgs(created.ID.String(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := env.jsonRequest(t, http.MethodPost, "/api/auth/register", model.RegisterRequest{
		Name:     "Rahim Uddin",
		Email:    "  Rahim@Example.com ",
		Password: "secret123",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp model.LoginResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &resp))
	assert.NotEmpty(t, resp.Token)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, values.RoleCitizen, resp.User.Role)

	claims, err := env.api.verifyToken(resp.Token, false)
	require.NoError(t, err)
	assert.Equal(t, created.ID.String(), claims.UserID)
	assert.Equal(t, values.RoleCitizen, claims.Role)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("taken@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	rec := env.jsonRequest(t, http.MethodPost, "/api/auth/register", model.RegisterRequest{
		Name: "Someone", Email: "taken@example.com", Password: "secret123",
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.jsonRequest(t, http.MethodPost, "/api/auth/register", model.RegisterRequest{
		Name: "A", Email: "not-an-email", Password: "123",
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	errs := decode(t, rec).Errors
	assert.Equal(t, "must be a valid email address", errs["email"])
	assert.Contains(t, errs, "name")
	assert.Contains(t, errs, "password")
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := testUser(values.RoleAuthority)
	user.PasswordHash = util.Ptr(string(hash))

	env.mock.ExpectQuery(`get-user-by-email`).WithArgs(user.Email).WillReturnRows(userRows(user))
	rec := env.jsonRequest(t, http.MethodPost, "/api/auth/login", model.LoginRequest{Email: user.Email, Password: "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	env.mock.ExpectQuery(`get-user-by-email`).WithArgs(user.Email).WillReturnRows(userRows(user))
	env.mock.ExpectExec(`INSERT INTO auth_tokens`).WithArgs(anyArgs(3)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	rec = env.jsonRequest(t, http.MethodPost, "/api/auth/login", model.LoginRequest{Email: user.Email, Password: "secret123"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env.mock.ExpectQuery(`get-user-by-email`).WithArgs("ghost@example.com").WillReturnError(pgx.ErrNoRows)
	rec = env.jsonRequest(t, http.MethodPost, "/api/auth/login", model.LoginRequest{Email: "ghost@example.com", Password: "secret123"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestLoginDeactivatedAccount(t *testing.T) {
	env := newTestEnv(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := testUser(values.RoleCitizen)
	user.PasswordHash = util.Ptr(string(hash))
	user.IsActive = false

	env.mock.ExpectQuery(`get-user-by-email`).WithArgs(user.Email).WillReturnRows(userRows(user))
	rec := env.jsonRequest(t, http.MethodPost, "/api/auth/login", model.LoginRequest{Email: user.Email, Password: "secret123"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestGoogleLoginCreatesCitizen(t *testing.T) {
	env := newTestEnv(t)
	env.api.Google = fakeGoogle{profile: &googleauth.Profile{
		ID: "g-1", Email: "Karim@Gmail.com", Name: "Karim", VerifiedEmail: true,
	}}
	created := testUser(values.RoleCitizen)
	created.Email = "karim@gmail.com"
	created.AuthProvider = values.AuthProviderGoogle

	env.mock.ExpectQuery(`get-user-by-email`).WithArgs("karim@gmail.com").WillReturnError(pgx.ErrNoRows)
	env.mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("Karim", "karim@gmail.com", pgxmock.AnyArg(), values.RoleCitizen, pgxmock.AnyArg(), pgxmock.AnyArg(), values.AuthProviderGoogle, true).
		WillReturnRows(userRows(created))
	env.mock.ExpectExec(`INSERT INTO auth_tokens`).WithArgs(anyArgs(3)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := env.jsonRequest(t, http.MethodPost, "/api/auth/google", model.GoogleLoginRequest{AccessToken: "ya29.token"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestGoogleLoginUnverified(t *testing.T) {
	env := newTestEnv(t)
	env.api.Google = fakeGoogle{err: googleauth.ErrUnverifiedEmail}

	rec := env.jsonRequest(t, http.MethodPost, "/api/auth/google", model.GoogleLoginRequest{AccessToken: "ya29.token"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRefreshTokenRotation(t *testing.T) {
	env := newTestEnv(t)
	user := testUser(values.RoleCitizen)
	refresh, _, err := env.api.createRefreshToken(user.ID.String())
	require.NoError(t, err)

	env.mock.ExpectQuery(`FROM auth_tokens`).WithArgs(refresh).WillReturnRows(pgxmock.NewRows([]string{"one"}).AddRow(1))
	env.expectUser(user)
	env.mock.ExpectExec(`SET is_revoked = TRUE`).WithArgs(refresh).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	env.mock.ExpectExec(`INSERT INTO auth_tokens`).WithArgs(anyArgs(3)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := env.jsonRequest(t, http.MethodPost, "/api/auth/refresh", model.RefreshTokenRequest{RefreshToken: refresh}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp model.LoginResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &resp))
	assert.NotEqual(t, refresh, resp.RefreshToken)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	env := newTestEnv(t)
	access := env.token(t, testUser(values.RoleCitizen))

	rec := env.jsonRequest(t, http.MethodPost, "/api/auth/refresh", model.RefreshTokenRequest{RefreshToken: access}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRequireLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/auth/profile", nil, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": testUser(values.RoleCitizen).ID.String(),
		"exp": time.Now().Add(-time.Minute).Unix(),
		"typ": tokenTypeAccess,
	})
	signed, err := expired.SignedString([]byte(env.api.Config.JwtSecret))
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, "/api/auth/profile", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec = env.serve(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, values.TokenExpired, decode(t, rec).Status)

	inactive := testUser(values.RoleCitizen)
	inactive.IsActive = false
	env.expectUser(inactive)
	rec = env.request(t, http.MethodGet, "/api/auth/profile", nil, "", &inactive)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	active := testUser(values.RoleCitizen)
	env.expectUser(active)
	rec = env.request(t, http.MethodGet, "/api/auth/profile", nil, "", &active)
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.User
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &got))
	assert.Equal(t, active.ID, got.ID)

	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRequireLoginUserLookupFailure(t *testing.T) {
	env := newTestEnv(t)
	user := testUser(values.RoleCitizen)

	env.mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(user.ID.String()).
		WillReturnError(pgx.ErrNoRows)
	rec := env.request(t, http.MethodGet, "/api/auth/profile", nil, "", &user)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, values.NotAuthorised, decode(t, rec).Status)

	env.mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(user.ID.String()).
		WillReturnError(errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"))
	rec = env.request(t, http.MethodGet, "/api/auth/profile", nil, "", &user)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, values.Error, decode(t, rec).Status)

	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectExec(`SET is_revoked = TRUE\s+WHERE token_value = \$1`).
		WithArgs("refresh-token-value").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	rec := env.jsonRequest(t, http.MethodPost, "/api/auth/logout", model.RefreshTokenRequest{RefreshToken: "refresh-token-value"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Logged out successfully", decode(t, rec).Message)

	rec = env.jsonRequest(t, http.MethodPost, "/api/auth/logout", model.RefreshTokenRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestToggleUserStatus(t *testing.T) {
	env := newTestEnv(t)
	admin := testUser(values.RoleAdmin)

	env.expectUser(admin)
	rec := env.request(t, http.MethodPut, "/api/users/"+admin.ID.String()+"/toggle-status", nil, "", &admin)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	target := testUser(values.RoleAuthority)
	deactivated := target
	deactivated.IsActive = false
	env.expectUser(admin)
	env.mock.ExpectQuery(`SET is_active = NOT is_active`).WithArgs(target.ID.String()).WillReturnRows(userRows(deactivated))
	env.mock.ExpectExec(`UPDATE auth_tokens`).WithArgs(target.ID.String()).WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	rec = env.request(t, http.MethodPut, "/api/users/"+target.ID.String()+"/toggle-status", nil, "", &admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "User deactivated successfully", decode(t, rec).Message)

	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestUpdateUserRoleRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	authority := testUser(values.RoleAuthority)
	env.expectUser(authority)

	rec := env.jsonRequest(t, http.MethodPut, "/api/users/"+testUser(values.RoleCitizen).ID.String()+"/role",
		model.UpdateRoleRequest{Role: values.RoleAdmin}, &authority)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}
