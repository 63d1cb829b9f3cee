package googleauth

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

var ErrUnverifiedEmail = errors.New("google account email is not verified")

// Profile is the subset of the Google userinfo document used to sign users in.
type Profile struct {
	ID            string
	Email         string
	Name          string
	Picture       string
	VerifiedEmail bool
}

// Client resolves Google access tokens into user profiles.
type Client struct {
	// Endpoint overrides the API base path, used in tests.
	Endpoint string
}

func NewClient() *Client {
	return &Client{}
}

// Profile fetches the userinfo document for an access token issued to the web client.
func (c *Client) Profile(ctx context.Context, accessToken string) (*Profile, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, errors.New("empty access token")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	opts := []option.ClientOption{option.WithTokenSource(ts)}
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint))
	}

	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create oauth2 service")
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, errors.Wrap(err, "get google userinfo")
	}
	if info.Email == "" {
		return nil, errors.New("google profile has no email")
	}

	verified := info.VerifiedEmail != nil && *info.VerifiedEmail
	if !verified {
		return nil, ErrUnverifiedEmail
	}

	name := info.Name
	if name == "" {
		name = strings.TrimSpace(info.GivenName + " " + info.FamilyName)
	}
	if name == "" {
		name = strings.Split(info.Email, "@")[0]
	}

	return &Profile{
		ID:            info.Id,
		Email:         info.Email,
		Name:          name,
		Picture:       info.Picture,
		VerifiedEmail: verified,
	}, nil
}
