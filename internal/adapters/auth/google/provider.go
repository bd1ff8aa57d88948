package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tailtribe/internal/domain/users"
	"tailtribe/internal/platform/httpclient"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

const userInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

var ErrEmailNotVerified = errors.New("google email not verified")

// Provider implementa users.GoogleProvider con el flujo authorization code.
type Provider struct {
	cfg         *oauth2.Config
	http        *httpclient.Client
	userInfoURL string
}

func New(clientID, clientSecret, redirectURL string) *Provider {
	return &Provider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     googleoauth.Endpoint,
		},
		http:        httpclient.New(httpclient.DefaultTimeout),
		userInfoURL: userInfoURL,
	}
}

func (p *Provider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type userInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

func (p *Provider) Exchange(ctx context.Context, code string) (users.GoogleIdentity, error) {
	// oauth2 usa nuestro http.Client para el intercambio del code.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.http.HTTP)

	tok, err := p.cfg.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return users.GoogleIdentity{}, fmt.Errorf("google exchange: %w", err)
	}

	var info userInfo
	if err := p.http.GetJSON(ctx, p.userInfoURL, tok.AccessToken, &info); err != nil {
		return users.GoogleIdentity{}, fmt.Errorf("google userinfo: %w", err)
	}
	if !info.EmailVerified {
		return users.GoogleIdentity{}, ErrEmailNotVerified
	}

	return users.GoogleIdentity{
		Subject: info.Sub,
		Email:   info.Email,
		Name:    info.Name,
	}, nil
}
