// Package identitysvc implements the identity providers accounts are rented from.
package identitysvc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/valyala/fastjson"

	"github.com/AlriyanKhan/Ai-attendance/core"
	"github.com/AlriyanKhan/Ai-attendance/core/user"
)

// Providers
const (
	ProviderFirebase = "firebase"
	ProviderLocal    = "local"
)

const requestTimeout = 10 * time.Second

// firebaseCodes maps Identity Toolkit error messages to provider codes.
var firebaseCodes = map[string]string{
	"EMAIL_EXISTS":                user.CodeEmailInUse,
	"INVALID_EMAIL":               user.CodeInvalidEmail,
	"MISSING_EMAIL":               user.CodeInvalidEmail,
	"WEAK_PASSWORD":               user.CodeWeakPassword,
	"MISSING_PASSWORD":            user.CodeWeakPassword,
	"EMAIL_NOT_FOUND":             user.CodeInvalidCredentials,
	"INVALID_PASSWORD":            user.CodeInvalidCredentials,
	"INVALID_LOGIN_CREDENTIALS":   user.CodeInvalidCredentials,
	"USER_DISABLED":               user.CodeUserDisabled,
	"TOO_MANY_ATTEMPTS_TRY_LATER": user.CodeNetworkFailure,
}

type firebaseProvider struct {
	client   *rest.Client
	endpoint string
	apiKey   string
	parser   fastjson.ParserPool
}

var _ user.IdentityProvider = (*firebaseProvider)(nil)

// NewFirebaseProvider talks to the Identity Toolkit REST API at conf.Identity.Endpoint.
func NewFirebaseProvider(conf *core.Config) user.IdentityProvider {
	return &firebaseProvider{
		client:   &rest.Client{HTTPClient: &http.Client{Timeout: requestTimeout}},
		endpoint: conf.Identity.Endpoint,
		apiKey:   conf.Identity.APIKey,
	}
}

func (p *firebaseProvider) call(ctx context.Context, method string, payload interface{}) (user.Account, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return user.Account{}, errors.Wrap(err, "encoding request")
	}

	res, err := p.client.SendWithContext(ctx, rest.Request{
		Method:      rest.Post,
		BaseURL:     p.endpoint + "/accounts:" + method,
		Headers:     map[string]string{"Content-Type": "application/json"},
		QueryParams: map[string]string{"key": p.apiKey},
		Body:        body,
	})
	if err != nil {
		return user.Account{}, user.NewProviderError(user.CodeNetworkFailure, err)
	}

	parser := p.parser.Get()
	defer p.parser.Put(parser)

	v, err := parser.Parse(res.Body)
	if err != nil {
		return user.Account{}, user.NewProviderError(user.CodeUnknown, errors.Wrapf(err, "parsing %s response (%d)", method, res.StatusCode))
	}
	if res.StatusCode >= http.StatusBadRequest {
		msg := string(v.GetStringBytes("error", "message"))
		return user.Account{}, user.NewProviderError(firebaseCode(msg), errors.New(msg))
	}
	return user.Account{
		UID:         string(v.GetStringBytes("localId")),
		Email:       string(v.GetStringBytes("email")),
		DisplayName: string(v.GetStringBytes("displayName")),
		IDToken:     string(v.GetStringBytes("idToken")),
	}, nil
}

// firebaseCode reads codes like "WEAK_PASSWORD : Password should be at least 6 characters".
func firebaseCode(msg string) string {
	code := strings.TrimSpace(strings.SplitN(msg, ":", 2)[0])
	if c, ok := firebaseCodes[code]; ok {
		return c
	}
	return user.CodeUnknown
}

func (p *firebaseProvider) SignUp(ctx context.Context, email, password string) (user.Account, error) {
	return p.call(ctx, "signUp", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
}

func (p *firebaseProvider) SignIn(ctx context.Context, email, password string) (user.Account, error) {
	return p.call(ctx, "signInWithPassword", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
}

func (p *firebaseProvider) UpdateDisplayName(ctx context.Context, acc user.Account, name string) error {
	_, err := p.call(ctx, "update", map[string]interface{}{
		"idToken":           acc.IDToken,
		"displayName":       name,
		"returnSecureToken": false,
	})
	return err
}
