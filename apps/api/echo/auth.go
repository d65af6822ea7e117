package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/AlriyanKhan/Ai-attendance/core"
	"github.com/AlriyanKhan/Ai-attendance/core/auth"
	"github.com/AlriyanKhan/Ai-attendance/core/user"
)

var (
	NowFunc = time.Now // mockable

	tokenContextKey   = "userToken"
	profileContextKey = "profile"
	tokenAudience     = "attendance"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	IssuedAtNano int64  `json:"iatn,omitempty"`
	Email        string `json:"email,omitempty"`
	Name         string `json:"name,omitempty"`
	IsAdmin      bool   `json:"is_admin,omitempty"`
}

// issuedAt is precise enough to tell a token issued right after a sign out from one issued before it.
func (c Claims) issuedAt() time.Time {
	if c.IssuedAtNano != 0 {
		return time.Unix(0, c.IssuedAtNano)
	}
	return time.Unix(c.IssuedAt, 0)
}

func (c Claims) profile() user.Profile {
	role := user.RoleStudent
	if c.IsAdmin {
		role = user.RoleAdmin
	}
	return user.Profile{
		ID:    c.Subject,
		Name:  c.Name,
		Email: c.Email,
		Role:  role,
	}
}

// newJWTConfig returns the JWT auth middleware config.
func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	}
}

func GetProfileClaims(conf *core.Config, p user.Profile, origIat ...int64) *Claims {
	now := NowFunc()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   p.ID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		IssuedAtNano: now.UnixNano(),
		Email:        p.Email,
		Name:         p.Name,
		IsAdmin:      p.IsAdmin(),
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// newSession is the client side view of a token.
func newSession(claims *Claims, token string) auth.Session {
	return auth.Session{
		UserID:      claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
		Token:       token,
		ExpiresAt:   time.Unix(claims.ExpiresAt, 0).UTC(),
	}
}

func issueSession(conf *core.Config, p user.Profile, origIat ...int64) (SessionResponse, error) {
	claims := GetProfileClaims(conf, p, origIat...)
	token, err := GenerateToken(conf, claims)
	if err != nil {
		return SessionResponse{}, errors.Wrap(err, "generating token")
	}
	return SessionResponse{Token: token, Session: newSession(claims, token)}, nil
}

func getContextToken(ctx echo.Context) (*jwt.Token, bool) {
	token, ok := ctx.Get(tokenContextKey).(*jwt.Token)
	return token, ok
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := getContextToken(ctx); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextProfile loads the profile of the authenticated user once per request.
// A token whose profile was never written (the write is best effort on sign up) falls back to its claims.
func getContextProfile(ctx echo.Context, svc user.Service, clms ...Claims) (user.Profile, error) {
	if p, ok := ctx.Get(profileContextKey).(user.Profile); ok {
		return p, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return user.Profile{}, errors.Wrap(err, "getting context claims")
		}
	}

	p, err := svc.Profile(ctx.Request().Context(), claims.Subject)
	switch {
	case errors.Cause(err) == user.ErrNotFound:
		p = claims.profile()
	case err != nil:
		return user.Profile{}, core.NewKindError(core.KindRecord, "echoapi.getContextProfile",
			errors.Wrap(err, "finding profile by ID"))
	}
	ctx.Set(profileContextKey, p)
	return p, nil
}

func refreshToken(ctx echo.Context, conf *core.Config, svc user.Service) (SessionResponse, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return SessionResponse{}, errors.Wrap(err, "getting context claims")
	}

	p, err := getContextProfile(ctx, svc, claims)
	if err != nil {
		return SessionResponse{}, errors.Wrap(err, "getting context profile")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(conf.Server.JWTRefreshExpirationDelta)
	if NowFunc().After(expTime) {
		return SessionResponse{}, errRefreshExpired
	}

	res, err := issueSession(conf, p, claims.OrigIssuedAt)
	return res, errors.Wrap(err, "issuing session")
}
