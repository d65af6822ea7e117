package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/AlriyanKhan/Ai-attendance/core"
	"github.com/AlriyanKhan/Ai-attendance/core/auth"
	"github.com/AlriyanKhan/Ai-attendance/core/user"
)

type userApi struct {
	conf     *core.Config
	svc      user.Service
	validate *validator.Validate
}

func registerUserAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	conf *core.Config,
	svc user.Service,
	validate *validator.Validate,
) {
	api := userApi{
		conf:     conf,
		svc:      svc,
		validate: validate,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/register", api.register)
	ag.POST("/login", api.login)

	// authed endpoints
	ag.POST("/logout", api.logout, jwt)
	ag.GET("/session", api.session, jwt)
	ag.POST("/token-refresh", api.refreshToken, jwt)
	ag.GET("/roles", api.queryRoles, jwt, adminMiddleware(svc))
}

// Handlers

func (api *userApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}

	p, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		if core.IsKind(err, core.KindAuth) {
			return authHTTPError(err, user.SignUpMessage(err))
		}
		return errors.Wrap(err, "registering user")
	}

	res, err := issueSession(api.conf, p)
	if err != nil {
		return errors.Wrap(err, "issuing session")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *userApi) login(ctx echo.Context) error {
	var data user.Credentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}

	p, err := api.svc.SignIn(ctx.Request().Context(), data)
	if err != nil {
		if core.IsKind(err, core.KindAuth) {
			return authHTTPError(err, user.SignInMessage(err))
		}
		return errors.Wrap(err, "signing in")
	}

	res, err := issueSession(api.conf, p)
	if err != nil {
		return errors.Wrap(err, "issuing session")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *userApi) logout(ctx echo.Context) error {
	p, err := getContextProfile(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context profile")
	}
	if err := api.svc.SignOut(ctx.Request().Context(), p); err != nil {
		// the client keeps its session and may retry
		return &echo.HTTPError{Code: http.StatusBadGateway, Message: msgSignOutFailed, Internal: err}
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) session(ctx echo.Context) error {
	token, ok := getContextToken(ctx)
	if !ok {
		return errUnauthorized
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	return ctx.JSON(http.StatusOK, newSession(&claims, token.Raw))
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	res, err := refreshToken(ctx, api.conf, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

type SessionResponse struct {
	Token   string       `json:"token"`
	Session auth.Session `json:"session"`
}
