package fiber

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/tanod/core"
)

var (
	errMissingToken = errors.New("missing token")
	errInvalidBody  = errors.New("invalid request body")
)

type changePasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type deactivateInput struct {
	Password string `json:"password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (a *Adapter) signUp(c fiber.Ctx) error {
	var input core.RegisterInput
	if err := c.Bind().Body(&input); err != nil {
		return a.writeError(c, http.StatusBadRequest, errInvalidBody)
	}

	id, err := a.auth.Register(c.Context(), input)
	if err != nil {
		return a.handleError(c, err)
	}

	acc, err := a.auth.Lookup(c.Context(), id)
	if err != nil {
		return a.handleError(c, err)
	}

	return c.Status(http.StatusCreated).JSON(acc)
}

func (a *Adapter) signIn(c fiber.Ctx) error {
	var input core.LoginInput
	if err := c.Bind().Body(&input); err != nil {
		return a.writeError(c, http.StatusBadRequest, errInvalidBody)
	}

	result, err := a.auth.Login(c.Context(), input.Email, input.Secret)
	if err != nil {
		return a.handleError(c, err)
	}

	a.setTokenCookie(c, result.Token, result.Session.ExpiresAt)
	return c.Status(http.StatusOK).JSON(result)
}

func (a *Adapter) signOut(c fiber.Ctx) error {
	token := extractToken(c)
	if token == "" {
		return a.writeError(c, http.StatusUnauthorized, errMissingToken)
	}

	if err := a.auth.Logout(c.Context(), token); err != nil {
		return a.handleError(c, err)
	}

	c.ClearCookie(TokenCookie)
	return c.Status(http.StatusOK).JSON(messageResponse{Message: "signed out successfully"})
}

func (a *Adapter) getSession(c fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(core.SessionData{
		Account: AccountFrom(c),
		Session: SessionFrom(c),
	})
}

func (a *Adapter) updateProfile(c fiber.Ctx) error {
	body := map[string]any{}
	if err := c.Bind().Body(&body); err != nil {
		return a.writeError(c, http.StatusBadRequest, errInvalidBody)
	}

	// unrecognised keys and non-string values are ignored
	fields := make(map[string]string, len(body))
	for k, v := range body {
		if s, ok := v.(string); ok {
			fields[k] = s
		}
	}

	acc, err := a.auth.UpdateProfile(c.Context(), AccountFrom(c).ID, fields)
	if err != nil {
		return a.handleError(c, err)
	}

	return c.Status(http.StatusOK).JSON(acc)
}

func (a *Adapter) changePassword(c fiber.Ctx) error {
	var input changePasswordInput
	if err := c.Bind().Body(&input); err != nil {
		return a.writeError(c, http.StatusBadRequest, errInvalidBody)
	}

	err := a.auth.ChangePassword(c.Context(), AccountFrom(c).ID, input.CurrentPassword, input.NewPassword)
	if err != nil {
		return a.handleError(c, err)
	}

	return c.Status(http.StatusOK).JSON(messageResponse{Message: "password changed"})
}

func (a *Adapter) deactivate(c fiber.Ctx) error {
	var input deactivateInput
	if err := c.Bind().Body(&input); err != nil {
		return a.writeError(c, http.StatusBadRequest, errInvalidBody)
	}

	if err := a.auth.Deactivate(c.Context(), AccountFrom(c).ID, input.Password); err != nil {
		return a.handleError(c, err)
	}

	c.ClearCookie(TokenCookie)
	return c.Status(http.StatusOK).JSON(messageResponse{Message: "account deactivated"})
}

func (a *Adapter) setTokenCookie(c fiber.Ctx, token string, expiresAt time.Time) {
	if a.opts.CookieMaxAge > 0 {
		if limit := time.Now().Add(a.opts.CookieMaxAge); limit.Before(expiresAt) {
			expiresAt = limit
		}
	}

	c.Cookie(&fiber.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		Secure:   a.opts.SecureCookie,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// handleError maps service errors to HTTP responses. Server-side failures
// are logged and answered without their details.
func (a *Adapter) handleError(c fiber.Ctx, err error) error {
	status := mapErrorToStatus(err)

	switch status {
	case http.StatusServiceUnavailable:
		a.log.Error().Err(err).Str("path", c.Path()).Msg("storage unavailable")
		return a.writeError(c, status, core.ErrStorageUnavailable)
	case http.StatusInternalServerError:
		a.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return a.writeError(c, status, errors.New("internal server error"))
	}

	return a.writeError(c, status, err)
}

func (a *Adapter) writeError(c fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(core.ErrorResponse{
		Error: err.Error(),
		Code:  status,
	})
}

// mapErrorToStatus maps tanod error types to HTTP status codes
func mapErrorToStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch {
	case errors.Is(err, core.ErrStorageUnavailable):
		return http.StatusServiceUnavailable

	// session rejections wrap their reason, so this comes before deactivation
	case errors.Is(err, core.ErrUnauthenticated),
		errors.Is(err, core.ErrInvalidCredentials),
		errors.Is(err, core.ErrWrongSecret),
		errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, core.ErrSessionExpired),
		errors.Is(err, core.ErrSessionRevoked),
		errors.Is(err, errMissingToken):
		return http.StatusUnauthorized

	case errors.Is(err, core.ErrAccountDeactivated):
		return http.StatusForbidden

	case errors.Is(err, core.ErrInvalidEmail),
		errors.Is(err, core.ErrWeakSecret),
		errors.Is(err, core.ErrSecretTooLong),
		errors.Is(err, core.ErrInvalidProfile),
		errors.Is(err, core.ErrInvalidRole),
		errors.Is(err, core.ErrInvalidTTL),
		errors.Is(err, errInvalidBody):
		return http.StatusBadRequest

	case errors.Is(err, core.ErrRecordNotFound):
		return http.StatusNotFound

	case errors.Is(err, core.ErrEmailTaken),
		errors.Is(err, core.ErrDuplicateKey):
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}
