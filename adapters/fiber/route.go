package fiber

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/lborres/tanod/core"
	"github.com/lborres/tanod/services"
)

const (
	defaultBasePath = "/api/auth"

	// TokenCookie carries the session token for browser clients.
	TokenCookie = "auth_token"
)

// AuthProvider is the account and session surface the handlers call.
// *tanod.Tanod implements it.
type AuthProvider interface {
	Register(ctx context.Context, input core.RegisterInput) (string, error)
	Login(ctx context.Context, email, secret string) (*core.LoginResult, error)
	Logout(ctx context.Context, token string) error
	ValidateSession(ctx context.Context, token string) (*core.SessionData, error)
	UpdateProfile(ctx context.Context, accountID string, fields map[string]string) (*core.Account, error)
	ChangePassword(ctx context.Context, accountID, current, next string) error
	Deactivate(ctx context.Context, accountID, confirmingSecret string) error
	Lookup(ctx context.Context, identifierOrID string) (*core.Account, error)
}

type Options struct {
	BasePath string
	// CookieMaxAge bounds the auth_token cookie. Zero uses the session expiry.
	CookieMaxAge time.Duration
	// SecureCookie sets the Secure attribute on the auth_token cookie.
	SecureCookie bool
	Logger       *zerolog.Logger
}

type Adapter struct {
	app  *fiber.App
	auth AuthProvider
	opts Options
	log  zerolog.Logger
}

func New(app *fiber.App, auth AuthProvider, opts Options) *Adapter {
	if opts.BasePath == "" {
		opts.BasePath = defaultBasePath
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Adapter{app: app, auth: auth, opts: opts, log: log}
}

// RegisterRoutes mounts every base endpoint under the base path, guarding the
// protected ones with the Protected middleware.
func (a *Adapter) RegisterRoutes() error {
	handlers := map[string]fiber.Handler{
		services.OpSignUp:         a.signUp,
		services.OpSignIn:         a.signIn,
		services.OpSignOut:        a.signOut,
		services.OpGetSession:     a.getSession,
		services.OpUpdateProfile:  a.updateProfile,
		services.OpChangePassword: a.changePassword,
		services.OpDeactivate:     a.deactivate,
	}

	api := a.app.Group(a.opts.BasePath)

	for _, ep := range services.NewEndpointRegistry().Endpoints() {
		h, ok := handlers[ep.Metadata.OperationID]
		if !ok {
			return fmt.Errorf("no handler for operation %q", ep.Metadata.OperationID)
		}
		if ep.Protected {
			h = a.guard(h)
		}
		if err := mount(api, ep, h); err != nil {
			return err
		}
	}

	return nil
}

func mount(api fiber.Router, ep core.Endpoint, h fiber.Handler) error {
	switch ep.Method {
	case http.MethodGet:
		api.Get(ep.Path, h)
	case http.MethodPost:
		api.Post(ep.Path, h)
	case http.MethodPatch:
		api.Patch(ep.Path, h)
	case http.MethodPut:
		api.Put(ep.Path, h)
	case http.MethodDelete:
		api.Delete(ep.Path, h)
	default:
		return fmt.Errorf("unsupported method %s for %s", ep.Method, ep.Path)
	}
	return nil
}
