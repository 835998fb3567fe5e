package services

import (
	"fmt"

	"github.com/lborres/tanod/core"
)

// Operation ids of the base endpoints.
const (
	OpSignUp         = "signUpWithEmailAndPassword"
	OpSignIn         = "signInWithEmailAndPassword"
	OpSignOut        = "signOut"
	OpGetSession     = "getSession"
	OpUpdateProfile  = "updateProfile"
	OpChangePassword = "changePassword"
	OpDeactivate     = "deactivateAccount"
)

// BaseEndpoints returns framework-agnostic endpoint templates
// for all core account and session endpoints.
//
// Each endpoint is a template; adapters such as the Fiber one provide the
// framework-specific handlers.
func BaseEndpoints() []core.Endpoint {
	return []core.Endpoint{
		{
			Path:   "/sign-up",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID: OpSignUp,
				Description: "Register an account with email and password",
			},
		},
		{
			Path:   "/sign-in",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID: OpSignIn,
				Description: "Sign in with email and password and open a session",
			},
		},
		{
			Path:   "/sign-out",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID: OpSignOut,
				Description: "Revoke the current session",
			},
		},
		{
			Path:      "/session",
			Method:    "GET",
			Protected: true,
			Metadata: core.EndpointMetadata{
				OperationID: OpGetSession,
				Description: "Get the current account and session",
			},
		},
		{
			Path:      "/profile",
			Method:    "PATCH",
			Protected: true,
			Metadata: core.EndpointMetadata{
				OperationID: OpUpdateProfile,
				Description: "Update display name and profile attributes",
			},
		},
		{
			Path:      "/password",
			Method:    "POST",
			Protected: true,
			Metadata: core.EndpointMetadata{
				OperationID: OpChangePassword,
				Description: "Change the password after re-verifying the current one",
			},
		},
		{
			Path:      "/deactivate",
			Method:    "POST",
			Protected: true,
			Metadata: core.EndpointMetadata{
				OperationID: OpDeactivate,
				Description: "Deactivate the current account",
			},
		},
	}
}

// EndpointRegistry holds endpoints in registration order and rejects
// duplicate METHOD:PATH combinations.
type EndpointRegistry struct {
	keys      map[string]struct{}
	endpoints []core.Endpoint
}

// NewEndpointRegistry creates a registry with all base endpoints registered.
func NewEndpointRegistry() *EndpointRegistry {
	reg := &EndpointRegistry{keys: make(map[string]struct{})}

	for _, ep := range BaseEndpoints() {
		// base endpoints are distinct by construction
		_ = reg.Register(ep)
	}

	return reg
}

// Register adds ep. Returns an error if its METHOD:PATH already exists.
func (r *EndpointRegistry) Register(ep core.Endpoint) error {
	key := fmt.Sprintf("%s:%s", ep.Method, ep.Path)

	if _, exists := r.keys[key]; exists {
		return fmt.Errorf("endpoint conflict: %s %s already registered", ep.Method, ep.Path)
	}

	r.keys[key] = struct{}{}
	r.endpoints = append(r.endpoints, ep)
	return nil
}

// Endpoints returns a copy of the registered endpoints in registration order.
func (r *EndpointRegistry) Endpoints() []core.Endpoint {
	return append([]core.Endpoint(nil), r.endpoints...)
}
