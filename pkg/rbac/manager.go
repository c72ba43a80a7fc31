package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/styrainc/styra-run-sdk-go/pkg/api"
)

// Binding associates a user with the roles granted to them.
type Binding struct {
	User  string   `json:"user"`
	Roles []string `json:"roles"`
}

// Manager performs role-binding management against one environment.
type Manager struct {
	client *api.Client
	logger *slog.Logger
}

// New creates a Manager over the given client. If logger is nil,
// slog.Default() is used.
func New(client *api.Client, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{client: client, logger: logger}
}

// GetRoles lists the roles defined by the environment's policy.
func (m *Manager) GetRoles(ctx context.Context) ([]string, error) {
	resp, err := m.client.Do(ctx, http.MethodGet, "/roles", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get roles: %w", err)
	}
	var envelope struct {
		Result []string `json:"result"`
	}
	if err := json.Unmarshal(resp, &envelope); err != nil {
		return nil, fmt.Errorf("get roles: decoding response: %w", err)
	}
	return envelope.Result, nil
}

// ListUserBindings returns every binding in the environment, sorted by user
// for stable iteration.
func (m *Manager) ListUserBindings(ctx context.Context) ([]Binding, error) {
	resp, err := m.client.Do(ctx, http.MethodGet, "/user_bindings", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list user bindings: %w", err)
	}
	var envelope struct {
		Result map[string][]string `json:"result"`
	}
	if err := json.Unmarshal(resp, &envelope); err != nil {
		return nil, fmt.Errorf("list user bindings: decoding response: %w", err)
	}

	bindings := make([]Binding, 0, len(envelope.Result))
	for user, roles := range envelope.Result {
		bindings = append(bindings, Binding{User: user, Roles: roles})
	}
	sort.Slice(bindings, func(i, j int) bool { return bindings[i].User < bindings[j].User })
	return bindings, nil
}

// ListUserBindingsFor looks up bindings for the given users only, preserving
// the requested order. Users without a binding come back with no roles.
func (m *Manager) ListUserBindingsFor(ctx context.Context, users []string) ([]Binding, error) {
	bindings := make([]Binding, 0, len(users))
	for _, user := range users {
		roles, err := m.GetUserBinding(ctx, user)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, Binding{User: user, Roles: roles})
	}
	return bindings, nil
}

// GetUserBinding returns the roles bound to one user. A user with no
// binding yields an empty role list.
func (m *Manager) GetUserBinding(ctx context.Context, user string) ([]string, error) {
	resp, err := m.client.Do(ctx, http.MethodGet, "/user_bindings/"+user, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get user binding %q: %w", user, err)
	}
	var envelope struct {
		Result []string `json:"result"`
	}
	if err := json.Unmarshal(resp, &envelope); err != nil {
		return nil, fmt.Errorf("get user binding %q: decoding response: %w", user, err)
	}
	return envelope.Result, nil
}

// PutUserBinding replaces the roles bound to one user.
func (m *Manager) PutUserBinding(ctx context.Context, user string, roles []string) error {
	if roles == nil {
		roles = []string{}
	}
	if _, err := m.client.Do(ctx, http.MethodPut, "/user_bindings/"+user, nil, roles); err != nil {
		return fmt.Errorf("put user binding %q: %w", user, err)
	}
	return nil
}

// DeleteUserBinding removes the binding for one user.
func (m *Manager) DeleteUserBinding(ctx context.Context, user string) error {
	if _, err := m.client.Do(ctx, http.MethodDelete, "/user_bindings/"+user, nil, nil); err != nil {
		return fmt.Errorf("delete user binding %q: %w", user, err)
	}
	return nil
}
