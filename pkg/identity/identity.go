// Package identity defines the identity-provider collaborator the approval
// executor resolves approvers through. The production implementation sits in
// the host application; StaticProvider covers development and tests.
package identity

import (
	"context"
	"errors"
	"fmt"
)

// ErrApproverNotFound indicates no user matched the requested role or id.
var ErrApproverNotFound = errors.New("approver not found")

// User is the resolved identity of an approver.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Provider resolves an approver by explicit user id or by role. Role
// resolution picks one responsible user; how ties break is the provider's
// concern.
type Provider interface {
	ResolveApprover(ctx context.Context, roleOrID string) (*User, error)
}

// StaticProvider resolves approvers from a fixed user list.
type StaticProvider struct {
	byID   map[string]*User
	byRole map[string]*User
}

func NewStaticProvider(users []User) *StaticProvider {
	provider := &StaticProvider{
		byID:   make(map[string]*User, len(users)),
		byRole: make(map[string]*User),
	}

	for i := range users {
		user := users[i]
		provider.byID[user.ID] = &user

		// First user registered for a role wins.
		if _, exists := provider.byRole[user.Role]; !exists && user.Role != "" {
			provider.byRole[user.Role] = &user
		}
	}

	return provider
}

func (p *StaticProvider) ResolveApprover(_ context.Context, roleOrID string) (*User, error) {
	if user, ok := p.byID[roleOrID]; ok {
		return user, nil
	}

	if user, ok := p.byRole[roleOrID]; ok {
		return user, nil
	}

	return nil, fmt.Errorf("no user for '%s': %w", roleOrID, ErrApproverNotFound)
}
