package user

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrIDRequired      = errors.New("user: id is required")
	ErrNameRequired    = errors.New("user: name is required")
	ErrKeyHashMissing  = errors.New("user: api key hash is required")
	ErrInvalidRole     = errors.New("user: invalid role")
	ErrNotFound        = errors.New("user: not found")
	ErrActorIDRequired = errors.New("user: acting user id is required")
)

type ID string

type Role string

const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
	RoleAdmin Role = "admin"
)

// User is a directory entry for someone allowed to call the API.
// Identity is issued elsewhere; only the key hash is kept here.
type User struct {
	ID        ID
	Name      string
	KeyHash   string
	Roles     []Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*User, error)
	Save(ctx context.Context, user *User) error
}

type CreateParams struct {
	ID        ID
	Name      string
	KeyHash   string
	Roles     []Role
	CreatedAt time.Time
}

func NewUser(params CreateParams) (*User, error) {
	id := strings.TrimSpace(string(params.ID))
	if id == "" {
		return nil, ErrIDRequired
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if strings.TrimSpace(params.KeyHash) == "" {
		return nil, ErrKeyHashMissing
	}
	roles, err := normalizeRoles(params.Roles)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		roles = []Role{RoleGuest}
	}
	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &User{
		ID:        ID(id),
		Name:      name,
		KeyHash:   params.KeyHash,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Roles: append([]Role(nil), u.Roles...)}
}

// Actor is the identity and roles attached to a single request.
type Actor struct {
	ID    ID
	Roles []Role
}

func (a Actor) Validate() error {
	if strings.TrimSpace(string(a.ID)) == "" {
		return ErrActorIDRequired
	}
	return nil
}

func (a Actor) HasRole(role Role) bool {
	role = normalizeRole(role)
	if role == "" {
		return false
	}
	for _, current := range a.Roles {
		if normalizeRole(current) == role {
			return true
		}
	}
	return false
}

func (a Actor) IsAdmin() bool { return a.HasRole(RoleAdmin) }

func (a Actor) IsHost() bool { return a.HasRole(RoleHost) }

func ParseRole(value string) (Role, error) {
	role := normalizeRole(Role(value))
	switch role {
	case RoleGuest, RoleHost, RoleAdmin:
		return role, nil
	}
	return "", ErrInvalidRole
}

func normalizeRoles(roles []Role) ([]Role, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	seen := make(map[Role]struct{}, len(roles))
	normalized := make([]Role, 0, len(roles))
	for _, role := range roles {
		parsed, err := ParseRole(string(role))
		if err != nil {
			return nil, err
		}
		if _, ok := seen[parsed]; ok {
			continue
		}
		seen[parsed] = struct{}{}
		normalized = append(normalized, parsed)
	}
	return normalized, nil
}

func normalizeRole(role Role) Role {
	return Role(strings.ToLower(strings.TrimSpace(string(role))))
}
