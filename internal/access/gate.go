package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/rodrigomiquilino/wwm-review/internal/config"
	"github.com/rodrigomiquilino/wwm-review/internal/github"
	"github.com/rodrigomiquilino/wwm-review/pkg/log"
)

// IdentityService is the slice of the GitHub client the gate depends on.
type IdentityService interface {
	CurrentUser(ctx context.Context) (*github.User, error)
	CollaboratorPermission(ctx context.Context, username string) (string, error)
}

// ErrNotAuthorized is returned when the caller fails any factor of the
// privileged-access check.
var ErrNotAuthorized = fmt.Errorf("access: not authorized for privileged operations")

// Gate decides whether the authenticated identity may perform privileged
// review operations. All three factors must hold: the login matches the
// configured owner, the immutable numeric account id matches, and the
// account still holds write or admin permission on the hub repository.
//
// The id check protects against login renames: a username can be released
// and re-registered by someone else, the numeric id cannot.
type Gate struct {
	service IdentityService
	owner   string
	ownerID int64
}

func NewGate(service IdentityService, cfg config.GitHubConfig) *Gate {
	return &Gate{service: service, owner: cfg.Owner, ownerID: cfg.OwnerID}
}

// Authorize verifies the current identity against all three factors and
// returns it on success. Any failed factor yields ErrNotAuthorized; the
// specific reason is logged, never returned, so callers cannot leak it.
func (g *Gate) Authorize(ctx context.Context) (*github.User, error) {
	user, err := g.service.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}

	if !strings.EqualFold(user.Login, g.owner) {
		log.Warn("access: login %q does not match owner %q", user.Login, g.owner)
		return nil, ErrNotAuthorized
	}
	if g.ownerID == 0 || user.ID != g.ownerID {
		log.Warn("access: account id %d does not match owner id %d", user.ID, g.ownerID)
		return nil, ErrNotAuthorized
	}

	permission, err := g.service.CollaboratorPermission(ctx, user.Login)
	if err != nil {
		return nil, fmt.Errorf("resolve permission: %w", err)
	}
	if permission != "admin" && permission != "write" {
		log.Warn("access: permission %q is insufficient", permission)
		return nil, ErrNotAuthorized
	}

	return user, nil
}
