// Package accesscontrol saves role memberships of feed-manager entities.
package accesscontrol

import (
	"context"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-datasources/pkg/models"
	"github.com/ekaya-inc/ekaya-datasources/pkg/rest"
	"github.com/ekaya-inc/ekaya-datasources/pkg/urls"
)

// Client persists role memberships through the access control API.
type Client struct {
	exec     rest.RequestExecutor
	resolver urls.Resolver
	logger   *zap.Logger
}

// NewClient creates an access control client.
func NewClient(exec rest.RequestExecutor, resolver urls.Resolver, logger *zap.Logger) *Client {
	return &Client{
		exec:     exec,
		resolver: resolver,
		logger:   logger.Named("accesscontrol"),
	}
}

// SaveRoleMemberships replaces the members of every role in memberships on
// the given entity. One request is sent per role, concurrently; the first
// failure is returned unchanged.
func (c *Client) SaveRoleMemberships(ctx context.Context, entityType, entityID string, memberships []models.RoleMembership) error {
	endpoint, err := c.resolver.EntityRolesURL(entityType, entityID)
	if err != nil {
		return err
	}
	if len(memberships) == 0 {
		return nil
	}

	c.logger.Debug("Saving role memberships",
		zap.String("entity_type", entityType),
		zap.String("entity_id", entityID),
		zap.Int("roles", len(memberships)))

	g, gctx := errgroup.WithContext(ctx)
	for _, m := range memberships {
		change := models.NewRoleMembershipChange(m)
		g.Go(func() error {
			_, err := c.exec.Do(gctx, &rest.Request{
				Method: http.MethodPost,
				Path:   endpoint,
				Body:   change,
			})
			if err != nil {
				c.logger.Error("Failed to save role membership",
					zap.String("entity_type", entityType),
					zap.String("entity_id", entityID),
					zap.String("role", change.RoleName),
					zap.Error(err))
			}
			return err
		})
	}
	return g.Wait()
}
