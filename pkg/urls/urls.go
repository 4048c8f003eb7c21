// Package urls resolves logical REST operations to concrete endpoint paths.
package urls

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-datasources/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datasources/pkg/models"
)

// Resolver returns endpoint paths for the datasource and access control APIs.
type Resolver interface {
	// DatasourcesURL is the base of every datasource endpoint.
	DatasourcesURL() string
	// PreviewDatasourceURL previews limit rows of schema.table.
	PreviewDatasourceURL(datasourceID, schema, table string, limit int) string
	// ControllerServiceReferencesURL lists components referencing a NiFi controller service.
	ControllerServiceReferencesURL(controllerServiceID string) string
	// EntityRolesURL is where role memberships of an entity are saved.
	EntityRolesURL(entityType, entityID string) (string, error)
}

// RestURLs resolves paths under Root, which may be empty (relative to the
// transport's base URL) or a path prefix such as "/app".
type RestURLs struct {
	Root string
}

var _ Resolver = RestURLs{}

// New returns a resolver rooted at root.
func New(root string) RestURLs {
	return RestURLs{Root: strings.TrimSuffix(root, "/")}
}

func (u RestURLs) DatasourcesURL() string {
	return u.Root + "/proxy/v1/metadata/datasource"
}

func (u RestURLs) PreviewDatasourceURL(datasourceID, schema, table string, limit int) string {
	return fmt.Sprintf("%s/%s/preview/%s/%s?limit=%s",
		u.DatasourcesURL(),
		url.PathEscape(datasourceID),
		url.PathEscape(schema),
		url.PathEscape(table),
		strconv.Itoa(limit))
}

func (u RestURLs) ControllerServiceReferencesURL(controllerServiceID string) string {
	return u.Root + "/proxy/v1/feedmgr/nifi/controller-services/" + url.PathEscape(controllerServiceID) + "/references"
}

func (u RestURLs) EntityRolesURL(entityType, entityID string) (string, error) {
	id := url.PathEscape(entityID)
	switch entityType {
	case models.EntityDatasource:
		return u.DatasourcesURL() + "/" + id + "/roles", nil
	case models.EntityFeed:
		return u.Root + "/proxy/v1/feedmgr/feeds/" + id + "/roles", nil
	case models.EntityCategory:
		return u.Root + "/proxy/v1/feedmgr/categories/" + id + "/roles", nil
	case models.EntityTemplate:
		return u.Root + "/proxy/v1/feedmgr/templates/registered/" + id + "/roles", nil
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrUnknownEntityType, entityType)
}
