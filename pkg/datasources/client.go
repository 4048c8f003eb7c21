// Package datasources is a client for the feed-manager Data Sources REST API.
//
// Every network operation issues exactly one request through the injected
// rest.RequestExecutor and returns backend failures unchanged. The client
// holds no mutable state and is safe for concurrent use.
package datasources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datasources/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datasources/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-datasources/pkg/logging"
	"github.com/ekaya-inc/ekaya-datasources/pkg/models"
	"github.com/ekaya-inc/ekaya-datasources/pkg/rest"
	"github.com/ekaya-inc/ekaya-datasources/pkg/sql"
	"github.com/ekaya-inc/ekaya-datasources/pkg/urls"
)

// ContentTypeJSONUTF8 is sent when testing a connection.
const ContentTypeJSONUTF8 = "application/json; charset=utf-8"

// RoleSaver persists the role memberships of an entity.
type RoleSaver interface {
	SaveRoleMemberships(ctx context.Context, entityType, entityID string, memberships []models.RoleMembership) error
}

// Client interacts with the Data Sources REST API.
type Client struct {
	exec     rest.RequestExecutor
	resolver urls.Resolver
	roles    RoleSaver
	logger   *zap.Logger
}

// NewClient creates a datasource client.
func NewClient(exec rest.RequestExecutor, resolver urls.Resolver, roles RoleSaver, logger *zap.Logger) *Client {
	return &Client{
		exec:     exec,
		resolver: resolver,
		roles:    roles,
		logger:   logger.Named("datasources"),
	}
}

// HiveDatasource returns the built-in Hive pseudo-datasource.
func (c *Client) HiveDatasource() *models.UserDatasource {
	return models.HiveDatasource()
}

// EnsureDefaultIcon returns a copy of ds with the default icon and color
// applied when ds has no icon. ds is left untouched.
func (c *Client) EnsureDefaultIcon(ds models.Datasource) models.Datasource {
	return models.WithDefaultIcon(ds)
}

// DefaultIconName is used for data sources created before data sources supported icons.
func (c *Client) DefaultIconName() string { return models.DefaultIcon }

// DefaultIconColor is used for data sources created before data sources supported icons.
func (c *Client) DefaultIconColor() string { return models.DefaultIconColor }

// NewJdbcDatasource returns an empty, unsaved JDBC data source.
func (c *Client) NewJdbcDatasource() *models.JdbcDatasource {
	return models.NewJdbcDatasource()
}

// FilterByIDs returns the records whose id is one of ids, in the order of records.
func FilterByIDs[T models.Identifiable](records []T, ids ...string) []T {
	result := make([]T, 0, len(records))
	for _, r := range records {
		if slices.Contains(ids, r.GetID()) {
			result = append(result, r)
		}
	}
	return result
}

// QueryEscape encodes sql for use with Query, which sends its argument unescaped.
func QueryEscape(sql string) string {
	return url.QueryEscape(sql)
}

// DeleteByID deletes the data source with the given id.
func (c *Client) DeleteByID(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.ErrMissingID
	}

	c.logger.Debug("Deleting datasource", zap.String("datasource_id", id))

	_, err := c.exec.Do(ctx, &rest.Request{
		Method: http.MethodDelete,
		Path:   c.datasourceURL(id),
	})
	return err
}

// FindAll returns all user data sources, each with a default icon applied.
func (c *Client) FindAll(ctx context.Context) ([]models.Datasource, error) {
	body, err := c.exec.Do(ctx, &rest.Request{
		Method: http.MethodGet,
		Path:   c.resolver.DatasourcesURL(),
		Query:  url.Values{"type": []string{string(models.KindUser)}},
	})
	if err != nil {
		return nil, err
	}

	list, err := models.DecodeDatasources(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode datasources: %w", err)
	}
	for i, ds := range list {
		list[i] = models.WithDefaultIcon(ds)
	}

	c.logger.Debug("Fetched datasources",
		zap.Int("count", len(list)))

	return list, nil
}

// FindByID returns the data source with the given id. The Hive
// pseudo-datasource is answered locally without contacting the backend.
func (c *Client) FindByID(ctx context.Context, id string) (models.Datasource, error) {
	if id == models.HiveDatasourceID {
		return models.HiveDatasource(), nil
	}
	if id == "" {
		return nil, apperrors.ErrMissingID
	}

	body, err := c.exec.Do(ctx, &rest.Request{
		Method: http.MethodGet,
		Path:   c.datasourceURL(id),
	})
	if err != nil {
		return nil, err
	}

	ds, err := models.DecodeDatasource(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode datasource %s: %w", id, err)
	}
	return models.WithDefaultIcon(ds), nil
}

// FindControllerServiceReferences returns the NiFi components referencing a
// controller service, as sent by the backend.
func (c *Client) FindControllerServiceReferences(ctx context.Context, controllerServiceID string) (json.RawMessage, error) {
	if controllerServiceID == "" {
		return nil, apperrors.ErrMissingID
	}

	body, err := c.exec.Do(ctx, &rest.Request{
		Method: http.MethodGet,
		Path:   c.resolver.ControllerServiceReferencesURL(controllerServiceID),
	})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// GetTableSchema returns the schema of table. schema is sent only when non-nil.
func (c *Client) GetTableSchema(ctx context.Context, id, table string, schema *string) (*models.TableSchema, error) {
	if id == "" {
		return nil, apperrors.ErrMissingID
	}

	query := url.Values{}
	if schema != nil {
		query.Set("schema", *schema)
	}

	body, err := c.exec.Do(ctx, &rest.Request{
		Method: http.MethodGet,
		Path:   c.datasourceURL(id) + "/tables/" + url.PathEscape(table),
		Query:  query,
	})
	if err != nil {
		return nil, err
	}

	var result models.TableSchema
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode table schema: %w", err)
	}
	return &result, nil
}

// ListTables lists the tables of a data source. When query is not empty the
// backend is asked for tables matching %query% and the result is filtered
// again locally by a case-insensitive substring match on the full name.
func (c *Client) ListTables(ctx context.Context, id, query string) ([]models.TableDescriptor, error) {
	if id == "" {
		return nil, apperrors.ErrMissingID
	}

	params := url.Values{}
	if query != "" {
		params.Set("tableName", "%"+query+"%")
	}

	body, err := c.exec.Do(ctx, &rest.Request{
		Method: http.MethodGet,
		Path:   c.datasourceURL(id) + "/tables",
		Query:  params,
	})
	if err != nil {
		return nil, err
	}

	tables := []models.TableDescriptor{}
	if jsonutil.IsJSONArray(body) {
		var names []string
		if err := json.Unmarshal(body, &names); err != nil {
			return nil, fmt.Errorf("failed to decode table list: %w", err)
		}
		for _, name := range names {
			tables = append(tables, models.ParseTableDescriptor(name))
		}
	}

	if query != "" {
		tables = slices.DeleteFunc(tables, func(t models.TableDescriptor) bool {
			return !t.Matches(query)
		})
	}

	c.logger.Debug("Listed tables",
		zap.String("datasource_id", id),
		zap.String("query", query),
		zap.String("result", fmt.Sprintf("%d %s", len(tables), pluralize("table", len(tables)))))

	return tables, nil
}

// Query runs an ad-hoc SQL statement. sql is appended to the URL without
// escaping; use QueryEscape when it may contain reserved characters.
func (c *Client) Query(ctx context.Context, datasourceID, sql string) (*models.QueryResult, error) {
	if datasourceID == "" {
		return nil, apperrors.ErrMissingID
	}

	c.warnFindings(datasourceID, sqlFindings(sql))
	c.logger.Debug("Running query",
		zap.String("datasource_id", datasourceID),
		zap.String("query", logging.SanitizeQuery(sql)))

	body, err := c.exec.Do(ctx, &rest.Request{
		Method: http.MethodGet,
		Path:   c.datasourceURL(datasourceID) + "/query?query=" + sql,
	})
	if err != nil {
		return nil, err
	}
	return decodeQueryResult(body)
}

// Preview returns up to limit rows of schema.table.
func (c *Client) Preview(ctx context.Context, datasourceID, schema, table string, limit int) (*models.QueryResult, error) {
	if datasourceID == "" {
		return nil, apperrors.ErrMissingID
	}

	c.warnFindings(datasourceID, identifierFindings(schema, table))

	body, err := c.exec.Do(ctx, &rest.Request{
		Method: http.MethodPost,
		Path:   c.resolver.PreviewDatasourceURL(datasourceID, schema, table, limit),
		Body:   "",
	})
	if err != nil {
		return nil, err
	}
	return decodeQueryResult(body)
}

// PreviewSQL returns the SQL the backend would run for Preview.
func (c *Client) PreviewSQL(ctx context.Context, datasourceID, schema, table string, limit int) (string, error) {
	if datasourceID == "" {
		return "", apperrors.ErrMissingID
	}

	c.warnFindings(datasourceID, identifierFindings(schema, table))

	body, err := c.exec.Do(ctx, &rest.Request{
		Method: http.MethodGet,
		Path:   c.resolver.PreviewDatasourceURL(datasourceID, schema, table, limit),
	})
	if err != nil {
		return "", err
	}
	return jsonutil.TextValue(body), nil
}

// TablesAndColumns returns table and column metadata of schema, as sent by the backend.
func (c *Client) TablesAndColumns(ctx context.Context, datasourceID, schema string) (json.RawMessage, error) {
	if datasourceID == "" {
		return nil, apperrors.ErrMissingID
	}

	body, err := c.exec.Do(ctx, &rest.Request{
		Method: http.MethodGet,
		Path:   c.datasourceURL(datasourceID) + "/table-columns",
		Query:  url.Values{"schema": []string{schema}},
	})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// SaveRoles persists the role memberships of a saved data source.
func (c *Client) SaveRoles(ctx context.Context, ds models.Datasource) error {
	if ds == nil || ds.GetID() == "" {
		return apperrors.ErrMissingID
	}
	return c.roles.SaveRoleMemberships(ctx, models.EntityDatasource, ds.GetID(), ds.Common().RoleMemberships)
}

// Save creates ds when it has no id and updates it otherwise. The persisted
// record is returned, carrying the backend-assigned id on create.
func (c *Client) Save(ctx context.Context, ds models.Datasource) (models.Datasource, error) {
	if ds == nil {
		return nil, fmt.Errorf("datasource is required")
	}

	c.logger.Debug("Saving datasource", datasourceFields(ds)...)

	body, err := c.exec.Do(ctx, &rest.Request{
		Method: http.MethodPost,
		Path:   c.resolver.DatasourcesURL(),
		Body:   ds,
	})
	if err != nil {
		return nil, err
	}

	saved, err := models.DecodeDatasource(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode saved datasource: %w", err)
	}

	c.logger.Info("Saved datasource",
		zap.String("datasource_id", saved.GetID()),
		zap.String("name", saved.Common().Name),
		zap.Bool("created", ds.GetID() == ""))

	return saved, nil
}

// TestConnection asks the backend to connect using ds's settings.
// A nil error means the connection succeeded.
func (c *Client) TestConnection(ctx context.Context, ds models.Datasource) error {
	if ds == nil {
		return fmt.Errorf("datasource is required")
	}

	c.logger.Debug("Testing datasource connection", datasourceFields(ds)...)

	_, err := c.exec.Do(ctx, &rest.Request{
		Method: http.MethodPost,
		Path:   c.resolver.DatasourcesURL() + "/test",
		Body:   ds,
		Header: http.Header{"Content-Type": []string{ContentTypeJSONUTF8}},
	})
	if err != nil {
		c.logger.Info("Datasource connection test failed",
			zap.String("name", ds.Common().Name),
			zap.String("error", logging.SanitizeError(err)))
	}
	return err
}

func (c *Client) datasourceURL(id string) string {
	return c.resolver.DatasourcesURL() + "/" + url.PathEscape(id)
}

func (c *Client) warnFindings(datasourceID string, findings []sql.Finding) {
	for _, f := range findings {
		c.logger.Warn("Suspicious SQL input",
			zap.String("datasource_id", datasourceID),
			zap.String("kind", string(f.Kind)),
			zap.String("subject", f.Subject),
			zap.String("fingerprint", f.Fingerprint))
	}
}

func sqlFindings(query string) []sql.Finding {
	return sql.CheckQuery(query)
}

func identifierFindings(schema, table string) []sql.Finding {
	return sql.CheckIdentifiers(map[string]string{"schema": schema, "table": table})
}

func decodeQueryResult(body []byte) (*models.QueryResult, error) {
	var result models.QueryResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode query result: %w", err)
	}
	return &result, nil
}

// datasourceFields describes ds for logs with credentials removed.
func datasourceFields(ds models.Datasource) []zap.Field {
	fields := []zap.Field{
		zap.String("datasource_id", ds.GetID()),
		zap.String("name", ds.Common().Name),
		zap.String("kind", string(ds.Kind())),
	}
	if jdbc, ok := ds.(*models.JdbcDatasource); ok {
		fields = append(fields,
			zap.String("connection_url", logging.SanitizeConnectionString(jdbc.DatabaseConnectionURL)),
			zap.String("driver", jdbc.DatabaseDriverClassName),
			zap.String("user", jdbc.DatabaseUser),
			zap.String("password", logging.MaskPassword(jdbc.Password)))
	}
	return fields
}

func pluralize(noun string, n int) string {
	if n == 1 {
		return noun
	}
	return inflection.Plural(noun)
}
