package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/ekaya-inc/ekaya-datasources/pkg/apperrors"
)

// Kind discriminates datasource variants. It is carried on the wire as "@type".
type Kind string

const (
	// KindJDBC is the type name for JDBC data sources.
	KindJDBC Kind = "JdbcDatasource"
	// KindUser is the type name for user data sources.
	KindUser Kind = "UserDatasource"
)

// Default icon name and color, used for data sources created before
// data sources supported icons.
const (
	DefaultIcon      = "grid_on"
	DefaultIconColor = "orange"
)

// HiveDatasourceID identifies the built-in Hive pseudo-datasource.
// It is never stored by the backend.
const HiveDatasourceID = "HIVE"

// Identifiable is anything carrying a backend id.
type Identifiable interface {
	GetID() string
}

// Datasource is implemented by every datasource variant.
type Datasource interface {
	Identifiable
	Common() *Base
	Kind() Kind
}

// FeedRef references a feed that reads from a datasource.
type FeedRef struct {
	ID          string `json:"id"`
	SystemName  string `json:"systemName,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// Principal is the owner of an entity.
type Principal struct {
	SystemName  string `json:"systemName"`
	DisplayName string `json:"displayName,omitempty"`
}

// Base holds the fields shared by all datasource variants.
type Base struct {
	ID              string           `json:"id,omitempty"`
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	Type            string           `json:"type"`
	SourceForFeeds  []FeedRef        `json:"sourceForFeeds"`
	Icon            string           `json:"icon,omitempty"`
	IconColor       string           `json:"iconColor,omitempty"`
	Owner           *Principal       `json:"owner"`
	RoleMemberships []RoleMembership `json:"roleMemberships"`
	IsHive          bool             `json:"isHive,omitempty"`
}

// Common returns the shared fields.
func (b *Base) Common() *Base { return b }

// GetID returns the backend id, empty for unsaved records.
func (b *Base) GetID() string { return b.ID }

func (b Base) clone() Base {
	c := b
	c.SourceForFeeds = slices.Clone(b.SourceForFeeds)
	if b.Owner != nil {
		owner := *b.Owner
		c.Owner = &owner
	}
	if b.RoleMemberships != nil {
		c.RoleMemberships = make([]RoleMembership, len(b.RoleMemberships))
		for i, m := range b.RoleMemberships {
			m.Members = slices.Clone(m.Members)
			c.RoleMemberships[i] = m
		}
	}
	return c
}

// JdbcDatasource defines a connection to a JDBC data source.
type JdbcDatasource struct {
	Base
	// DatabaseConnectionURL has the form jdbc:subprotocol:subname.
	DatabaseConnectionURL   string `json:"databaseConnectionUrl"`
	DatabaseDriverClassName string `json:"databaseDriverClassName"`
	// DatabaseDriverLocation is a comma-separated list of files, folders
	// and/or URLs containing the driver JAR and its dependencies.
	DatabaseDriverLocation string `json:"databaseDriverLocation"`
	DatabaseUser           string `json:"databaseUser"`
	Password               string `json:"password"`
}

// Kind implements Datasource.
func (*JdbcDatasource) Kind() Kind { return KindJDBC }

// MarshalJSON adds the "@type" discriminator.
func (d JdbcDatasource) MarshalJSON() ([]byte, error) {
	type plain JdbcDatasource
	return json.Marshal(struct {
		Kind Kind `json:"@type"`
		plain
	}{KindJDBC, plain(d)})
}

// DriverLocations splits DatabaseDriverLocation into its entries.
func (d *JdbcDatasource) DriverLocations() []string {
	var locations []string
	for _, loc := range strings.Split(d.DatabaseDriverLocation, ",") {
		if loc = strings.TrimSpace(loc); loc != "" {
			locations = append(locations, loc)
		}
	}
	return locations
}

// UserDatasource is a generic, user-defined data source.
type UserDatasource struct {
	Base
}

// Kind implements Datasource.
func (*UserDatasource) Kind() Kind { return KindUser }

// MarshalJSON adds the "@type" discriminator.
func (d UserDatasource) MarshalJSON() ([]byte, error) {
	type plain UserDatasource
	return json.Marshal(struct {
		Kind Kind `json:"@type"`
		plain
	}{KindUser, plain(d)})
}

// HiveDatasource returns the built-in Hive pseudo-datasource.
// A new value is returned on every call.
func HiveDatasource() *UserDatasource {
	return &UserDatasource{Base: Base{
		ID:        HiveDatasourceID,
		Name:      "Hive",
		IsHive:    true,
		Icon:      DefaultIcon,
		IconColor: DefaultIconColor,
	}}
}

// NewJdbcDatasource returns an empty, unsaved JDBC data source.
func NewJdbcDatasource() *JdbcDatasource {
	return &JdbcDatasource{Base: Base{
		SourceForFeeds:  []FeedRef{},
		RoleMemberships: []RoleMembership{},
	}}
}

// Clone returns a deep copy of ds. Implementations other than the
// variants defined here are returned unchanged.
func Clone(ds Datasource) Datasource {
	switch v := ds.(type) {
	case *JdbcDatasource:
		if v == nil {
			return v
		}
		c := *v
		c.Base = v.Base.clone()
		return &c
	case *UserDatasource:
		if v == nil {
			return v
		}
		c := *v
		c.Base = v.Base.clone()
		return &c
	}
	return ds
}

// WithDefaultIcon returns a copy of ds whose icon and icon color are set to
// the defaults when ds has no icon. ds itself is not modified.
func WithDefaultIcon(ds Datasource) Datasource {
	c := Clone(ds)
	if c == nil {
		return nil
	}
	if b := c.Common(); b.Icon == "" {
		b.Icon = DefaultIcon
		b.IconColor = DefaultIconColor
	}
	return c
}

// DecodeDatasource decodes a single datasource, choosing the variant from
// "@type". Records without a discriminator are treated as JDBC when they
// carry a connection URL.
func DecodeDatasource(data []byte) (Datasource, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("empty datasource payload: %w", apperrors.ErrNotFound)
	}

	var probe struct {
		Kind          Kind    `json:"@type"`
		ConnectionURL *string `json:"databaseConnectionUrl"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse datasource: %w", err)
	}

	var ds Datasource
	switch {
	case probe.Kind == KindJDBC, probe.Kind == "" && probe.ConnectionURL != nil:
		ds = &JdbcDatasource{}
	default:
		ds = &UserDatasource{}
	}
	if err := json.Unmarshal(data, ds); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ds.Kind(), err)
	}
	return ds, nil
}

// DecodeDatasources decodes a JSON array of datasources.
func DecodeDatasources(data []byte) ([]Datasource, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse datasource list: %w", err)
	}

	result := make([]Datasource, 0, len(raw))
	for i, item := range raw {
		ds, err := DecodeDatasource(item)
		if err != nil {
			return nil, fmt.Errorf("datasource %d: %w", i, err)
		}
		result = append(result, ds)
	}
	return result, nil
}
