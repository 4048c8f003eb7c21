package accesscontrol

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datasources/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datasources/pkg/models"
	"github.com/ekaya-inc/ekaya-datasources/pkg/rest"
	"github.com/ekaya-inc/ekaya-datasources/pkg/urls"
)

type recordingExecutor struct {
	mu       sync.Mutex
	requests []*rest.Request
	failRole string
	err      error
}

func (e *recordingExecutor) Do(_ context.Context, req *rest.Request) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, req)
	if change, ok := req.Body.(models.RoleMembershipChange); ok && change.RoleName == e.failRole {
		return nil, e.err
	}
	return []byte(`{}`), nil
}

func TestClient_SaveRoleMemberships(t *testing.T) {
	exec := &recordingExecutor{}
	client := NewClient(exec, urls.New(""), zap.NewNop())

	memberships := []models.RoleMembership{
		{Role: models.Role{SystemName: "editor"}, Members: []models.Member{{Type: models.MemberUser, SystemName: "alice"}}},
		{Role: models.Role{SystemName: "readonly"}, Members: []models.Member{{Type: models.MemberGroup, SystemName: "analysts"}}},
	}

	err := client.SaveRoleMemberships(context.Background(), models.EntityDatasource, "ds-1", memberships)
	require.NoError(t, err)
	require.Len(t, exec.requests, 2)

	var roles []string
	for _, req := range exec.requests {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "/proxy/v1/metadata/datasource/ds-1/roles", req.Path)
		change := req.Body.(models.RoleMembershipChange)
		assert.Equal(t, models.ChangeReplace, change.Change)
		roles = append(roles, change.RoleName)
	}
	sort.Strings(roles)
	assert.Equal(t, []string{"editor", "readonly"}, roles)
}

func TestClient_SaveRoleMemberships_Empty(t *testing.T) {
	exec := &recordingExecutor{}
	client := NewClient(exec, urls.New(""), zap.NewNop())

	err := client.SaveRoleMemberships(context.Background(), models.EntityDatasource, "ds-1", nil)

	require.NoError(t, err)
	assert.Empty(t, exec.requests)
}

func TestClient_SaveRoleMemberships_PropagatesError(t *testing.T) {
	backendErr := &apperrors.HTTPError{Method: http.MethodPost, URL: "/roles", StatusCode: http.StatusForbidden}
	exec := &recordingExecutor{failRole: "admin", err: backendErr}
	client := NewClient(exec, urls.New(""), zap.NewNop())

	err := client.SaveRoleMemberships(context.Background(), models.EntityDatasource, "ds-1", []models.RoleMembership{
		{Role: models.Role{SystemName: "admin"}},
		{Role: models.Role{SystemName: "editor"}},
	})

	require.Error(t, err)
	assert.Same(t, backendErr, err)
}

func TestClient_SaveRoleMemberships_UnknownEntity(t *testing.T) {
	exec := &recordingExecutor{}
	client := NewClient(exec, urls.New(""), zap.NewNop())

	err := client.SaveRoleMemberships(context.Background(), "project", "p-1", []models.RoleMembership{
		{Role: models.Role{SystemName: "admin"}},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnknownEntityType))
	assert.Empty(t, exec.requests)
}
