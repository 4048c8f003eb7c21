package datasources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datasources/pkg/accesscontrol"
	"github.com/ekaya-inc/ekaya-datasources/pkg/models"
	"github.com/ekaya-inc/ekaya-datasources/pkg/rest"
	"github.com/ekaya-inc/ekaya-datasources/pkg/urls"
)

// stubExecutor records requests and answers every call with body/err.
type stubExecutor struct {
	mu       sync.Mutex
	requests []*rest.Request
	body     []byte
	err      error
}

func (s *stubExecutor) Do(_ context.Context, req *rest.Request) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return s.body, nil
}

func (s *stubExecutor) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *stubExecutor) last() *rest.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}

type mockRoleSaver struct {
	entityType  string
	entityID    string
	memberships []models.RoleMembership
	calls       int
	err         error
}

func (m *mockRoleSaver) SaveRoleMemberships(_ context.Context, entityType, entityID string, memberships []models.RoleMembership) error {
	m.calls++
	m.entityType = entityType
	m.entityID = entityID
	m.memberships = memberships
	return m.err
}

func newStubClient(exec *stubExecutor) *Client {
	return NewClient(exec, urls.New(""), &mockRoleSaver{}, zap.NewNop())
}

const datasourceBase = "/proxy/v1/metadata/datasource"

// fakeBackend is an in-memory feed-manager Data Sources API.
type fakeBackend struct {
	mu          sync.Mutex
	datasources map[string]json.RawMessage
	tables      []string
	roleChanges []models.RoleMembershipChange
	lastQuery   string
	lastTableQ  string
	testCT      string
}

func newFakeBackend(t *testing.T) (*fakeBackend, *Client) {
	t.Helper()
	b := &fakeBackend{
		datasources: map[string]json.RawMessage{},
		tables:      []string{"public.orders", "public.orders.v2", "sales.customers"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+datasourceBase, b.list)
	mux.HandleFunc("POST "+datasourceBase, b.save)
	mux.HandleFunc("POST "+datasourceBase+"/test", b.test)
	mux.HandleFunc("GET "+datasourceBase+"/{id}", b.get)
	mux.HandleFunc("DELETE "+datasourceBase+"/{id}", b.delete)
	mux.HandleFunc("GET "+datasourceBase+"/{id}/tables", b.listTables)
	mux.HandleFunc("GET "+datasourceBase+"/{id}/tables/{table}", b.tableSchema)
	mux.HandleFunc("GET "+datasourceBase+"/{id}/table-columns", b.tableColumns)
	mux.HandleFunc("GET "+datasourceBase+"/{id}/query", b.query)
	mux.HandleFunc("POST "+datasourceBase+"/{id}/preview/{schema}/{table}", b.preview)
	mux.HandleFunc("GET "+datasourceBase+"/{id}/preview/{schema}/{table}", b.previewSQL)
	mux.HandleFunc("POST "+datasourceBase+"/{id}/roles", b.saveRole)
	mux.HandleFunc("GET /proxy/v1/feedmgr/nifi/controller-services/{id}/references", b.references)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	logger := zap.NewNop()
	exec := rest.NewClient(srv.URL, logger)
	resolver := urls.New("")
	client := NewClient(exec, resolver, accesscontrol.NewClient(exec, resolver, logger), logger)
	return b, client
}

func (b *fakeBackend) put(id string, ds any) {
	data, _ := json.Marshal(ds)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.datasources[id] = data
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *fakeBackend) list(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("type") != string(models.KindUser) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "type is required"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	list := make([]json.RawMessage, 0, len(b.datasources))
	for _, ds := range b.datasources {
		list = append(list, ds)
	}
	writeJSON(w, http.StatusOK, list)
}

func (b *fakeBackend) get(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ds, ok := b.datasources[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (b *fakeBackend) delete(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := r.PathValue("id")
	if _, ok := b.datasources[id]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
		return
	}
	delete(b.datasources, id)
	w.WriteHeader(http.StatusNoContent)
}

func (b *fakeBackend) save(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	if name, _ := payload["name"].(string); name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "name is required"})
		return
	}
	id, _ := payload["id"].(string)
	if id == "" {
		id = uuid.NewString()
		payload["id"] = id
	}
	delete(payload, "password")
	b.put(id, payload)
	writeJSON(w, http.StatusOK, payload)
}

func (b *fakeBackend) test(w http.ResponseWriter, r *http.Request) {
	var payload models.JdbcDatasource
	_ = json.NewDecoder(r.Body).Decode(&payload)
	b.mu.Lock()
	b.testCT = r.Header.Get("Content-Type")
	b.mu.Unlock()
	if !strings.HasPrefix(payload.DatabaseConnectionURL, "jdbc:") || payload.Password != "s3cret" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Access denied for " + payload.DatabaseConnectionURL})
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (b *fakeBackend) listTables(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.lastTableQ = r.URL.Query().Get("tableName")
	tables := b.tables
	b.mu.Unlock()
	// tableName is ignored so only the client filters.
	writeJSON(w, http.StatusOK, tables)
}

func (b *fakeBackend) tableSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.TableSchema{
		Name:       r.PathValue("table"),
		SchemaName: r.URL.Query().Get("schema"),
		Fields: []models.Field{
			{Name: "id", NativeDataType: "INTEGER", PrimaryKey: true},
			{Name: "total", NativeDataType: "DECIMAL", Nullable: true},
		},
	})
}

func (b *fakeBackend) tableColumns(w http.ResponseWriter, r *http.Request) {
	schema := r.URL.Query().Get("schema")
	writeJSON(w, http.StatusOK, []map[string]string{
		{"databaseName": schema, "tableName": "orders", "columnName": "id"},
		{"databaseName": schema, "tableName": "orders", "columnName": "total"},
	})
}

func (b *fakeBackend) query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("query")
	b.mu.Lock()
	b.lastQuery = q
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, models.QueryResult{
		Query:   q,
		Columns: []models.QueryResultColumn{{Field: "n", DataType: "INTEGER"}},
		Rows:    []map[string]any{{"n": 1}},
	})
}

func (b *fakeBackend) preview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.QueryResult{
		Query:   "SELECT * FROM " + r.PathValue("schema") + "." + r.PathValue("table") + " LIMIT " + r.URL.Query().Get("limit"),
		Columns: []models.QueryResultColumn{{Field: "id", DataType: "INTEGER"}},
		Rows:    []map[string]any{{"id": 1}, {"id": 2}},
	})
}

func (b *fakeBackend) previewSQL(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("SELECT * FROM " + r.PathValue("schema") + "." + r.PathValue("table") + " LIMIT " + r.URL.Query().Get("limit")))
}

func (b *fakeBackend) saveRole(w http.ResponseWriter, r *http.Request) {
	var change models.RoleMembershipChange
	if err := json.NewDecoder(r.Body).Decode(&change); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	b.mu.Lock()
	b.roleChanges = append(b.roleChanges, change)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, change)
}

func (b *fakeBackend) references(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []map[string]string{
		{"id": "proc-1", "name": "ExecuteSQL", "referenceType": "Processor", "serviceId": r.PathValue("id")},
	})
}
