package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dukerupert/grocer/internal/database"
	"github.com/dukerupert/grocer/internal/event"
	"github.com/dukerupert/grocer/internal/store"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// recorder captures broadcast events.
type recorder struct {
	mu   sync.Mutex
	msgs []event.Message
}

func (r *recorder) Broadcast(msg event.Message) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.msgs {
		out = append(out, m.Type)
	}
	return out
}

type testEnv struct {
	mux       *http.ServeMux
	events    *recorder
	customers *store.CustomerStore
	lists     *store.GroceryListStore
	items     *store.GroceryItemStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		mux:       http.NewServeMux(),
		events:    &recorder{},
		customers: store.NewCustomerStore(db),
		lists:     store.NewGroceryListStore(db),
		items:     store.NewGroceryItemStore(db),
	}
	logger := discardLogger()

	ch := NewCustomerHandler(env.customers, env.events, logger)
	ch.hashCost = bcrypt.MinCost
	lh := NewGroceryListHandler(env.lists, env.items, env.events, logger)
	ih := NewGroceryItemHandler(env.items, env.events, logger)

	env.mux.HandleFunc("POST /api/customer", ch.Create)
	env.mux.HandleFunc("GET /api/customer/{id}", ch.Get)
	env.mux.HandleFunc("PATCH /api/customer/{id}", ch.Patch)
	env.mux.HandleFunc("DELETE /api/customer/{id}", ch.Delete)

	env.mux.HandleFunc("POST /api/grocery_list", lh.Create)
	env.mux.HandleFunc("GET /api/grocery_list/{id}", lh.Get)
	env.mux.HandleFunc("PATCH /api/grocery_list/{id}", lh.Patch)
	env.mux.HandleFunc("DELETE /api/grocery_list/{id}", lh.Delete)
	env.mux.HandleFunc("PUT /api/grocery_list/{id}/grocery_item/{item_id}", lh.AttachItem)
	env.mux.HandleFunc("DELETE /api/grocery_list/{id}/grocery_item/{item_id}", lh.DetachItem)

	env.mux.HandleFunc("POST /api/grocery_item", ih.Create)
	env.mux.HandleFunc("GET /api/grocery_item/{id}", ih.Get)
	env.mux.HandleFunc("PATCH /api/grocery_item/{id}", ih.Patch)
	env.mux.HandleFunc("DELETE /api/grocery_item/{id}", ih.Delete)
	return env
}

type response struct {
	Code    int
	Raw     string
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (env *testEnv) do(t *testing.T, method, path, body string) response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)

	resp := response{Code: rec.Code, Raw: rec.Body.String()}
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return resp
}

// errorText decodes the data field of an error envelope.
func (r response) errorText(t *testing.T) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(r.Data, &s), r.Raw)
	return s
}

func decodeData[T any](t *testing.T, r response) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(r.Data, &v), r.Raw)
	return v
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
