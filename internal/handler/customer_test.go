package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/grocer/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCustomerCreateWithNestedLists(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, "POST", "/api/customer", `{
		"username": "alice",
		"password": "hunter2",
		"email": "alice@example.com",
		"grocery_lists": [
			{"total_price": 1250, "grocery_items": [{"name": "milk", "quantity": 2}]},
			{}
		]
	}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Raw)
	assert.Equal(t, "success", resp.Status)

	c := decodeData[model.Customer](t, resp)
	assert.Equal(t, "Record inserted with this id: "+c.ID, resp.Message)
	assert.Equal(t, "alice", c.Username)
	require.Len(t, c.GroceryLists, 2)
	assert.Equal(t, c.ID, *c.GroceryLists[0].CustomerID)
	require.Len(t, c.GroceryLists[0].GroceryItems, 1)
	assert.Equal(t, "Dairy", c.GroceryLists[0].GroceryItems[0].Type)
	assert.NotContains(t, resp.Raw, "hunter2")
	assert.NotContains(t, resp.Raw, "password")

	stored, err := env.customers.GetByID(c.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("hunter2")))

	assert.Equal(t, []string{"customer_created"}, env.events.types())
}

func TestCustomerCreateRequiredFields(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"neither", `{"email": "a@example.com"}`, http.StatusNotFound},
		{"both falsy", `{"username": "", "password": null}`, http.StatusNotFound},
		{"empty object", `{}`, http.StatusNotFound},
		{"username only", `{"username": "bob"}`, http.StatusCreated},
		{"password only", `{"password": "pw"}`, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, "POST", "/api/customer", tt.body)
			require.Equal(t, tt.want, resp.Code, resp.Raw)
			if tt.want == http.StatusNotFound {
				assert.Equal(t, "error", resp.Status)
				assert.Equal(t, "Payload was missing one or more required fields: username, password", resp.errorText(t))
			}
		})
	}
}

func TestCustomerCreateMalformedBody(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{"", "{", `["alice"]`, "null"} {
		resp := env.do(t, "POST", "/api/customer", body)
		assert.Equal(t, http.StatusNotAcceptable, resp.Code, "body %q", body)
		assert.Equal(t, "error", resp.Status)
		assert.Contains(t, resp.errorText(t), "JSON parse error: ")
	}
}

func TestCustomerCreateRejectsBadPayload(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown field", `{"username": "a", "nickname": "x"}`, "nickname"},
		{"wrong type", `{"username": 42}`, "username must be a string"},
		{"bad email", `{"username": "a", "email": "not-an-email"}`, "email must be a valid email address"},
		{"unknown nested field", `{"username": "a", "grocery_lists": [{"colour": "red"}]}`, "grocery_lists[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, "POST", "/api/customer", tt.body)
			require.Equal(t, http.StatusNotFound, resp.Code, resp.Raw)
			assert.Contains(t, resp.errorText(t), tt.want)
		})
	}
	assert.Empty(t, env.events.types())
}

func TestCustomerDuplicateUsername(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, "POST", "/api/customer", `{"username": "alice", "password": "a"}`)
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = env.do(t, "POST", "/api/customer", `{"username": "alice", "password": "b"}`)
	assert.Equal(t, http.StatusConflict, resp.Code, resp.Raw)
	assert.Equal(t, "error", resp.Status)

	other := decodeData[model.Customer](t, env.do(t, "POST", "/api/customer", `{"username": "bob"}`))
	resp = env.do(t, "PATCH", "/api/customer/"+other.ID, `{"username": "alice"}`)
	assert.Equal(t, http.StatusConflict, resp.Code, resp.Raw)
}

func TestCustomerGet(t *testing.T) {
	env := newTestEnv(t)
	created := decodeData[model.Customer](t, env.do(t, "POST", "/api/customer", `{"username": "alice", "address": "1 Main St"}`))

	resp := env.do(t, "GET", "/api/customer/"+created.ID, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Record with id '"+created.ID+"' was found", resp.Message)
	got := decodeData[model.Customer](t, resp)
	assert.Equal(t, "1 Main St", got.Address)
	assert.NotNil(t, got.GroceryLists)

	resp = env.do(t, "GET", "/api/customer/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "Record with id 'nope' was not found", resp.errorText(t))
}

func TestCustomerPatch(t *testing.T) {
	env := newTestEnv(t)
	created := decodeData[model.Customer](t, env.do(t, "POST", "/api/customer",
		`{"username": "alice", "email": "old@example.com", "grocery_lists": [{"total_price": 1}]}`))
	path := "/api/customer/" + created.ID

	t.Run("truthy fields apply and falsy ones are ignored", func(t *testing.T) {
		resp := env.do(t, "PATCH", path, `{"email": "new@example.com", "username": "", "address": null}`)
		require.Equal(t, http.StatusOK, resp.Code, resp.Raw)
		assert.Equal(t, "Record with id '"+created.ID+"' was patched", resp.Message)
		got := decodeData[model.Customer](t, resp)
		assert.Equal(t, "new@example.com", got.Email)
		assert.Equal(t, "alice", got.Username)
		assert.NotNil(t, got.UpdatedAt)
	})

	t.Run("grocery lists are appended", func(t *testing.T) {
		resp := env.do(t, "PATCH", path, `{"grocery_lists": [{"grocery_items": [{"name": "bread"}]}]}`)
		require.Equal(t, http.StatusOK, resp.Code, resp.Raw)
		got := decodeData[model.Customer](t, resp)
		require.Len(t, got.GroceryLists, 2)
		assert.Equal(t, "bread", got.GroceryLists[1].GroceryItems[0].Name)
	})

	t.Run("password is rehashed", func(t *testing.T) {
		resp := env.do(t, "PATCH", path, `{"password": "s3cret"}`)
		require.Equal(t, http.StatusOK, resp.Code, resp.Raw)
		assert.NotContains(t, resp.Raw, "s3cret")
		stored, err := env.customers.GetByID(created.ID)
		require.NoError(t, err)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("s3cret")))
	})

	t.Run("failures", func(t *testing.T) {
		tests := []struct {
			name string
			path string
			body string
			code int
			msg  string
		}{
			{"unknown id", "/api/customer/missing", `{"email": "x@example.com"}`, http.StatusNotFound, "Record with id 'missing' was not found"},
			{"empty body", path, "", http.StatusNotAcceptable, ""},
			{"invalid json", path, `{"email":`, http.StatusNotAcceptable, ""},
			{"only falsy values", path, `{"username": "", "email": null, "grocery_lists": []}`, http.StatusNotFound, "Payload had no data to patch requested record '" + created.ID + "' with"},
			{"empty object", path, `{}`, http.StatusNotFound, "Payload had no data to patch requested record '" + created.ID + "' with"},
			{"unknown field", path, `{"email": "x@example.com", "age": 40}`, http.StatusNotFound, ""},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				resp := env.do(t, "PATCH", tt.path, tt.body)
				require.Equal(t, tt.code, resp.Code, resp.Raw)
				assert.Equal(t, "error", resp.Status)
				if tt.msg != "" {
					assert.Equal(t, tt.msg, resp.errorText(t))
				}
			})
		}
	})
}

func TestCustomerDeleteCascadesLists(t *testing.T) {
	env := newTestEnv(t)

	c := decodeData[model.Customer](t, env.do(t, "POST", "/api/customer",
		`{"username": "alice", "grocery_lists": [{"grocery_items": [{"name": "eggs"}]}]}`))
	listID := c.GroceryLists[0].ID
	itemID := c.GroceryLists[0].GroceryItems[0].ID

	// Share the item with a second, unowned list.
	other := decodeData[model.GroceryList](t, env.do(t, "POST", "/api/grocery_list", `{}`))
	require.Equal(t, http.StatusOK, env.do(t, "PUT", "/api/grocery_list/"+other.ID+"/grocery_item/"+itemID, "").Code)

	resp := env.do(t, "DELETE", "/api/customer/"+c.ID, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Raw)
	assert.Equal(t, "Record with id '"+c.ID+"' was deleted", resp.Message)
	deleted := decodeData[model.Customer](t, resp)
	assert.Len(t, deleted.GroceryLists, 1)

	assert.Equal(t, http.StatusNotFound, env.do(t, "GET", "/api/customer/"+c.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, "GET", "/api/grocery_list/"+listID, "").Code)
	assert.Equal(t, http.StatusOK, env.do(t, "GET", "/api/grocery_item/"+itemID, "").Code)

	shared := decodeData[model.GroceryList](t, env.do(t, "GET", "/api/grocery_list/"+other.ID, ""))
	require.Len(t, shared.GroceryItems, 1)
	assert.Equal(t, itemID, shared.GroceryItems[0].ID)

	assert.Equal(t, http.StatusNotFound, env.do(t, "DELETE", "/api/customer/"+c.ID, "").Code)
}

func TestCustomerMissingID(t *testing.T) {
	env := newTestEnv(t)
	h := NewCustomerHandler(env.customers, env.events, discardLogger())

	for _, fn := range []http.HandlerFunc{h.Get, h.Patch, h.Delete} {
		rec := httptest.NewRecorder()
		fn(rec, httptest.NewRequest("GET", "/api/customer/", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"status":"error","data":"Missing id in url"}`, rec.Body.String())
	}
}

func TestCollectionRoutesRejectItemMethods(t *testing.T) {
	env := newTestEnv(t)

	for _, method := range []string{"GET", "PATCH", "DELETE"} {
		resp := env.do(t, method, "/api/customer", `{"username": "x"}`)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.Code, method)
	}
}
