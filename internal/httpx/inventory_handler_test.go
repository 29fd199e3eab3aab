package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// Validation paths only; the store and allocator behind the happy paths
// need a live database and are covered by the inventory package tests.
func newInventoryServer(t *testing.T) *httptest.Server {
	t.Helper()
	h := &InventoryHandler{Log: zap.NewNop()}
	r := NewRouter(zap.NewNop())
	h.Mount(r, &stubVerifier{users: nil})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestAvailableRejectsUnpairedParams(t *testing.T) {
	srv := newInventoryServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/internal/inventory/available", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet,
		srv.URL+"/internal/inventory/available?flower_type_id=1&flower_type_id=2&quantity=5", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet,
		srv.URL+"/internal/inventory/available?flower_type_id=1&quantity=0", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReduceRejectsBadBatches(t *testing.T) {
	srv := newInventoryServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/internal/inventory/reduce", "", `{"items":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/internal/inventory/reduce", "",
		`{"items":[{"flower_type_id":1,"quantity":-2}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/internal/inventory/reduce", "", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInventoryRoutesRequireAuth(t *testing.T) {
	srv := newInventoryServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/flowers", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/lots", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
