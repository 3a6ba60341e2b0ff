package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPDispatcher_PostsOrderID(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := NewHTTPDispatcher(srv.URL, nil).Dispatch(context.Background(), "order-42")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"orderId": "order-42"}, got)
}

func TestHTTPDispatcher_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Customer email not found"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewHTTPDispatcher(srv.URL, srv.Client()).Dispatch(context.Background(), "order-42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "Customer email not found")
}
