package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGitHubWriteRecordCreate(t *testing.T) {
	var put contentsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/site-tasks/contents/tasks/abc.json", r.URL.Path)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		switch r.Method {
		case http.MethodGet:
			rw.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&put))
			rw.WriteHeader(http.StatusCreated)
		}
	}))
	defer srv.Close()

	g := NewGitHub("token-123", "acme/site-tasks", "")
	g.baseURL = srv.URL

	err := g.WriteRecord(context.Background(), "tasks/abc.json", []byte(`{"id":"abc"}`), "new task abc")
	require.NoError(t, err)
	assert.Equal(t, "new task abc", put.Message)
	assert.Equal(t, "main", put.Branch)
	assert.Empty(t, put.SHA)

	decoded, err := base64.StdEncoding.DecodeString(put.Content)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"abc"}`, string(decoded))
}

func TestGitHubWriteRecordUpdate(t *testing.T) {
	var put contentsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "develop", r.URL.Query().Get("ref"))
			_ = json.NewEncoder(rw).Encode(map[string]string{"sha": "blob-sha-1"})
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&put))
			rw.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	g := NewGitHub("token-123", "acme/site-tasks", "develop")
	g.baseURL = srv.URL

	require.NoError(t, g.WriteRecord(context.Background(), "tasks/abc.json", []byte("{}"), "update"))
	assert.Equal(t, "blob-sha-1", put.SHA)
	assert.Equal(t, "develop", put.Branch)
}

func TestGitHubWriteRecordServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewGitHub("token-123", "acme/site-tasks", "")
	g.baseURL = srv.URL

	err := g.WriteRecord(context.Background(), "tasks/abc.json", []byte("{}"), "update")
	assert.Error(t, err)
}
