package meetings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSendsHostAndTitle(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(Meeting{ID: "m-1", HostID: "u1", Title: "standup", Active: true})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-123")
	m, err := c.Create(context.Background(), "u1", "standup")
	require.NoError(t, err)

	assert.Equal(t, "POST /meet/create", gotPath)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, map[string]string{"hostId": "u1", "title": "standup"}, gotBody)
	assert.EqualValues(t, "m-1", m.ID)
	assert.True(t, m.Active)
}

func TestJoinAndGetPaths(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		json.NewEncoder(w).Encode(Meeting{ID: "m-1"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.Join(context.Background(), "m-1", "u2")
	require.NoError(t, err)
	_, err = c.Get(context.Background(), "m-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"POST /meet/join", "GET /meet/m-1"}, paths)
}

func TestParticipants(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/meet/m-1/participants", r.URL.Path)
		json.NewEncoder(w).Encode(map[string][]string{"participants": {"u1", "u2"}})
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, "").Participants(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, got)
}

func TestEnd(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewClient(srv.URL, "").End(context.Background(), "m-1"))
	assert.Equal(t, "PATCH /meet/m-1/end", gotPath)
}

func TestErrorPayloadSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "meeting already ended"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").Join(context.Background(), "m-1", "u2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "meeting already ended")
}

func TestErrorWithoutPayloadReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").Get(context.Background(), "m-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestNoAuthHeaderWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(Meeting{ID: "m-1"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").Get(context.Background(), "m-1")
	require.NoError(t, err)
}
