package syncthing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Events_SendsAuthHeaderAndSinceParam(t *testing.T) {
	var gotSince string
	var gotKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-KEY")
		gotSince = r.URL.Query().Get("since")
		events := []Event{
			{ID: 5, Type: "LocalIndexUpdated", Data: json.RawMessage(`{"folder":"f1","filenames":["a.txt"]}`)},
		}
		_ = json.NewEncoder(w).Encode(events)
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	client := NewClient(Config{Address: u.Hostname(), Port: port, AuthKey: "secret", FolderID: "f1"})

	events, err := client.Events(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "42", gotSince)

	var payload LocalIndexUpdated
	require.NoError(t, json.Unmarshal(events[0].Data, &payload))
	assert.Equal(t, "f1", payload.Folder)
	assert.Equal(t, []string{"a.txt"}, payload.Filenames)
}

func TestClient_Events_NonOKStatusIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	port, _ := strconv.Atoi(u.Port())
	client := NewClient(Config{Address: u.Hostname(), Port: port})

	_, err := client.Events(context.Background(), 0)
	require.Error(t, err)
}
