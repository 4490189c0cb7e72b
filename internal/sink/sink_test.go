package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResource struct {
	resourceType string
	id           string
	fields       map[string]any
}

func (r *fakeResource) ResourceType() string    { return r.resourceType }
func (r *fakeResource) ID() string              { return r.id }
func (r *fakeResource) Fields() map[string]any  { return r.fields }

func TestPublishPOSTsWhenIDAbsent(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := New(Config{BaseURL: srv.URL}, nil)
	r := &fakeResource{resourceType: "Patient", fields: map[string]any{"resourceType": "Patient"}}
	require.NoError(t, s.Publish(context.Background(), r))
	assert.Equal(t, http.MethodPost, gotMethod)
}

func TestPublishPUTsWhenIDPresent(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(Config{BaseURL: srv.URL}, nil)
	r := &fakeResource{resourceType: "Patient", id: "42", fields: map[string]any{"id": "42"}}
	require.NoError(t, s.Publish(context.Background(), r))
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/Patient/42", gotPath)
}

func TestPublishFailsOnNonSuccessStatusWithoutRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := New(Config{BaseURL: srv.URL, RetryCount: 3}, nil)
	r := &fakeResource{resourceType: "Patient", fields: map[string]any{}}
	err := s.Publish(context.Background(), r)
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "status errors must not be retried")
}

func TestPublishSkipsHTTPWhenNoFHIRServer(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	s := New(Config{BaseURL: srv.URL, NoFHIRServer: true}, nil)
	r := &fakeResource{resourceType: "Patient", fields: map[string]any{}}
	require.NoError(t, s.Publish(context.Background(), r))
	assert.False(t, called)
}

func TestPublishAppendsNDJSONEvenWhenHTTPFails(t *testing.T) {
	dir := t.TempDir()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := New(Config{BaseURL: srv.URL, OutputFolder: dir}, nil)
	r := &fakeResource{resourceType: "Patient", id: "1", fields: map[string]any{"id": "1"}}

	err := s.Publish(context.Background(), r)
	require.Error(t, err, "the HTTP failure must still be reported")
	require.NoError(t, s.Close())

	data, err := os.ReadFile(filepath.Join(dir, "Patient.ndjson"))
	require.NoError(t, err)

	var lines []map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 1, "ndjson must record the resource regardless of the HTTP outcome")
	assert.Equal(t, "1", lines[0]["id"])
}

func TestPublishAppendsNDJSON(t *testing.T) {
	dir := t.TempDir()
	s := New(Config{OutputFolder: dir}, nil)

	r1 := &fakeResource{resourceType: "Patient", id: "1", fields: map[string]any{"id": "1"}}
	r2 := &fakeResource{resourceType: "Patient", id: "2", fields: map[string]any{"id": "2"}}
	require.NoError(t, s.Publish(context.Background(), r1))
	require.NoError(t, s.Publish(context.Background(), r2))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(filepath.Join(dir, "Patient.ndjson"))
	require.NoError(t, err)

	var lines []map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "1", lines[0]["id"])
	assert.Equal(t, "2", lines[1]["id"])
}
