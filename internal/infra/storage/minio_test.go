package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu      sync.Mutex
	bucket  bool
	objects map[string]string
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := strings.Trim(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodHead && path == "evidence":
		if !f.bucket {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && path == "evidence":
		f.bucket = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && strings.HasPrefix(path, "evidence/"):
		body, _ := io.ReadAll(r.Body)
		key := strings.TrimPrefix(path, "evidence/")
		f.objects[key] = string(body)
		f.types[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func newFake(t *testing.T, bucket bool) (*fakeS3, string) {
	t.Helper()
	f := &fakeS3{bucket: bucket, objects: map[string]string{}, types: map[string]string{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, strings.TrimPrefix(srv.URL, "http://")
}

func TestStore_Put(t *testing.T) {
	f, host := newFake(t, true)
	s, err := New(context.Background(), host, "us-east-1", "evidence", "key", "secret", false)
	require.NoError(t, err)

	url, err := s.Put(context.Background(), "acme/2026/03/14/a-1.jpg", []byte("jpeg-bytes"), "image/jpeg")

	require.NoError(t, err)
	assert.Equal(t, "http://"+host+"/evidence/acme/2026/03/14/a-1.jpg", url)
	assert.Contains(t, f.objects["acme/2026/03/14/a-1.jpg"], "jpeg-bytes")
	assert.Equal(t, "image/jpeg", f.types["acme/2026/03/14/a-1.jpg"])
	assert.NoError(t, s.Ping(context.Background()))
}

func TestNew_CreatesMissingBucket(t *testing.T) {
	f, host := newFake(t, false)

	_, err := New(context.Background(), host, "us-east-1", "evidence", "key", "secret", false)

	require.NoError(t, err)
	assert.True(t, f.bucket)
}

func TestObjectURL(t *testing.T) {
	assert.Equal(t, "https://s3.local/b/k.png", ObjectURL("https", "s3.local", "b", "k.png"))
	assert.Equal(t, "http://s3.local/b/k.png", ObjectURL("", "s3.local", "b", "k.png"))
}
