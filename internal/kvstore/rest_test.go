package kvstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRestStore(t *testing.T, handler http.HandlerFunc) *RestStore {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRestStore(srv.URL, "test-token")
}

func TestRestStore_Get(t *testing.T) {
	tcases := []struct {
		name          string
		status        int
		body          string
		expectedValue string
		expectedOk    bool
		err           bool
	}{
		{
			name:          "present key",
			status:        http.StatusOK,
			body:          `{"result":"value"}`,
			expectedValue: "value",
			expectedOk:    true,
		},
		{
			name:       "absent key",
			status:     http.StatusOK,
			body:       `{"result":null}`,
			expectedOk: false,
		},
		{
			name:   "error field fails the operation",
			status: http.StatusOK,
			body:   `{"error":"WRONGTYPE"}`,
			err:    true,
		},
		{
			name:   "error status without envelope error",
			status: http.StatusInternalServerError,
			body:   `{"result":null}`,
			err:    true,
		},
		{
			name:   "malformed body",
			status: http.StatusOK,
			body:   `not json`,
			err:    true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			store := newTestRestStore(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/get/some-key", r.URL.Path, "expected command and key in path")
				assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})

			value, ok, err := store.Get(context.Background(), "some-key")
			if tc.err {
				assert.ErrorIs(t, err, ErrBackend)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedOk, ok)
			assert.Equal(t, tc.expectedValue, value)
		})
	}
}

func TestRestStore_SetEscapesArguments(t *testing.T) {
	var gotPath string
	store := newTestRestStore(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Write([]byte(`{"result":"OK"}`))
	})

	err := store.Set(context.Background(), "room:abc", `{"name":"a b"}`)
	require.NoError(t, err)
	assert.Equal(t, `/set/room:abc/%7B%22name%22:%22a%20b%22%7D`, gotPath,
		"expected key and value to be path-escaped")
}

func TestRestStore_SetEx(t *testing.T) {
	var gotPath string
	store := newTestRestStore(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"result":"OK"}`))
	})

	err := store.SetEx(context.Background(), "key", "value", 90*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "/setex/key/90/value", gotPath, "expected ttl in whole seconds")

	err = store.SetEx(context.Background(), "key", "value", 0)
	assert.ErrorIs(t, err, ErrBackend, "expected non-positive ttl to be rejected locally")
}

func TestRestStore_SMembers(t *testing.T) {
	tcases := []struct {
		name     string
		body     string
		expected []string
	}{
		{
			name:     "members",
			body:     `{"result":["a","b"]}`,
			expected: []string{"a", "b"},
		},
		{
			name:     "empty set",
			body:     `{"result":[]}`,
			expected: []string{},
		},
		{
			name:     "null result",
			body:     `{"result":null}`,
			expected: nil,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			store := newTestRestStore(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			})

			members, err := store.SMembers(context.Background(), "set")
			require.NoError(t, err)
			assert.Equal(t, tc.expected, members)
		})
	}
}

func TestRestStore_TTL(t *testing.T) {
	tcases := []struct {
		name        string
		body        string
		expectedTTL time.Duration
		expectedOk  bool
	}{
		{
			name:        "key with expiry",
			body:        `{"result":42}`,
			expectedTTL: 42 * time.Second,
			expectedOk:  true,
		},
		{
			name:       "missing key",
			body:       `{"result":-2}`,
			expectedOk: false,
		},
		{
			name:       "key without expiry",
			body:       `{"result":-1}`,
			expectedOk: false,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			store := newTestRestStore(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			})

			ttl, ok, err := store.TTL(context.Background(), "key")
			require.NoError(t, err)
			assert.Equal(t, tc.expectedOk, ok)
			assert.Equal(t, tc.expectedTTL, ttl)
		})
	}
}

func TestRestStore_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	store := NewRestStore(srv.URL, "test-token")

	_, _, err := store.Get(context.Background(), "key")
	assert.ErrorIs(t, err, ErrBackend, "expected transport failure to map to ErrBackend")
}
