package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCloud issues tok-N on each login and only accepts the newest token.
type fakeCloud struct {
	logins  atomic.Int32
	current atomic.Value
	reject  atomic.Bool
	posted  map[string]any
}

func (f *fakeCloud) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("username") != "bridge" || r.PostForm.Get("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		n := f.logins.Add(1)
		tok := "tok-" + string(rune('0'+n))
		f.current.Store(tok)
		_ = json.NewEncoder(w).Encode(map[string]string{"access": tok})
	})
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			cur, _ := f.current.Load().(string)
			if f.reject.Load() || r.Header.Get("Authorization") != "Bearer "+cur {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}
	mux.HandleFunc("/api/led/status/", authed(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(Status{State: "ON", LastUpdated: "2024-05-01T12:00:00Z"})
	}))
	mux.HandleFunc("/api/readings", authed(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&f.posted)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]int64{"id": 77})
	}))
	return mux
}

func newTestClient(srvURL string) *APIClient {
	return NewAPIClient(APIConfig{
		BaseURL:      srvURL + "/",
		Username:     "bridge",
		Password:     "secret",
		LoginPath:    "/api/auth/login/",
		StatusPath:   "/api/led/status/",
		ReadingsPath: "/api/readings",
	})
}

func TestAPIClientStatus(t *testing.T) {
	cloud := &fakeCloud{}
	srv := httptest.NewServer(cloud.handler())
	defer srv.Close()

	st, err := newTestClient(srv.URL).Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ON", st.State)
	assert.Equal(t, int32(1), cloud.logins.Load())
}

func TestAPIClientRefreshesOn401(t *testing.T) {
	cloud := &fakeCloud{}
	srv := httptest.NewServer(cloud.handler())
	defer srv.Close()
	c := newTestClient(srv.URL)

	_, err := c.Status(context.Background())
	require.NoError(t, err)

	// Server-side rotation invalidates the cached token.
	cloud.current.Store("rotated")

	id, err := c.SubmitReading(context.Background(), 3, 21.5, 40)
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)
	assert.Equal(t, int32(2), cloud.logins.Load())
	assert.Equal(t, "OK", cloud.posted["status"])
	assert.EqualValues(t, 3, cloud.posted["sensor_id"])
}

func TestAPIClientRetriesOnlyOnce(t *testing.T) {
	cloud := &fakeCloud{}
	cloud.reject.Store(true)
	srv := httptest.NewServer(cloud.handler())
	defer srv.Close()

	_, err := newTestClient(srv.URL).Status(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(2), cloud.logins.Load())
}

func TestAPIClientBadCredentials(t *testing.T) {
	srv := httptest.NewServer((&fakeCloud{}).handler())
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.cfg.Password = "wrong"
	_, err := c.Status(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}
