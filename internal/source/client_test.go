package source

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlatform serves the token, profile, posts and video endpoints.
func fakePlatform(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("grant_type") != "password" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch r.Form.Get("password") {
		case "secret":
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`)
		case "slow-down":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"error":"invalid_grant"}`)
		}
	})
	mux.HandleFunc("GET /v1/me", func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer tok-1":
			json.NewEncoder(w).Encode(map[string]string{"username": "reviewer"})
		case "Bearer needs-2fa":
			w.WriteHeader(http.StatusForbidden)
			io.WriteString(w, `{"challenge":"two_factor"}`)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	})
	mux.HandleFunc("GET /v1/users/{handle}/posts", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("handle") != "creator" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.URL.Query().Get("cursor") {
		case "":
			json.NewEncoder(w).Encode(postsPage{
				Posts: []Post{
					{ID: "1", Shortcode: "AAA", Caption: "first", IsVideo: true, VideoURL: "http://" + r.Host + "/media/AAA.mp4"},
					{ID: "2", Shortcode: "BBB", Caption: "photo"},
				},
				NextCursor: "page2",
			})
		case "page2":
			json.NewEncoder(w).Encode(postsPage{
				Posts: []Post{{ID: "3", Caption: "third", IsVideo: true, VideoURL: "http://" + r.Host + "/media/3.mp4"}},
			})
		}
	})
	mux.HandleFunc("GET /media/{name}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, "video-bytes:"+r.PathValue("name"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLogin_PasswordGrant(t *testing.T) {
	srv := fakePlatform(t)
	c := NewClient(srv.URL, WithClientCredentials("app", ""))

	sess, err := c.Login(context.Background(), Credentials{Username: "reviewer", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "reviewer", sess.Username)
	assert.NotNil(t, sess.Client)
}

func TestLogin_StaticToken(t *testing.T) {
	srv := fakePlatform(t)
	c := NewClient(srv.URL)

	sess, err := c.Login(context.Background(), Credentials{Token: "tok-1"})
	require.NoError(t, err)
	assert.Equal(t, "reviewer", sess.Username)
}

func TestLogin_Failures(t *testing.T) {
	srv := fakePlatform(t)
	c := NewClient(srv.URL)

	tests := []struct {
		name  string
		creds Credentials
		want  error
	}{
		{"wrong password", Credentials{Username: "reviewer", Password: "nope"}, ErrAuthFailed},
		{"rate limited", Credentials{Username: "reviewer", Password: "slow-down"}, ErrRateLimited},
		{"challenge", Credentials{Token: "needs-2fa"}, ErrChallenge},
		{"revoked token", Credentials{Token: "revoked"}, ErrAuthFailed},
		{"missing password", Credentials{Username: "reviewer"}, ErrAuthFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := c.Login(context.Background(), tt.creds)
			assert.Nil(t, sess)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPosts_FollowsCursor(t *testing.T) {
	srv := fakePlatform(t)
	c := NewClient(srv.URL)
	sess, err := c.Login(context.Background(), Credentials{Token: "tok-1"})
	require.NoError(t, err)

	var keys []string
	for p, err := range c.Posts(context.Background(), sess, "creator") {
		require.NoError(t, err)
		keys = append(keys, p.Key())
	}
	assert.Equal(t, []string{"AAA", "BBB", "3"}, keys)
}

func TestPosts_StopsEarly(t *testing.T) {
	srv := fakePlatform(t)
	c := NewClient(srv.URL)
	sess, err := c.Login(context.Background(), Credentials{Token: "tok-1"})
	require.NoError(t, err)

	n := 0
	for _, err := range c.Posts(context.Background(), sess, "creator") {
		require.NoError(t, err)
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestPosts_ProfileNotFound(t *testing.T) {
	srv := fakePlatform(t)
	c := NewClient(srv.URL)
	sess, err := c.Login(context.Background(), Credentials{Token: "tok-1"})
	require.NoError(t, err)

	var gotErr error
	for _, err := range c.Posts(context.Background(), sess, "nobody") {
		gotErr = err
	}
	assert.ErrorIs(t, gotErr, ErrProfileNotFound)
}

func TestOpenVideo(t *testing.T) {
	srv := fakePlatform(t)
	c := NewClient(srv.URL)
	sess, err := c.Login(context.Background(), Credentials{Token: "tok-1"})
	require.NoError(t, err)

	rc, err := c.OpenVideo(context.Background(), sess, Post{Shortcode: "AAA", VideoURL: srv.URL + "/media/AAA.mp4"})
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes:AAA.mp4", string(data))

	_, err = c.OpenVideo(context.Background(), sess, Post{Shortcode: "NOURL"})
	assert.Error(t, err)
}

func TestOpenVideo_OtherHostGetsNoToken(t *testing.T) {
	srv := fakePlatform(t)
	var gotAuth []string
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		io.WriteString(w, "cdn-bytes")
	}))
	t.Cleanup(cdn.Close)

	c := NewClient(srv.URL)
	sess, err := c.Login(context.Background(), Credentials{Token: "tok-1"})
	require.NoError(t, err)

	rc, err := c.OpenVideo(context.Background(), sess, Post{Shortcode: "CDN", VideoURL: cdn.URL + "/v/CDN.mp4"})
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "cdn-bytes", string(data))
	assert.Equal(t, []string{""}, gotAuth)

	// The platform host still requires the token, and gets it.
	rc, err = c.OpenVideo(context.Background(), sess, Post{Shortcode: "AAA", VideoURL: srv.URL + "/media/AAA.mp4"})
	require.NoError(t, err)
	rc.Close()
}

func TestPostKey(t *testing.T) {
	assert.Equal(t, "SC", Post{ID: "1", Shortcode: "SC"}.Key())
	assert.Equal(t, "1", Post{ID: "1"}.Key())
}
