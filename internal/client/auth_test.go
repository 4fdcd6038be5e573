package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/raphaelgruber/kbchat/internal/client"
	"github.com/raphaelgruber/kbchat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *client.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return client.New(srv.URL)
}

func TestLoginAndFetchIdentity(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "a@b.com", r.PostForm.Get("username"))
			assert.Equal(t, "pw", r.PostForm.Get("password"))
			_, _ = w.Write([]byte(`{"access_token":"T","token_type":"bearer"}`))
		case "/api/auth/me":
			assert.Equal(t, "Bearer T", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"id":1,"email":"a@b.com","username":"a"}`))
		default:
			http.NotFound(w, r)
		}
	})

	ctx := context.Background()
	cred, err := c.ExchangeCredentials(ctx, "a@b.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "T", cred.Token())

	identity, err := c.FetchIdentity(ctx, cred)
	require.NoError(t, err)
	assert.Equal(t, models.Identity{ID: "1", Email: "a@b.com", DisplayName: "a"}, identity)

	snap := c.Metrics().Snapshot()
	require.NotNil(t, snap.AuthLogin)
	require.NotNil(t, snap.AuthIdentity)
	assert.Equal(t, int64(1), snap.AuthLogin.Count)
	assert.Equal(t, int64(1), snap.AuthIdentity.Count)
}

func TestLoginErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantMsg    string
		wantStatus int
	}{
		{
			name:       "server detail",
			status:     http.StatusUnauthorized,
			body:       `{"detail":"Incorrect email or password"}`,
			wantMsg:    "Incorrect email or password",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "validation detail list",
			status:     http.StatusUnprocessableEntity,
			body:       `{"detail":[{"msg":"field required"},{"msg":"value is not a valid email"}]}`,
			wantMsg:    "field required; value is not a valid email",
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "no body",
			status:     http.StatusInternalServerError,
			body:       ``,
			wantMsg:    "login failed: Internal Server Error",
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "html body",
			status:     http.StatusBadGateway,
			body:       `<html>bad gateway</html>`,
			wantMsg:    "login failed: Bad Gateway",
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Login(context.Background(), "a@b.com", "pw")
			require.Error(t, err)
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.Equal(t, tt.wantStatus, client.StatusCode(err))

			snap := c.Metrics().Snapshot().AuthLogin
			require.NotNil(t, snap)
			assert.Equal(t, int64(1), snap.Failures)
		})
	}
}

func TestLoginMissingToken(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
	})

	_, err := c.Login(context.Background(), "a@b.com", "pw")
	assert.ErrorIs(t, err, client.ErrMalformedResponse)
}

func TestMeMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `nope`},
		{name: "missing id", body: `{"email":"a@b.com","username":"a"}`},
		{name: "missing email and username", body: `{"id":"u-1"}`},
		{name: "id is an object", body: `{"id":{"x":1},"email":"a@b.com"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Me(context.Background(), "T")
			assert.ErrorIs(t, err, client.ErrMalformedResponse)
		})
	}
}

func TestUserIDDecoding(t *testing.T) {
	tests := []struct {
		input   string
		want    client.UserID
		wantErr bool
	}{
		{input: `"abc-123"`, want: "abc-123"},
		{input: `42`, want: "42"},
		{input: `null`, want: ""},
		{input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var id client.UserID
			err := json.Unmarshal([]byte(tt.input), &id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestUserResponseIdentityFallbacks(t *testing.T) {
	tests := []struct {
		name string
		user client.UserResponse
		want models.Identity
	}{
		{
			name: "all fields",
			user: client.UserResponse{ID: "1", Email: "a@b.com", Username: "a"},
			want: models.Identity{ID: "1", Email: "a@b.com", DisplayName: "a"},
		},
		{
			name: "no username",
			user: client.UserResponse{ID: "1", Email: "a@b.com"},
			want: models.Identity{ID: "1", Email: "a@b.com", DisplayName: "a@b.com"},
		},
		{
			name: "no email",
			user: client.UserResponse{ID: "1", Username: "a"},
			want: models.Identity{ID: "1", Email: "a", DisplayName: "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.Identity())
		})
	}
}
