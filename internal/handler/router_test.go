package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"recoveryhub/circles/internal/config"
	"recoveryhub/circles/internal/metrics"
	"recoveryhub/circles/internal/repository"
	"recoveryhub/circles/internal/service"
	"recoveryhub/circles/internal/testutil"
	"recoveryhub/circles/internal/validation"
	jwtpkg "recoveryhub/circles/pkg/jwt"
	"recoveryhub/circles/pkg/richtext"
)

const (
	testSigningKey = "test-signing-key"
	testIssuer     = "recoveryhub-test"
)

type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
}

type testServer struct {
	engine *gin.Engine
	jwt    *jwtpkg.Manager
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		Server:  config.ServerConfig{Mode: "test"},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Circles: config.DefaultCirclesConfig(),
		CORS:    config.CORSConfig{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET", "POST"}},
	}
	logger := zap.NewNop()
	db := testutil.NewDB(t)
	store := repository.NewPGStore(db)
	reg := prometheus.NewRegistry()
	rec := metrics.NewCollector(reg)
	manager := jwtpkg.NewManager(testSigningKey, testIssuer, time.Hour)

	engine := SetupRouter(cfg, logger, manager, reg,
		NewCircleHandler(service.NewCircleService(store, cfg.Circles, rec, logger)),
		NewMembershipHandler(service.NewMembershipService(store, rec, logger)),
		NewInviteHandler(service.NewInviteService(store, repository.NewMemoryStateStore(), cfg.Circles, rec, logger)),
		NewFeedHandler(service.NewFeedService(store, validation.NewValidator(richtext.New()), rec, logger)),
	)
	return &testServer{engine: engine, jwt: manager}
}

func (s *testServer) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := s.jwt.GenerateAccessToken(userID)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func decode(t *testing.T, raw json.RawMessage, into interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, into))
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	w, _ := srv.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	w, env := srv.do(t, http.MethodGet, "/api/v1/circles", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Code)

	w, _ = srv.do(t, http.MethodGet, "/api/v1/circles", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtpkg.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TokenType: jwtpkg.TokenTypeRefresh,
	})
	signed, err := refresh.SignedString([]byte(testSigningKey))
	require.NoError(t, err)
	w, env = srv.do(t, http.MethodGet, "/api/v1/circles", signed, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid token type", env.Message)
}

func TestCircleLifecycle(t *testing.T) {
	srv := newTestServer(t)
	owner := srv.token(t, uuid.New())

	w, env := srv.do(t, http.MethodPost, "/api/v1/circles", owner, map[string]interface{}{
		"name":       "Daily Gratitude",
		"visibility": "public",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID          string `json:"id"`
		Slug        string `json:"slug"`
		MemberCount int    `json:"member_count"`
	}
	decode(t, env.Data, &created)
	assert.Equal(t, "daily-gratitude", created.Slug)
	assert.Equal(t, 1, created.MemberCount)

	member := srv.token(t, uuid.New())
	w, _ = srv.do(t, http.MethodPost, "/api/v1/circles/daily-gratitude/join", member, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env = srv.do(t, http.MethodGet, "/api/v1/circles/"+created.ID, member, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view struct {
		MemberCount int    `json:"member_count"`
		MyRole      string `json:"my_role"`
	}
	decode(t, env.Data, &view)
	assert.Equal(t, 2, view.MemberCount)
	assert.Equal(t, "member", view.MyRole)

	w, env = srv.do(t, http.MethodGet, "/api/v1/me/circles", member, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []struct {
		Slug string `json:"slug"`
	}
	decode(t, env.Data, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, "daily-gratitude", mine[0].Slug)

	w, env = srv.do(t, http.MethodDelete, "/api/v1/circles/daily-gratitude", member, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "CIRCLE_ADMIN_REQUIRED", env.Code)

	w, _ = srv.do(t, http.MethodDelete, "/api/v1/circles/daily-gratitude", owner, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = srv.do(t, http.MethodGet, "/api/v1/circles/daily-gratitude", owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "CIRCLE_NOT_FOUND", env.Code)
}

func TestCreateCircle_ValidationEnvelope(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t, uuid.New())

	w, env := srv.do(t, http.MethodPost, "/api/v1/circles", token, map[string]interface{}{
		"name":        "x",
		"max_members": 500,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_FAILED", env.Code)
	var fields []validation.FieldError
	decode(t, env.Errors, &fields)
	require.NotEmpty(t, fields)
	assert.Equal(t, "name", fields[0].Field)

	w, env = srv.do(t, http.MethodGet, "/api/v1/circles/%20bad%20ref", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "CIRCLE_NOT_FOUND", env.Code)
}

func TestInviteFlow(t *testing.T) {
	srv := newTestServer(t)
	owner := srv.token(t, uuid.New())

	w, env := srv.do(t, http.MethodPost, "/api/v1/circles", owner, map[string]interface{}{"name": "Quiet Room"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var circle struct {
		Slug string `json:"slug"`
	}
	decode(t, env.Data, &circle)

	w, env = srv.do(t, http.MethodPost, "/api/v1/circles/"+circle.Slug+"/invites", owner, map[string]interface{}{"mode": "single-use"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var invite struct {
		ID    string `json:"id"`
		Token string `json:"token"`
		State string `json:"state"`
	}
	decode(t, env.Data, &invite)
	assert.Equal(t, "active", invite.State)

	guest := srv.token(t, uuid.New())
	w, env = srv.do(t, http.MethodGet, "/api/v1/invites/"+invite.Token, guest, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var preview struct {
		CircleName string `json:"circle_name"`
	}
	decode(t, env.Data, &preview)
	assert.Equal(t, "Quiet Room", preview.CircleName)

	w, _ = srv.do(t, http.MethodPost, "/api/v1/invites/"+invite.Token+"/redeem", guest, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = srv.do(t, http.MethodPost, "/api/v1/invites/"+invite.Token+"/redeem", srv.token(t, uuid.New()), nil)
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Equal(t, "INVITE_EXHAUSTED", env.Code)

	w, env = srv.do(t, http.MethodGet, "/api/v1/circles/"+circle.Slug+"/invites", guest, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "CIRCLE_ADMIN_REQUIRED", env.Code)
}

func TestFeedRoutes(t *testing.T) {
	srv := newTestServer(t)
	owner := srv.token(t, uuid.New())

	w, env := srv.do(t, http.MethodPost, "/api/v1/circles", owner, map[string]interface{}{"name": "Step Work"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var circle struct {
		Slug string `json:"slug"`
	}
	decode(t, env.Data, &circle)
	base := "/api/v1/circles/" + circle.Slug

	w, env = srv.do(t, http.MethodPost, base+"/posts", owner, map[string]interface{}{
		"type":     "step-experience",
		"content":  "<b>Step 4</b> done<script>x()</script>",
		"step_tag": 4,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var post struct {
		ID      string `json:"id"`
		Content string `json:"content"`
	}
	decode(t, env.Data, &post)
	assert.NotContains(t, post.Content, "script")

	w, _ = srv.do(t, http.MethodPost, base+"/posts/"+post.ID+"/comments", owner, map[string]interface{}{"content": "nice"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env = srv.do(t, http.MethodGet, base+"/posts?stepTag=4&limit=5", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Items []struct {
			CommentCount int `json:"comment_count"`
		} `json:"items"`
		Total int64 `json:"total"`
		Limit int   `json:"limit"`
	}
	decode(t, env.Data, &page)
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, 5, page.Limit)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 1, page.Items[0].CommentCount)

	w, env = srv.do(t, http.MethodGet, base+"/posts?stepTag=four", owner, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_FAILED", env.Code)

	outsider := srv.token(t, uuid.New())
	w, env = srv.do(t, http.MethodPost, base+"/posts", outsider, map[string]interface{}{"content": "hi"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "CIRCLE_ACCESS_DENIED", env.Code)

	w, env = srv.do(t, http.MethodGet, base+"/posts/not-an-id", owner, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", env.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	w, _ := srv.do(t, http.MethodPost, "/api/v1/circles", srv.token(t, uuid.New()), map[string]interface{}{"name": "Counted"})
	require.Equal(t, http.StatusCreated, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "circles_created_total 1")
}
