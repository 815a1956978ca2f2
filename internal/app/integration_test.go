package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/truecar-kr/truecar-backend/config"
	"github.com/truecar-kr/truecar-backend/internal/app/controller"
	"github.com/truecar-kr/truecar-backend/internal/app/repository"
	"github.com/truecar-kr/truecar-backend/internal/app/service"
	"github.com/truecar-kr/truecar-backend/internal/db"
	"github.com/truecar-kr/truecar-backend/internal/middleware"
	"github.com/truecar-kr/truecar-backend/internal/router"
	"github.com/truecar-kr/truecar-backend/internal/storage"
	"github.com/truecar-kr/truecar-backend/internal/websocket"
)

const (
	testSecret = "test-secret"
	adminEmail = "owner@truecar.kr"
)

type noopImageHost struct{}

func (noopImageHost) Upload(_ context.Context, key, _ string, _ []byte) (string, error) {
	return "https://cdn.example.com/" + key, nil
}

func (noopImageHost) PresignUpload(_ context.Context, filename, _, folder string) (*storage.PresignedURLResponse, error) {
	key := storage.NewObjectKey(folder, filename)
	return &storage.PresignedURLResponse{Key: key, FileURL: "https://cdn.example.com/" + key}, nil
}

type TestServer struct {
	Router *gin.Engine
	Hub    *websocket.Hub
}

func setupIntegrationTest(t *testing.T) *TestServer {
	gin.SetMode(gin.TestMode)

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	cfg := &config.Config{
		Server: config.ServerConfig{GinMode: gin.TestMode, Environment: "test"},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		Views:  config.ViewConfig{DedupWindow: 5 * time.Minute, SessionCookie: "viewer_session"},
		Admin:  config.AdminConfig{SignupEmails: []string{adminEmail}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := websocket.NewHub()
	go hub.Run(ctx)

	reviewRepo := repository.NewReviewRepository(testDB)
	gate := service.NewAdminGate(repository.NewAdminUserRepository(testDB))
	authService := service.NewAuthService(
		repository.NewAccountRepository(testDB),
		gate,
		cfg.Admin.SignupEmails,
		testSecret,
		15*time.Minute,
		7*24*time.Hour,
	)
	reviewService := service.NewReviewService(reviewRepo, gate, service.ReviewServiceConfig{})
	viewService := service.NewViewService(reviewRepo, service.ViewServiceConfig{
		DedupWindow: cfg.Views.DedupWindow,
		Publisher:   hub,
	})
	uploadService := service.NewUploadService(noopImageHost{}, storage.NewImageProcessor(), gate)

	r := router.NewRouter(
		controller.NewAuthController(authService, gate),
		controller.NewReviewController(reviewService, viewService, hub, nil),
		controller.NewUploadController(uploadService, 0),
		middleware.NewAuthMiddleware(testSecret),
		gate,
		cfg,
	)

	return &TestServer{Router: r.Setup(), Hub: hub}
}

func (s *TestServer) request(t *testing.T, method, path, token string, body interface{}, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	return w
}

func (s *TestServer) signup(t *testing.T, email string) string {
	t.Helper()
	w := s.request(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":    email,
		"password": "password123",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Tokens struct {
			AccessToken string `json:"access_token"`
		} `json:"tokens"`
		IsAdmin bool `json:"is_admin"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Tokens.AccessToken
}

func TestIntegration_ReviewLifecycle(t *testing.T) {
	server := setupIntegrationTest(t)
	adminToken := server.signup(t, adminEmail)
	memberToken := server.signup(t, "viewer@example.com")

	// 1. 관리자 리뷰 등록
	w := server.request(t, http.MethodPost, "/api/v1/admin/reviews", adminToken, map[string]interface{}{
		"title":   "첫 차 구매 후기",
		"content": "상담이 친절했습니다.\n차 상태도 좋아요.",
		"author":  "김고객",
		"rating":  5,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	// 2. 일반 회원은 관리자 API 거부 + 로그인 경로 안내
	w = server.request(t, http.MethodPost, "/api/v1/admin/reviews", memberToken, map[string]interface{}{
		"title": "x", "content": "y",
	}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "/admin/login")

	w = server.request(t, http.MethodGet, "/api/v1/admin/reviews/stats", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// 3. 목록 노출
	w = server.request(t, http.MethodGet, "/api/v1/reviews", "", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.ID)

	// 4. 상세 조회: 쿠키 발급 후 같은 세션은 한 번만 카운트
	w = server.request(t, http.MethodGet, "/api/v1/reviews/"+created.ID, "", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "viewer_session", cookies[0].Name)
	assert.Contains(t, w.Body.String(), `"views":1`)

	header := http.Header{"Cookie": []string{cookies[0].Name + "=" + cookies[0].Value}}
	w = server.request(t, http.MethodGet, "/api/v1/reviews/"+created.ID, "", nil, header)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"views":1`)

	// 로그인한 관리자의 공개 상세 조회는 카운트 제외
	w = server.request(t, http.MethodGet, "/api/v1/reviews/"+created.ID, adminToken, nil, http.Header{
		middleware.ViewerSessionHeader: []string{"admin-preview"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"views":1`)

	// 5. 관리자 통계
	w = server.request(t, http.MethodGet, "/api/v1/admin/reviews/stats", adminToken, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_views":1`)

	// 6. 삭제 후 목록에서 제외
	w = server.request(t, http.MethodDelete, "/api/v1/admin/reviews/"+created.ID, adminToken, nil, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = server.request(t, http.MethodGet, "/api/v1/reviews", "", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":[],"has_more":false}`, w.Body.String())
}

func TestIntegration_LiveViews(t *testing.T) {
	server := setupIntegrationTest(t)
	adminToken := server.signup(t, adminEmail)

	w := server.request(t, http.MethodPost, "/api/v1/admin/reviews", adminToken, map[string]interface{}{
		"title": "실시간", "content": "본문",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	httpServer := httptest.NewServer(server.Router)
	defer httpServer.Close()

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/api/v1/reviews/" + created.ID + "/live"
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return server.Hub.Viewers(created.ID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	w = server.request(t, http.MethodGet, "/api/v1/reviews/"+created.ID, "", nil, http.Header{
		middleware.ViewerSessionHeader: []string{"live-session"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event websocket.ViewEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "view", event.Type)
	assert.Equal(t, created.ID, event.ReviewID)
	assert.EqualValues(t, 1, event.Delta)

	t.Run("unknown review is not upgraded", func(t *testing.T) {
		_, resp, err := gorillaws.DefaultDialer.Dial(
			"ws"+strings.TrimPrefix(httpServer.URL, "http")+"/api/v1/reviews/missing/live", nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestIntegration_HealthAndMetrics(t *testing.T) {
	server := setupIntegrationTest(t)

	w := server.request(t, http.MethodGet, "/health", "", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = server.request(t, http.MethodGet, "/metrics", "", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "truecar_http_requests_total")
}
