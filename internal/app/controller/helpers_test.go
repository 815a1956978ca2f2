package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/truecar-kr/truecar-backend/internal/app/model"
	"github.com/truecar-kr/truecar-backend/internal/app/repository"
	"github.com/truecar-kr/truecar-backend/internal/app/service"
	"github.com/truecar-kr/truecar-backend/internal/db"
	"github.com/truecar-kr/truecar-backend/internal/middleware"
	"github.com/truecar-kr/truecar-backend/internal/storage"
	"github.com/truecar-kr/truecar-backend/internal/websocket"
	"gorm.io/gorm"
)

const (
	testSecret    = "test-secret"
	adminEmail    = "admin@truecar.kr"
	customerEmail = "customer@example.com"
	testPassword  = "password123"
)

// fakeImageHost records uploads instead of talking to S3.
type fakeImageHost struct {
	uploads map[string][]byte
	err     error
}

func (h *fakeImageHost) Upload(_ context.Context, key, _ string, body []byte) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	h.uploads[key] = body
	return "https://cdn.example.com/" + key, nil
}

func (h *fakeImageHost) PresignUpload(_ context.Context, filename, contentType, folder string) (*storage.PresignedURLResponse, error) {
	key := storage.NewObjectKey(folder, filename)
	return &storage.PresignedURLResponse{
		UploadURL: "https://bucket.example.com/" + key + "?signed",
		FileURL:   "https://cdn.example.com/" + key,
		Key:       key,
	}, nil
}

type controllerEnv struct {
	router      *gin.Engine
	db          *gorm.DB
	reviewRepo  repository.ReviewRepository
	host        *fakeImageHost
	adminToken  string
	memberToken string
}

func setupControllerTest(t *testing.T) *controllerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	reviewRepo := repository.NewReviewRepository(testDB)
	gate := service.NewAdminGate(repository.NewAdminUserRepository(testDB))
	authService := service.NewAuthService(
		repository.NewAccountRepository(testDB),
		gate,
		[]string{adminEmail},
		testSecret,
		15*time.Minute,
		7*24*time.Hour,
	)
	reviewService := service.NewReviewService(reviewRepo, gate, service.ReviewServiceConfig{})
	viewService := service.NewViewService(reviewRepo, service.ViewServiceConfig{})
	host := &fakeImageHost{uploads: make(map[string][]byte)}
	uploadService := service.NewUploadService(host, storage.NewImageProcessor(), gate)

	authCtrl := NewAuthController(authService, gate)
	reviewCtrl := NewReviewController(reviewService, viewService, websocket.NewHub(), nil)
	uploadCtrl := NewUploadController(uploadService, 0)
	authMiddleware := middleware.NewAuthMiddleware(testSecret)

	router := gin.New()
	router.POST("/auth/signup", authCtrl.Signup)
	router.POST("/auth/login", authCtrl.Login)
	router.POST("/auth/refresh", authCtrl.RefreshToken)
	router.GET("/auth/me", authMiddleware.Authenticate(), authCtrl.GetMe)

	reviews := router.Group("/reviews", middleware.ViewerSession("viewer_session", false))
	reviews.GET("", reviewCtrl.ListReviews)
	reviews.GET("/popular", reviewCtrl.ListPopularReviews)
	reviews.GET("/vehicle/:type", reviewCtrl.ListReviewsByVehicleType)
	reviews.GET("/:id", authMiddleware.OptionalAuthenticate(gate), reviewCtrl.GetReview)

	// 서비스 단 권한 검사를 확인하기 위해 RequireAdmin 미들웨어 없이 구성
	admin := router.Group("/admin", authMiddleware.Authenticate())
	admin.POST("/reviews", reviewCtrl.CreateReview)
	admin.GET("/reviews/stats", reviewCtrl.GetViewStats)
	admin.GET("/reviews/export", reviewCtrl.ExportReviews)
	admin.GET("/reviews/:id", reviewCtrl.AdminGetReview)
	admin.PUT("/reviews/:id", reviewCtrl.UpdateReview)
	admin.DELETE("/reviews/:id", reviewCtrl.DeleteReview)
	admin.POST("/uploads/image", uploadCtrl.UploadReviewImage)
	admin.POST("/uploads/presigned-url", uploadCtrl.GeneratePresignedURL)

	env := &controllerEnv{
		router:     router,
		db:         testDB,
		reviewRepo: reviewRepo,
		host:       host,
	}
	env.adminToken = env.signup(t, adminEmail)
	env.memberToken = env.signup(t, customerEmail)
	return env
}

func (e *controllerEnv) signup(t *testing.T, email string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"email":    email,
		"password": testPassword,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Tokens struct {
			AccessToken string `json:"access_token"`
		} `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Tokens.AccessToken)
	return resp.Tokens.AccessToken
}

func (e *controllerEnv) do(t *testing.T, method, path, token string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *controllerEnv) seedReview(t *testing.T, review model.Review) string {
	t.Helper()
	require.NoError(t, e.reviewRepo.Create(context.Background(), &review))
	return review.ID
}

func (e *controllerEnv) views(t *testing.T, id string) int64 {
	t.Helper()
	review, err := e.reviewRepo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return review.Views
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}
