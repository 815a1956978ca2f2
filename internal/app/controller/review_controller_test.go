package controller

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/truecar-kr/truecar-backend/internal/app/model"
	"github.com/truecar-kr/truecar-backend/internal/middleware"
	"github.com/truecar-kr/truecar-backend/internal/sheet"
)

func TestReviewController_ListReviews(t *testing.T) {
	env := setupControllerTest(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		env.seedReview(t, model.Review{
			Title:     fmt.Sprintf("review %d", i),
			Content:   "본문",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}

	w := env.do(t, http.MethodGet, "/reviews?page_size=3", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decode(t, w)
	items := first["items"].([]interface{})
	require.Len(t, items, 3)
	assert.Equal(t, "review 4", items[0].(map[string]interface{})["title"])
	assert.Equal(t, true, first["has_more"])

	cursor := first["next_cursor"].(string)
	w = env.do(t, http.MethodGet, "/reviews?page_size=3&cursor="+cursor, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	second := decode(t, w)
	assert.Len(t, second["items"].([]interface{}), 2)
	assert.Equal(t, false, second["has_more"])

	t.Run("bad page size", func(t *testing.T) {
		for _, q := range []string{"abc", "0", "101"} {
			w := env.do(t, http.MethodGet, "/reviews?page_size="+q, "", nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, q)
		}
	})

	t.Run("bad cursor", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/reviews?cursor=not-a-cursor", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestReviewController_ListReviews_Empty(t *testing.T) {
	env := setupControllerTest(t)

	w := env.do(t, http.MethodGet, "/reviews", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":[],"has_more":false}`, w.Body.String())
}

func TestReviewController_GetReview(t *testing.T) {
	env := setupControllerTest(t)
	id := env.seedReview(t, model.Review{Title: "좋은 차", Content: "첫 줄\n\n둘째 줄"})

	t.Run("detail counts one view per session", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/reviews/"+id, "", nil, middleware.ViewerSessionHeader, "s1")
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.EqualValues(t, 1, body["views"])
		assert.Equal(t, model.AnonymousAuthor, body["display_author"])
		assert.Equal(t, []interface{}{"첫 줄", "둘째 줄"}, body["paragraphs"])

		w = env.do(t, http.MethodGet, "/reviews/"+id, "", nil, middleware.ViewerSessionHeader, "s1")
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 1, decode(t, w)["views"])

		w = env.do(t, http.MethodGet, "/reviews/"+id, "", nil, middleware.ViewerSessionHeader, "s2")
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 2, decode(t, w)["views"])
	})

	t.Run("unknown id", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/reviews/does-not-exist", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "REVIEW_NOT_FOUND", decode(t, w)["error"])
	})

	t.Run("admin load does not count", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/admin/reviews/"+id, env.adminToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 2, decode(t, w)["views"])
	})

	t.Run("signed-in admin on public detail does not count", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/reviews/"+id, env.adminToken, nil, middleware.ViewerSessionHeader, "admin-s")
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 2, decode(t, w)["views"])
		assert.EqualValues(t, 2, env.views(t, id))
	})

	t.Run("signed-in member still counts", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/reviews/"+id, env.memberToken, nil, middleware.ViewerSessionHeader, "member-s")
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 3, decode(t, w)["views"])
	})
}

func TestReviewController_PopularAndVehicleType(t *testing.T) {
	env := setupControllerTest(t)
	suv := env.seedReview(t, model.Review{Title: "suv", Content: "c", OrderDetail: model.OrderDetail{VehicleType: "SUV"}})
	env.seedReview(t, model.Review{Title: "sedan", Content: "c", OrderDetail: model.OrderDetail{VehicleType: "Sedan"}})
	require.NoError(t, env.reviewRepo.IncrementViews(context.Background(), suv, time.Now()))

	w := env.do(t, http.MethodGet, "/reviews/popular?limit=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode(t, w)["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "suv", items[0].(map[string]interface{})["title"])

	w = env.do(t, http.MethodGet, "/reviews/vehicle/Sedan", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items = decode(t, w)["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "sedan", items[0].(map[string]interface{})["title"])
}

func TestReviewController_AdminMutations(t *testing.T) {
	env := setupControllerTest(t)

	w := env.do(t, http.MethodPost, "/admin/reviews", env.adminToken, map[string]interface{}{
		"title":   "신차 같은 중고차",
		"content": "만족합니다",
		"rating":  5,
		"order_detail": map[string]string{
			"vehicle_type": "SUV",
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(t, w)["id"].(string)
	require.NotEmpty(t, id)

	t.Run("non-admin is redirected to login", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/admin/reviews", env.memberToken, map[string]interface{}{
			"title": "x", "content": "y",
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
		body := decode(t, w)
		assert.Equal(t, "AUTHZ_ADMIN_ONLY", body["error"])
		assert.Equal(t, "/admin/login", body["redirect"])
	})

	t.Run("validation errors", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/admin/reviews", env.adminToken, map[string]interface{}{
			"title": "", "content": "y", "rating": 9,
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		fields := decode(t, w)["fields"].(map[string]interface{})
		assert.Contains(t, fields, "title")
		assert.Contains(t, fields, "rating")
	})

	t.Run("update", func(t *testing.T) {
		w := env.do(t, http.MethodPut, "/admin/reviews/"+id, env.adminToken, map[string]interface{}{
			"title": "수정된 제목",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decode(t, w)
		assert.Equal(t, "수정된 제목", body["title"])
		assert.Equal(t, "만족합니다", body["content"])

		w = env.do(t, http.MethodPut, "/admin/reviews/missing", env.adminToken, map[string]interface{}{
			"title": "t",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("empty update is rejected", func(t *testing.T) {
		w := env.do(t, http.MethodPut, "/admin/reviews/"+id, env.adminToken, map[string]interface{}{})
		require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		fields := decode(t, w)["fields"].(map[string]interface{})
		assert.Contains(t, fields, "body")
	})

	t.Run("stats", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/admin/reviews/stats", env.adminToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 1, decode(t, w)["review_count"])
	})

	t.Run("export", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/admin/reviews/export", env.adminToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")

		result, err := sheet.ReadReviews(bytes.NewReader(w.Body.Bytes()))
		require.NoError(t, err)
		require.Len(t, result.Reviews, 1)
		assert.Equal(t, id, result.Reviews[0].ID)

		w = env.do(t, http.MethodGet, "/admin/reviews/export", env.memberToken, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("soft delete hides from list", func(t *testing.T) {
		w := env.do(t, http.MethodDelete, "/admin/reviews/"+id, env.adminToken, nil)
		require.Equal(t, http.StatusNoContent, w.Code)

		w = env.do(t, http.MethodGet, "/reviews", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, decode(t, w)["items"])

		w = env.do(t, http.MethodGet, "/admin/reviews/"+id, env.adminToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, string(model.ReviewStatusInactive), decode(t, w)["status"])
	})
}
