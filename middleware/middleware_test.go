package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sammyalade/Jumia-backend/auth"
	"github.com/Sammyalade/Jumia-backend/cache"
	"github.com/Sammyalade/Jumia-backend/database/databasetest"
	"github.com/Sammyalade/Jumia-backend/models"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func bearer(t *testing.T, userID uint, roles ...models.Role) string {
	t.Helper()
	token, err := auth.IssueToken(secret, userID, models.NewRoles(roles...), time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestValidateToken(t *testing.T) {
	r := gin.New()
	r.GET("/me", ValidateToken(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": UserID(c), "seller": Roles(c).Has(models.RoleSeller)})
	})

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid", bearer(t, 42, models.RoleBuyer, models.RoleSeller), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", bearer(t, 42, models.RoleBuyer, models.RoleSeller))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.JSONEq(t, `{"id":42,"seller":true}`, w.Body.String())
}

func TestRequireRole(t *testing.T) {
	r := gin.New()
	r.PUT("/status", ValidateToken(secret), RequireRole(models.RoleSeller, models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPut, "/status", nil)
	req.Header.Set("Authorization", bearer(t, 1, models.RoleBuyer))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodPut, "/status", nil)
	req.Header.Set("Authorization", bearer(t, 1, models.RoleBuyer, models.RoleAdmin))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequireBuyerCreatesBuyerOnce(t *testing.T) {
	db := databasetest.Open(t)
	user := models.User{Email: "new@example.com", Roles: models.NewRoles(models.RoleBuyer)}
	require.NoError(t, db.Create(&user).Error)

	r := gin.New()
	r.GET("/cart", ValidateToken(secret), RequireBuyer(db), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"buyerId": BuyerID(c)})
	})

	var first string
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		req.Header.Set("Authorization", bearer(t, user.ID, models.RoleBuyer))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		if first == "" {
			first = w.Body.String()
		}
		assert.Equal(t, first, w.Body.String())
	}

	var count int64
	db.Model(&models.Buyer{}).Where("user_id = ?", user.ID).Count(&count)
	assert.EqualValues(t, 1, count)

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", bearer(t, 999, models.RoleBuyer))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestValidateAPIKey(t *testing.T) {
	r := gin.New()
	r.GET("/admin", ValidateAPIKey("k3y"), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req.Header.Set("X-API-KEY", "k3y")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookAuth(t *testing.T) {
	r := gin.New()
	r.POST("/hook", WebhookAuth("whsec"), func(c *gin.Context) {
		body, _ := c.GetRawData()
		c.String(http.StatusOK, string(body))
	})

	payload := []byte(`{"id":"WH-1"}`)

	req := httptest.NewRequest(http.MethodPost, "/hook", bytes.NewReader(payload))
	req.Header.Set(SignatureHeader, "deadbeef")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/hook", bytes.NewReader(payload))
	req.Header.Set(SignatureHeader, Sign("whsec", payload))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(payload), w.Body.String())
}

func TestWebhookAuthWithoutSecretRejects(t *testing.T) {
	called := false
	r := gin.New()
	r.POST("/hook", WebhookAuth(""), func(c *gin.Context) { called = true })

	payload := []byte(`{"id":"WH-2"}`)
	req := httptest.NewRequest(http.MethodPost, "/hook", bytes.NewReader(payload))
	req.Header.Set(SignatureHeader, Sign("", payload))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, called)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := cache.NewRedisCache(client, "jumia")
	ttl := 24 * time.Hour
	key := "jumia:idempotency:7:/order/placeOrder:abc"

	calls := 0
	r := gin.New()
	r.POST("/order/placeOrder",
		func(c *gin.Context) { c.Set(ContextUserID, uint(7)); c.Next() },
		Idempotency(c, ttl),
		func(c *gin.Context) {
			calls++
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})

	mock.ExpectSetNX(key, "in_progress", ttl).SetVal(true)
	mock.ExpectSet(key, `{"status":200,"body":{"ok":true}}`, ttl).SetVal("OK")

	req := httptest.NewRequest(http.MethodPost, "/order/placeOrder", nil)
	req.Header.Set(IdempotencyHeader, "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	mock.ExpectSetNX(key, "in_progress", ttl).SetVal(false)
	mock.ExpectGet(key).SetVal(`{"status":200,"body":{"ok":true}}`)

	req = httptest.NewRequest(http.MethodPost, "/order/placeOrder", nil)
	req.Header.Set(IdempotencyHeader, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	assert.Equal(t, "true", w.Header().Get("Idempotent-Replayed"))

	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyInProgress(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := cache.NewRedisCache(client, "jumia")
	ttl := time.Hour
	key := "jumia:idempotency:0:/pay:k"

	r := gin.New()
	r.POST("/pay", Idempotency(c, ttl), func(c *gin.Context) { c.Status(http.StatusOK) })

	mock.ExpectSetNX(key, "in_progress", ttl).SetVal(false)
	mock.ExpectGet(key).SetVal("in_progress")

	req := httptest.NewRequest(http.MethodPost, "/pay", nil)
	req.Header.Set(IdempotencyHeader, "k")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyReleasesKeyOnPanic(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := cache.NewRedisCache(client, "jumia")
	ttl := time.Hour
	key := "jumia:idempotency:3:/order/placeOrder:boom"

	r := gin.New()
	r.Use(gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, _ any) {
		c.AbortWithStatus(http.StatusInternalServerError)
	}))
	r.POST("/order/placeOrder",
		func(c *gin.Context) { c.Set(ContextUserID, uint(3)); c.Next() },
		Idempotency(c, ttl),
		func(c *gin.Context) { panic("handler bug") })

	mock.ExpectSetNX(key, "in_progress", ttl).SetVal(true)
	mock.ExpectDel(key).SetVal(1)

	req := httptest.NewRequest(http.MethodPost, "/order/placeOrder", nil)
	req.Header.Set(IdempotencyHeader, "boom")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
