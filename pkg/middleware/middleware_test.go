package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"CityWatch/pkg/cache"
	constants "CityWatch/pkg/constant"
	"CityWatch/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, target string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSignVerify(t *testing.T) {
	r := gin.New()
	r.POST("/hook", SignVerifyMiddleware("s3cret"), func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	body := []byte(`{"a":1}`)
	now := strconv.FormatInt(time.Now().Unix(), 10)

	cases := []struct {
		name    string
		target  string
		headers map[string]string
		want    int
	}{
		{"missing signature", "/hook?timestamp=" + now, nil, http.StatusUnauthorized},
		{"missing timestamp", "/hook", map[string]string{"Signature": "x"}, http.StatusBadRequest},
		{"wrong signature", "/hook?timestamp=" + now, map[string]string{"Signature": "x"}, http.StatusUnauthorized},
		{"valid", "/hook?timestamp=" + now, map[string]string{"Signature": Sign("s3cret", http.MethodPost, "/hook", body, now)}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(r, http.MethodPost, tc.target, body, tc.headers)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}

	// 签名覆盖请求体
	w := serve(r, http.MethodPost, "/hook?timestamp="+now, []byte(`{"a":2}`),
		map[string]string{"Signature": Sign("s3cret", http.MethodPost, "/hook", body, now)})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSignVerifyRejectsOversizedBody(t *testing.T) {
	r := gin.New()
	r.POST("/hook", SignVerifyMiddleware("s3cret"), func(c *gin.Context) { c.Status(http.StatusOK) })
	body := bytes.Repeat([]byte("a"), SignatureMaxBody+1)
	now := strconv.FormatInt(time.Now().Unix(), 10)

	w := serve(r, http.MethodPost, "/hook?timestamp="+now, body,
		map[string]string{"Signature": Sign("s3cret", http.MethodPost, "/hook", body, now)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignVerifyWithoutSecret(t *testing.T) {
	r := gin.New()
	r.POST("/hook", SignVerifyMiddleware(""), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := serve(r, http.MethodPost, "/hook", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestIdempotencyReleasesKeyOnFailure(t *testing.T) {
	fail := true
	r := gin.New()
	store := NewCacheIdemStore(cache.NewGoCache(cache.LocalConfig{}))
	r.POST("/submit", IdempotencyMiddleware(IdempotencyConfig{Store: store, TTL: time.Minute}), func(c *gin.Context) {
		if fail {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusCreated)
	})
	key := map[string]string{"Idempotency-Key": "k1"}

	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/submit", nil, key).Code)
	fail = false
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/submit", nil, key).Code)
	assert.Equal(t, http.StatusConflict, serve(r, http.MethodPost, "/submit", nil, key).Code)
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/submit", nil, nil).Code)
}

func TestIdempotencyHashBody(t *testing.T) {
	r := gin.New()
	r.POST("/submit", IdempotencyMiddleware(IdempotencyConfig{HashBody: true}), func(c *gin.Context) { c.Status(http.StatusCreated) })

	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/submit", []byte("same"), nil).Code)
	assert.Equal(t, http.StatusConflict, serve(r, http.MethodPost, "/submit", []byte("same"), nil).Code)
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/submit", []byte("other"), nil).Code)
}

func TestRateLimiterPerRouteAndSkip(t *testing.T) {
	l := NewRateLimiter(RateLimiterConfig{
		Rate:          "100-M",
		PerRouteRates: map[string]string{"/login": "2-M"},
		SkipPaths:     []string{"/health"},
		AddHeaders:    true,
	}, nil)
	r := gin.New()
	r.Use(l.Middleware())
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.POST("/login", ok)
	r.GET("/items", ok)
	r.GET("/reports", ok)
	r.GET("/health", ok)

	for i := 0; i < 2; i++ {
		w := serve(r, http.MethodPost, "/login", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))
	}
	w := serve(r, http.MethodPost, "/login", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/items", nil, nil).Code)

	l.UpdateConfig(RateLimiterConfig{Rate: "1-M", Identifier: "ip+route", SkipPaths: []string{"/health"}})
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/reports", nil, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodGet, "/reports", nil, nil).Code)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health", nil, nil).Code)
	}
}

func TestRateLimiterBlacklist(t *testing.T) {
	l := NewRateLimiter(RateLimiterConfig{Rate: "100-M", BlacklistCIDRs: []string{"192.0.2.0/24"}}, nil)
	r := gin.New()
	r.Use(l.Middleware())
	r.GET("/items", func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodGet, "/items", nil, nil).Code)
}

func TestInvalidRates(t *testing.T) {
	cfg := RateLimiterConfig{Rate: "fast", PerRouteRates: map[string]string{"/a": "5-M", "/b": "soon"}}
	bad := cfg.InvalidRates()
	assert.Contains(t, bad, "rate")
	assert.Contains(t, bad, "/b")
	assert.NotContains(t, bad, "/a")
	assert.Empty(t, RateLimiterConfig{Rate: "10-S"}.InvalidRates())
}

func TestRequestIDPassThrough(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(constants.RequestIDField)) })

	w := serve(r, http.MethodGet, "/", nil, map[string]string{constants.RequestIDHeader: "abc"})
	assert.Equal(t, "abc", w.Body.String())
	assert.Equal(t, "abc", w.Header().Get(constants.RequestIDHeader))

	w = serve(r, http.MethodGet, "/", nil, nil)
	assert.Len(t, w.Body.String(), 36)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://portal.example.com/"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/", nil, map[string]string{"Origin": "https://portal.example.com"})
	assert.Equal(t, "https://portal.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	w = serve(r, http.MethodGet, "/", nil, map[string]string{"Origin": "https://evil.example.com"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	w = serve(r, http.MethodOptions, "/", nil, map[string]string{"Origin": "https://portal.example.com"})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestOperationLogRecordsWrites(t *testing.T) {
	db, err := util.InitDatabase("sqlite", "", nil)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&OperationLog{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	r := gin.New()
	r.Use(RequestID(), OperationLogMiddleware(db, NewGeoLocator("")))
	r.GET("/crimes", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/crimes", func(c *gin.Context) {
		c.Set(constants.UserIDField, "7")
		c.Status(http.StatusCreated)
	})

	serve(r, http.MethodGet, "/crimes", nil, nil)
	serve(r, http.MethodPost, "/crimes", nil, map[string]string{"User-Agent": "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) Mobile/15E148"})
	serve(r, http.MethodPost, "/missing", nil, nil)

	var logs []OperationLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "create", logs[0].Action)
	assert.Equal(t, "7", logs[0].UserID)
	assert.Equal(t, http.StatusCreated, logs[0].Status)
	assert.Equal(t, "mobile", logs[0].Device)
	assert.NotEmpty(t, logs[0].RequestID)
}
