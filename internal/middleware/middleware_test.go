package middleware

import (
    "context"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/adas-events/internal/config"
    "github.com/iliyamo/adas-events/internal/utils"
)

const secret = "test-secret"

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
    t.Helper()
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    t.Cleanup(func() { _ = rdb.Close() })
    return mr, rdb
}

func whoami(c echo.Context) error {
    id := IdentityFrom(c)
    return c.String(http.StatusOK, id.UserID+"|"+id.Email+"|"+id.Name)
}

func TestJWTAuth(t *testing.T) {
    t.Parallel()

    e := echo.New()
    e.GET("/me", whoami, JWTAuth(secret))
    good, _ := utils.NewAccessToken(secret, "user-1", "ada@example.com", "Ada", time.Hour)
    forged, _ := utils.NewAccessToken("other", "user-1", "", "", time.Hour)
    expired, _ := utils.NewAccessToken(secret, "user-1", "", "", -time.Minute)

    cases := []struct {
        name   string
        header string
        status int
        body   string
    }{
        {"valid", "Bearer " + good.Token, http.StatusOK, "user-1|ada@example.com|Ada"},
        {"missing", "", http.StatusUnauthorized, ""},
        {"wrong secret", "Bearer " + forged.Token, http.StatusUnauthorized, ""},
        {"expired", "Bearer " + expired.Token, http.StatusUnauthorized, ""},
        {"basic auth", "Basic Zm9vOmJhcg==", http.StatusUnauthorized, ""},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            req := httptest.NewRequest(http.MethodGet, "/me", nil)
            if tc.header != "" {
                req.Header.Set("Authorization", tc.header)
            }
            rec := httptest.NewRecorder()
            e.ServeHTTP(rec, req)
            if rec.Code != tc.status {
                t.Fatalf("status = %d, want %d", rec.Code, tc.status)
            }
            if tc.body != "" && rec.Body.String() != tc.body {
                t.Fatalf("body = %q", rec.Body.String())
            }
        })
    }
}

func TestOptionalAuthAndQueryToken(t *testing.T) {
    t.Parallel()

    e := echo.New()
    e.GET("/me", whoami, OptionalAuth(secret))
    tok, _ := utils.NewAccessToken(secret, "user-2", "", "", time.Hour)

    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
    if rec.Code != http.StatusOK || rec.Body.String() != "||" {
        t.Fatalf("anonymous = %d %q", rec.Code, rec.Body.String())
    }

    rec = httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me?access_token="+tok.Token, nil))
    if !strings.HasPrefix(rec.Body.String(), "user-2|") {
        t.Fatalf("query token = %q", rec.Body.String())
    }

    req := httptest.NewRequest(http.MethodGet, "/me", nil)
    req.Header.Set("Authorization", "Bearer garbage")
    rec = httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    if rec.Code != http.StatusOK || rec.Body.String() != "||" {
        t.Fatalf("bad token on optional route = %d %q", rec.Code, rec.Body.String())
    }
}

func TestTokenBucketBlocksAfterCapacity(t *testing.T) {
    t.Parallel()

    _, rdb := newRedis(t)
    cfg := config.RateLimitConfig{
        Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour, TTL: time.Hour,
        KeyStrategy: "ip", Prefix: "test:rl",
    }
    e := echo.New()
    e.POST("/pay", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, NewTokenBucket(cfg, rdb, nil))

    codes := make([]int, 0, 3)
    for i := 0; i < 3; i++ {
        rec := httptest.NewRecorder()
        e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pay", nil))
        codes = append(codes, rec.Code)
        if i == 2 && rec.Header().Get("Retry-After") == "" {
            t.Fatal("blocked response has no Retry-After")
        }
    }
    if codes[0] != http.StatusNoContent || codes[1] != http.StatusNoContent || codes[2] != http.StatusTooManyRequests {
        t.Fatalf("codes = %v", codes)
    }
}

func TestTokenBucketFailsOpen(t *testing.T) {
    t.Parallel()

    mr, rdb := newRedis(t)
    mr.Close()
    cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Hour, TTL: time.Hour, Prefix: "rl"}
    e := echo.New()
    e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, NewTokenBucket(cfg, rdb, nil))
    for i := 0; i < 3; i++ {
        rec := httptest.NewRecorder()
        e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
        if rec.Code != http.StatusNoContent {
            t.Fatalf("request %d = %d", i, rec.Code)
        }
    }
}

func TestRedisCacheHitAndInvalidate(t *testing.T) {
    t.Parallel()

    _, rdb := newRedis(t)
    cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, Prefix: "test:cache", MaxBodyBytes: 1 << 20}
    calls := 0
    e := echo.New()
    e.GET("/events", func(c echo.Context) error {
        calls++
        return c.JSON(http.StatusOK, echo.Map{"calls": calls})
    }, OptionalAuth(secret), NewRedisCache(cfg, rdb))

    get := func(auth string) *httptest.ResponseRecorder {
        req := httptest.NewRequest(http.MethodGet, "/events?page=1", nil)
        if auth != "" {
            req.Header.Set("Authorization", "Bearer "+auth)
        }
        rec := httptest.NewRecorder()
        e.ServeHTTP(rec, req)
        return rec
    }

    first := get("")
    second := get("")
    if first.Header().Get("X-Cache") != "MISS" || second.Header().Get("X-Cache") != "HIT" {
        t.Fatalf("cache headers = %q/%q", first.Header().Get("X-Cache"), second.Header().Get("X-Cache"))
    }
    if first.Body.String() != second.Body.String() || calls != 1 {
        t.Fatalf("bodies %q vs %q, calls=%d", first.Body.String(), second.Body.String(), calls)
    }

    tok, _ := utils.NewAccessToken(secret, "u1", "", "", time.Hour)
    if rec := get(tok.Token); rec.Header().Get("X-Cache") != "" || calls != 2 {
        t.Fatalf("authenticated request used the cache (calls=%d)", calls)
    }

    if err := InvalidateCache(context.Background(), rdb, cfg.Prefix); err != nil {
        t.Fatalf("InvalidateCache: %v", err)
    }
    if rec := get(""); rec.Header().Get("X-Cache") != "MISS" || calls != 3 {
        t.Fatalf("after invalidate: %q calls=%d", rec.Header().Get("X-Cache"), calls)
    }
}

func TestPayloadRoundTripRejectsShortInput(t *testing.T) {
    t.Parallel()

    if _, _, _, ok := decodePayload([]byte{0, 0}); ok {
        t.Fatal("short payload decoded")
    }
    raw, err := encodePayload(http.StatusOK, http.Header{"Content-Type": {"application/json"}}, []byte(`{}`))
    if err != nil {
        t.Fatal(err)
    }
    status, hdr, body, ok := decodePayload(raw)
    if !ok || status != http.StatusOK || hdr.Get("Content-Type") != "application/json" || string(body) != "{}" {
        t.Fatalf("decoded %d %v %q %v", status, hdr, body, ok)
    }
}
