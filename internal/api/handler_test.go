package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chat-companion/backend/internal/ai"
	"chat-companion/backend/internal/bot"
	"chat-companion/backend/internal/models"
	"chat-companion/backend/internal/pipeline"
	"chat-companion/backend/internal/store"
	"chat-companion/backend/pkg/config"
	"chat-companion/backend/pkg/health"
	"chat-companion/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type staticBackend struct{ reply string }

func (b *staticBackend) Name() string { return "static" }

func (b *staticBackend) Generate(context.Context, string, string, int) (string, error) {
	return b.reply, nil
}

// stubDeduper marks a fixed set of message ids as already seen
type stubDeduper struct{ seen map[int64]bool }

func (d *stubDeduper) Seen(_ context.Context, id int64) bool { return d.seen[id] }

func newTestRouter(t *testing.T, deduper *stubDeduper) *Router {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	st := store.New(db)
	require.NoError(t, st.AutoMigrate())

	log := logger.New(logger.DefaultConfig())
	retry := pipeline.NewRetryPolicy(3, time.Second, 4*time.Second, 10*time.Second, ai.IsRetryable)
	retry.Sleep = func(context.Context, time.Duration) error { return nil }
	invoker := pipeline.NewInvoker(pipeline.NewLimiter(1000, time.Second), retry, log)

	engine := bot.NewEngine(st, &staticBackend{reply: "Hi there!"}, invoker, config.Get(), log)
	require.NoError(t, engine.Bootstrap(context.Background()))

	if deduper == nil {
		deduper = &stubDeduper{seen: map[int64]bool{}}
	}
	checker := health.NewChecker(log, time.Minute)
	checker.Register("database", true, func(context.Context) error { return st.Ping() })
	router := NewRouter(NewHandler(engine, deduper), checker, log)
	router.SetupRoutes()
	return router
}

func postJSON(t *testing.T, router *Router, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, req)
	return rec
}

func TestSendMessageReturnsReply(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := postJSON(t, router, "/api/v1/messages", gin.H{
		"external_id": 42,
		"text":        "hello",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.SendMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Hi there!", resp.Reply)
	assert.False(t, resp.Duplicate)
}

func TestSendMessageRejectsMissingText(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := postJSON(t, router, "/api/v1/messages", gin.H{"external_id": 42})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_REQUEST", resp.Error.Code)
}

func TestSendMessageSuppressesDuplicates(t *testing.T) {
	router := newTestRouter(t, &stubDeduper{seen: map[int64]bool{1001: true}})

	rec := postJSON(t, router, "/api/v1/messages", gin.H{
		"external_id":         42,
		"external_message_id": 1001,
		"text":                "hello",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.SendMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Duplicate)
	assert.Empty(t, resp.Reply)
}

func TestTogglePremiumEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	// Seed the user through a message first
	postJSON(t, router, "/api/v1/messages", gin.H{"external_id": 42, "text": "hello"})

	rec := postJSON(t, router, "/api/v1/premium", gin.H{"external_id": 42})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.TogglePremiumResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Premium features enabled", resp.Status)
}

func TestHealthzReportsOK(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
