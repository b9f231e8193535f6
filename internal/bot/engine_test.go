package bot

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"chat-companion/backend/internal/ai"
	"chat-companion/backend/internal/models"
	"chat-companion/backend/internal/pipeline"
	"chat-companion/backend/internal/store"
	"chat-companion/backend/pkg/config"
	"chat-companion/backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// fakeBackend counts calls and answers per call index
type fakeBackend struct {
	mu sync.Mutex
	n  int
	fn func(call int) (string, error)
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Generate(context.Context, string, string, int) (string, error) {
	f.mu.Lock()
	f.n++
	call := f.n
	f.mu.Unlock()
	return f.fn(call)
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

type testFixture struct {
	engine  *Engine
	store   *store.Store
	db      *gorm.DB
	backend *fakeBackend
}

func newFixture(t *testing.T, fn func(call int) (string, error)) *testFixture {
	t.Helper()

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

	cfg := config.Get()
	log := logger.New(logger.DefaultConfig())
	backend := &fakeBackend{fn: fn}

	retry := pipeline.NewRetryPolicy(3, time.Second, 4*time.Second, 10*time.Second, ai.IsRetryable)
	retry.Sleep = func(context.Context, time.Duration) error { return nil }
	invoker := pipeline.NewInvoker(pipeline.NewLimiter(1000, time.Second), retry, log)

	engine := NewEngine(st, backend, invoker, cfg, log)
	require.NoError(t, engine.Bootstrap(context.Background()))

	return &testFixture{engine: engine, store: st, db: db, backend: backend}
}

func (f *testFixture) messageCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.Message{}).Count(&count).Error)
	return count
}

func TestHandleMessagePersistsBothTurns(t *testing.T) {
	f := newFixture(t, func(int) (string, error) { return "Nice to meet you!", nil })
	externalID := int64(42)

	reply := f.engine.HandleMessage(context.Background(), &externalID, "hello")

	assert.Equal(t, "Nice to meet you!", reply)
	assert.Equal(t, 1, f.backend.calls())

	var messages []models.Message
	require.NoError(t, f.db.Order("id ASC").Find(&messages).Error)
	require.Len(t, messages, 2)
	assert.Equal(t, "hello", messages[0].Content)
	assert.False(t, messages[0].IsFromBot)
	assert.Equal(t, "Nice to meet you!", messages[1].Content)
	assert.True(t, messages[1].IsFromBot)

	var user models.User
	require.NoError(t, f.db.First(&user).Error)
	assert.False(t, user.LastInteraction.IsZero())
}

func TestHandleMessageRejectsEmptyInput(t *testing.T) {
	f := newFixture(t, func(int) (string, error) { return "unused", nil })

	reply := f.engine.HandleMessage(context.Background(), nil, "   ")

	assert.Equal(t, MsgEmptyInput, reply)
	assert.Equal(t, 0, f.backend.calls())
	assert.EqualValues(t, 0, f.messageCount(t))
}

func TestHandleMessageWithoutUsersInConsoleMode(t *testing.T) {
	f := newFixture(t, func(int) (string, error) { return "unused", nil })

	reply := f.engine.HandleMessage(context.Background(), nil, "hello")

	assert.Equal(t, MsgSessionError, reply)
	assert.Equal(t, 0, f.backend.calls())
}

func TestHandleMessageWithoutActivePersonality(t *testing.T) {
	f := newFixture(t, func(int) (string, error) { return "unused", nil })
	require.NoError(t, f.db.Where("1 = 1").Delete(&models.Personality{}).Error)
	externalID := int64(7)

	reply := f.engine.HandleMessage(context.Background(), &externalID, "hello")

	assert.Equal(t, MsgConfigError, reply)
	assert.Equal(t, 0, f.backend.calls(), "configuration gaps must not reach the backend")
	// The inbound message is still part of the audit trail.
	assert.EqualValues(t, 1, f.messageCount(t))
}

func TestHandleMessageKeepsInboundWhenBackendExhausts(t *testing.T) {
	f := newFixture(t, func(int) (string, error) {
		return "", &ai.Fault{Provider: "fake", Category: ai.CategoryTransient}
	})
	externalID := int64(7)

	reply := f.engine.HandleMessage(context.Background(), &externalID, "hello")

	assert.Equal(t, pipeline.FallbackPersistent, reply)
	assert.Equal(t, 3, f.backend.calls())

	var messages []models.Message
	require.NoError(t, f.db.Find(&messages).Error)
	require.Len(t, messages, 1)
	assert.False(t, messages[0].IsFromBot)
}

func TestHandleMessageAuthFaultUsesSingleAttempt(t *testing.T) {
	f := newFixture(t, func(int) (string, error) {
		return "", &ai.Fault{Provider: "fake", Category: ai.CategoryAuth}
	})
	externalID := int64(7)

	reply := f.engine.HandleMessage(context.Background(), &externalID, "hello")

	assert.Equal(t, pipeline.FallbackAuth, reply)
	assert.Equal(t, 1, f.backend.calls())
}

func TestHandleMessageDoesNotStoreFallbackText(t *testing.T) {
	f := newFixture(t, func(int) (string, error) { return "", nil })
	externalID := int64(7)

	reply := f.engine.HandleMessage(context.Background(), &externalID, "hello")

	assert.Equal(t, pipeline.FallbackEmpty, reply)
	assert.EqualValues(t, 1, f.messageCount(t))
}

func TestConcurrentResolutionCreatesOneUser(t *testing.T) {
	f := newFixture(t, func(int) (string, error) { return "ok", nil })
	externalID := int64(42)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.engine.HandleMessage(context.Background(), &externalID, "hello")
		}()
	}
	wg.Wait()

	var count int64
	require.NoError(t, f.db.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestTogglePremiumIsAnInvolution(t *testing.T) {
	f := newFixture(t, func(int) (string, error) { return "ok", nil })
	externalID := int64(42)

	// Seed the user through a normal message
	f.engine.HandleMessage(context.Background(), &externalID, "hello")

	var before models.User
	require.NoError(t, f.db.First(&before).Error)

	assert.Equal(t, "Premium features enabled", f.engine.TogglePremium(context.Background(), &externalID))
	assert.Equal(t, "Premium features disabled", f.engine.TogglePremium(context.Background(), &externalID))

	var after models.User
	require.NoError(t, f.db.First(&after).Error)
	assert.Equal(t, before.IsPremium, after.IsPremium)
}

func TestTogglePremiumUnknownUser(t *testing.T) {
	f := newFixture(t, func(int) (string, error) { return "ok", nil })

	status := f.engine.TogglePremium(context.Background(), nil)
	assert.Equal(t, "Error: User not found", status)
}

func TestPremiumUsersGetLargerTokenBudget(t *testing.T) {
	var seenTokens []int
	var mu sync.Mutex

	f := newFixture(t, func(int) (string, error) { return "ok", nil })
	f.backend.fn = func(int) (string, error) { return "ok", nil }

	// Wrap the backend to capture maxTokens
	capture := &tokenCapturingBackend{inner: f.backend, record: func(n int) {
		mu.Lock()
		seenTokens = append(seenTokens, n)
		mu.Unlock()
	}}
	f.engine.backend = capture

	externalID := int64(42)
	f.engine.HandleMessage(context.Background(), &externalID, "hello")
	f.engine.TogglePremium(context.Background(), &externalID)
	f.engine.HandleMessage(context.Background(), &externalID, "hello again")

	require.Len(t, seenTokens, 2)
	assert.Equal(t, config.Get().Bot.DefaultMaxTokens, seenTokens[0])
	assert.Equal(t, config.Get().Bot.PremiumMaxTokens, seenTokens[1])
}

type tokenCapturingBackend struct {
	inner  ai.Backend
	record func(maxTokens int)
}

func (b *tokenCapturingBackend) Name() string { return b.inner.Name() }

func (b *tokenCapturingBackend) Generate(ctx context.Context, prompt, persona string, maxTokens int) (string, error) {
	b.record(maxTokens)
	return b.inner.Generate(ctx, prompt, persona, maxTokens)
}
