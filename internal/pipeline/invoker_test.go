package pipeline

import (
	"context"
	"testing"
	"time"

	"chat-companion/backend/internal/ai"
	"chat-companion/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
)

// scriptedBackend fails or succeeds per call index
type scriptedBackend struct {
	calls int
	fn    func(call int) (string, error)
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) Generate(context.Context, string, string, int) (string, error) {
	b.calls++
	return b.fn(b.calls)
}

func newTestInvoker() *Invoker {
	retry := NewRetryPolicy(3, time.Second, 4*time.Second, 10*time.Second, ai.IsRetryable)
	retry.Sleep = func(context.Context, time.Duration) error { return nil }
	return NewInvoker(NewLimiter(1000, time.Second), retry, logger.New(logger.DefaultConfig()))
}

func TestInvokeReturnsGeneratedText(t *testing.T) {
	iv := newTestInvoker()
	backend := &scriptedBackend{fn: func(int) (string, error) { return "hello there", nil }}

	text, generated := iv.Invoke(context.Background(), backend, "prompt", "persona", 150)

	assert.True(t, generated)
	assert.Equal(t, "hello there", text)
	assert.Equal(t, 1, backend.calls)
}

func TestInvokeRetriesTransientFaults(t *testing.T) {
	iv := newTestInvoker()
	backend := &scriptedBackend{fn: func(call int) (string, error) {
		if call < 3 {
			return "", &ai.Fault{Provider: "scripted", Category: ai.CategoryTransient}
		}
		return "third time lucky", nil
	}}

	text, generated := iv.Invoke(context.Background(), backend, "prompt", "persona", 150)

	assert.True(t, generated)
	assert.Equal(t, "third time lucky", text)
	assert.Equal(t, 3, backend.calls)
}

func TestInvokeShortCircuitsAuthFaults(t *testing.T) {
	iv := newTestInvoker()
	backend := &scriptedBackend{fn: func(int) (string, error) {
		return "", &ai.Fault{Provider: "scripted", Category: ai.CategoryAuth}
	}}

	text, generated := iv.Invoke(context.Background(), backend, "prompt", "persona", 150)

	assert.False(t, generated)
	assert.Equal(t, FallbackAuth, text)
	assert.Equal(t, 1, backend.calls, "auth failures must not consume retries")
}

func TestInvokeShortCircuitsValidationFaults(t *testing.T) {
	iv := newTestInvoker()
	backend := &scriptedBackend{fn: func(int) (string, error) {
		return "", &ai.Fault{Provider: "scripted", Category: ai.CategoryInvalid}
	}}

	text, generated := iv.Invoke(context.Background(), backend, "prompt", "persona", 150)

	assert.False(t, generated)
	assert.Equal(t, FallbackInvalid, text)
	assert.Equal(t, 1, backend.calls)
}

func TestInvokeQuotaExhaustionUsesDistinctFallback(t *testing.T) {
	iv := newTestInvoker()
	backend := &scriptedBackend{fn: func(int) (string, error) {
		return "", &ai.Fault{Provider: "scripted", Category: ai.CategoryQuota}
	}}

	text, generated := iv.Invoke(context.Background(), backend, "prompt", "persona", 150)

	assert.False(t, generated)
	assert.Equal(t, FallbackQuota, text)
	assert.Equal(t, 3, backend.calls)
}

func TestInvokeTransientExhaustionFallsBack(t *testing.T) {
	iv := newTestInvoker()
	backend := &scriptedBackend{fn: func(int) (string, error) {
		return "", &ai.Fault{Provider: "scripted", Category: ai.CategoryTransient}
	}}

	text, generated := iv.Invoke(context.Background(), backend, "prompt", "persona", 150)

	assert.False(t, generated)
	assert.Equal(t, FallbackPersistent, text)
	assert.Equal(t, 3, backend.calls)
}

func TestInvokeEmptyCompletionIsNotAGeneration(t *testing.T) {
	iv := newTestInvoker()
	backend := &scriptedBackend{fn: func(int) (string, error) { return "", nil }}

	text, generated := iv.Invoke(context.Background(), backend, "prompt", "persona", 150)

	assert.False(t, generated)
	assert.Equal(t, FallbackEmpty, text)
	assert.Equal(t, 1, backend.calls)
}
