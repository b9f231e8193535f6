package pipeline

import (
	"context"

	"chat-companion/backend/internal/ai"
	"chat-companion/backend/pkg/logger"
	"chat-companion/backend/pkg/metrics"
)

// Fixed user-facing fallback strings. The orchestration layer never sees a
// raw backend fault; one of these is substituted instead.
const (
	FallbackPersistent = "I'm having persistent issues connecting to my AI service. Please try again later."
	FallbackAuth       = "I'm having trouble accessing my AI capabilities. Please contact support."
	FallbackInvalid    = "I'm having trouble understanding the request. Please try rephrasing it."
	FallbackQuota      = "I apologize, but I've reached my usage limit. Please try again later."
	FallbackEmpty      = "I apologize, but I couldn't generate a response. Please try again."
)

// Invoker wraps a backend call with process-wide rate limiting and bounded
// retry. The two policies are independent and individually testable; Invoke
// only composes them.
type Invoker struct {
	limiter *Limiter
	retry   *RetryPolicy
	log     *logger.Logger
}

// NewInvoker composes the rate limiter and retry policy
func NewInvoker(limiter *Limiter, retry *RetryPolicy, log *logger.Logger) *Invoker {
	return &Invoker{
		limiter: limiter,
		retry:   retry,
		log:     log.WithComponent("pipeline"),
	}
}

// Invoke runs one generation. The second return value reports whether the
// text is a real generation (true) or a fallback string (false).
func (iv *Invoker) Invoke(ctx context.Context, backend ai.Backend, prompt, persona string, maxTokens int) (string, bool) {
	if err := iv.limiter.Wait(ctx); err != nil {
		iv.log.LogError(err, "Rate limiter wait aborted", "provider", backend.Name())
		return FallbackPersistent, false
	}

	var text string
	err := iv.retry.Do(ctx, func() error {
		out, genErr := backend.Generate(ctx, prompt, persona, maxTokens)
		if genErr != nil {
			metrics.BackendAttempts.WithLabelValues(backend.Name(), "failure").Inc()
			metrics.BackendFaults.WithLabelValues(backend.Name(), string(ai.CategoryOf(genErr))).Inc()
			return genErr
		}
		metrics.BackendAttempts.WithLabelValues(backend.Name(), "success").Inc()
		text = out
		return nil
	})

	if err == nil {
		if text == "" {
			iv.log.Warn("Backend produced an empty completion", "provider", backend.Name())
			return FallbackEmpty, false
		}
		return text, true
	}

	category := ai.CategoryOf(err)
	iv.log.LogError(err, "Backend invocation failed",
		"provider", backend.Name(),
		"category", string(category),
	)

	switch category {
	case ai.CategoryAuth:
		return FallbackAuth, false
	case ai.CategoryInvalid:
		return FallbackInvalid, false
	case ai.CategoryQuota:
		return FallbackQuota, false
	default:
		return FallbackPersistent, false
	}
}
