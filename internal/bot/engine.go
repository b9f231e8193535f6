package bot

import (
	"context"
	"errors"
	"strings"
	"time"

	"chat-companion/backend/internal/ai"
	"chat-companion/backend/internal/models"
	"chat-companion/backend/internal/pipeline"
	"chat-companion/backend/internal/store"
	"chat-companion/backend/pkg/config"
	"chat-companion/backend/pkg/logger"
	"chat-companion/backend/pkg/metrics"
)

// Fixed user-facing strings for failures outside the invocation pipeline
const (
	MsgEmptyInput   = "I couldn't understand your message. Could you please try again?"
	MsgSessionError = "There was an error with your session. Please try again."
	MsgConfigError  = "I'm having trouble with my personality configuration. Please contact support."
	MsgUnknownError = "I'm having trouble processing that right now. Could you try again?"
)

// Engine is the session orchestrator: it composes identity resolution,
// context building, persona selection, the invocation pipeline and message
// persistence into the end-to-end request/response contract. Every call is
// a single pass; the only blocking points are the rate limiter and backoff
// sleeps inside the pipeline.
type Engine struct {
	store      *store.Store
	backend    ai.Backend
	invoker    *pipeline.Invoker
	storeRetry *pipeline.RetryPolicy
	cfg        *config.Config
	log        *logger.Logger
}

// NewEngine wires the orchestrator
func NewEngine(st *store.Store, backend ai.Backend, invoker *pipeline.Invoker, cfg *config.Config, log *logger.Logger) *Engine {
	return &Engine{
		store:   st,
		backend: backend,
		invoker: invoker,
		storeRetry: pipeline.NewRetryPolicy(
			cfg.Bot.MaxRetries,
			cfg.Bot.BackoffBase,
			cfg.Bot.BackoffFloor,
			cfg.Bot.BackoffCeiling,
			isTransientStoreErr,
		),
		cfg: cfg,
		log: log.WithComponent("engine"),
	}
}

// Bootstrap installs the default personality when none is active.
// Must run once before the engine serves messages.
func (e *Engine) Bootstrap(ctx context.Context) error {
	return e.store.WithTx(ctx, func(tx *store.Tx) error {
		return tx.Personalities().EnsureDefault(config.DefaultPersona)
	})
}

// sessionState carries phase-1 results to the pipeline and phase-2 write
type sessionState struct {
	userID    uint
	prompt    string
	persona   string
	maxTokens int
	configGap bool
}

// HandleMessage processes one user message and returns reply text. It never
// returns an error or panics to the caller; every failure mode maps to a
// fixed fallback string so the serving loop stays available.
func (e *Engine) HandleMessage(ctx context.Context, externalID *int64, text string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("Panic while handling message", "panic", r)
			metrics.MessagesHandled.WithLabelValues("error").Inc()
			reply = MsgUnknownError
		}
	}()

	if strings.TrimSpace(text) == "" {
		e.log.Warn("Received empty message")
		metrics.MessagesHandled.WithLabelValues("invalid_input").Inc()
		return MsgEmptyInput
	}

	reply, outcome := e.handle(ctx, externalID, text)
	metrics.MessagesHandled.WithLabelValues(outcome).Inc()
	return reply
}

func (e *Engine) handle(ctx context.Context, externalID *int64, text string) (string, string) {
	var st sessionState

	// Phase 1: resolve identity, build the context window, persist the
	// inbound message and resolve the persona in one transaction. The
	// inbound write commits even when the persona is missing, so the audit
	// trail survives configuration gaps and backend failures alike.
	// Transient store errors retry the whole transaction.
	err := e.storeRetry.Do(ctx, func() error {
		st = sessionState{}
		return e.store.WithTx(ctx, func(tx *store.Tx) error {
			user, err := tx.Users().Resolve(externalID)
			if err != nil {
				return err
			}

			history, err := tx.Messages().RecentByUser(user.ID, e.cfg.Bot.ContextMessages)
			if err != nil {
				return err
			}
			st.prompt = BuildContext(history, text)

			user.LastInteraction = time.Now().UTC()
			if err := tx.Users().Save(user); err != nil {
				return err
			}

			if err := tx.Messages().Append(&models.Message{
				UserID:  user.ID,
				Content: text,
			}); err != nil {
				return err
			}

			persona, err := tx.Personalities().Active()
			if errors.Is(err, store.ErrNoActivePersonality) {
				st.configGap = true
				return nil
			}
			if err != nil {
				return err
			}

			st.userID = user.ID
			st.persona = persona.Persona
			st.maxTokens = e.cfg.Bot.DefaultMaxTokens
			if user.IsPremium {
				st.maxTokens = e.cfg.Bot.PremiumMaxTokens
			}
			return nil
		})
	})
	if errors.Is(err, store.ErrUserNotFound) {
		e.log.Warn("No user for session", "external_id", externalID)
		return MsgSessionError, "session_error"
	}
	if err != nil {
		e.log.LogError(err, "Failed to prepare session")
		return MsgUnknownError, "error"
	}
	if st.configGap {
		e.log.Error("No active personality configured")
		return MsgConfigError, "config_error"
	}

	// Phase 2: invoke the backend through the rate-limited, retrying
	// pipeline. No transaction is held across this call.
	reply, generated := e.invoker.Invoke(ctx, e.backend, st.prompt, st.persona, st.maxTokens)
	if !generated {
		return reply, "fallback"
	}

	// Phase 3: persist the generated reply. Fallback strings are never
	// stored as bot messages.
	err = e.store.WithTx(ctx, func(tx *store.Tx) error {
		return tx.Messages().Append(&models.Message{
			UserID:    st.userID,
			Content:   reply,
			IsFromBot: true,
		})
	})
	if err != nil {
		// The user still gets the reply; only the audit row is lost.
		e.log.LogError(err, "Failed to persist bot reply", "user_id", st.userID)
	}

	return reply, "generated"
}

// TogglePremium flips the premium flag for the resolved user and returns a
// status string. Not part of the message pipeline.
func (e *Engine) TogglePremium(ctx context.Context, externalID *int64) string {
	var status string
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		user, err := tx.Users().Resolve(externalID)
		if err != nil {
			return err
		}
		user.IsPremium = !user.IsPremium
		if err := tx.Users().Save(user); err != nil {
			return err
		}
		if user.IsPremium {
			status = "Premium features enabled"
		} else {
			status = "Premium features disabled"
		}
		e.log.Info("Premium status toggled", "user_id", user.ID, "is_premium", user.IsPremium)
		return nil
	})
	if errors.Is(err, store.ErrUserNotFound) {
		return "Error: User not found"
	}
	if err != nil {
		e.log.LogError(err, "Failed to toggle premium")
		return "Error toggling premium status"
	}
	return status
}

// isTransientStoreErr treats every store failure except a definite
// not-found as worth another attempt.
func isTransientStoreErr(err error) bool {
	return !errors.Is(err, store.ErrUserNotFound) &&
		!errors.Is(err, store.ErrNoActivePersonality)
}
