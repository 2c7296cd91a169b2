// Package dispatcher turns qualifying chat messages into enrichment requests.
//
// Handle is the message-ingestion boundary: every failure is caught, logged
// and swallowed so one message's handling can never take down another's. The
// worst user-visible outcome is a placeholder that never gets updated.
package dispatcher

import (
	"context"
	"fmt"
	"time"

	"enrich-relay/internal/clay"
	apperrors "enrich-relay/internal/common/errors"
	"enrich-relay/internal/common/logging"
	"enrich-relay/internal/correlation"
	"enrich-relay/internal/ratelimit"
	"enrich-relay/internal/trigger"
)

// InboundMessage is the subset of a chat message the dispatcher needs.
type InboundMessage struct {
	Channel string
	User    string
	Text    string
	TS      string
}

// Chat is the outbound chat capability the dispatcher needs.
type Chat interface {
	PostThreadReply(ctx context.Context, channel, threadTS, text string) (string, error)
	UpdateMessage(ctx context.Context, channel, ts, text string) error
	PostEphemeral(ctx context.Context, channel, user, text string) error
}

// Config holds dispatcher settings.
type Config struct {
	// AllowedChannel restricts processing to one channel when non-empty.
	AllowedChannel string
	// CallbackURL is the externally reachable callback address submissions carry.
	CallbackURL string
	// CallbackToken is the shared secret callbacks must echo back.
	CallbackToken string
	// RateLimit and RateWindow are only used to word the rate-limit notice;
	// enforcement lives in the Limiter.
	RateLimit  int
	RateWindow time.Duration
}

// Dispatcher wires the trigger detector, rate limiter, correlation store and
// external capabilities into the message-handling flow.
type Dispatcher struct {
	cfg      Config
	detector *trigger.Detector
	limiter  ratelimit.Limiter
	store    correlation.Store
	chat     Chat
	enricher clay.Submitter
	logger   logging.Logger
}

// New creates a Dispatcher.
func New(cfg Config, detector *trigger.Detector, limiter ratelimit.Limiter,
	store correlation.Store, chat Chat, enricher clay.Submitter, logger logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Dispatcher{
		cfg:      cfg,
		detector: detector,
		limiter:  limiter,
		store:    store,
		chat:     chat,
		enricher: enricher,
		logger:   logger,
	}
}

// Handle processes one inbound message. It never returns an error: failures
// past the placeholder post leave the placeholder un-updated rather than
// crashing the ingestion path.
func (d *Dispatcher) Handle(ctx context.Context, msg InboundMessage) {
	if msg.Text == "" {
		return
	}
	if d.cfg.AllowedChannel != "" && msg.Channel != d.cfg.AllowedChannel {
		return
	}

	if !d.limiter.Admit(msg.User) {
		notice := fmt.Sprintf("⏳ Rate limit: max %d per %ds. Try again soon.",
			d.cfg.RateLimit, int(d.cfg.RateWindow.Seconds()))
		if err := d.chat.PostEphemeral(ctx, msg.Channel, msg.User, notice); err != nil {
			d.logger.Error("failed to post rate limit notice", err,
				logging.String("channel", msg.Channel),
				logging.String("user", msg.User))
		}
		return
	}

	// Most messages are expected not to match; silence is the default.
	profileURL, ok := d.detector.Match(msg.Text)
	if !ok {
		return
	}

	placeholderTS, err := d.chat.PostThreadReply(ctx, msg.Channel, msg.TS,
		fmt.Sprintf("Enriching %s … one sec.", profileURL))
	if err != nil {
		d.logger.Error("failed to post placeholder", err,
			logging.String("channel", msg.Channel),
			logging.String("url", profileURL))
		return
	}

	if !d.enricher.Enabled() {
		// Terminal, operator-visible failure; not retried.
		d.editPlaceholder(ctx, msg.Channel, placeholderTS,
			"Clay configuration missing. Please set CLAY_WEBHOOK_URL or CLAY_API_BASE+CLAY_API_KEY.")
		return
	}

	jobID, err := d.enricher.Submit(ctx, clay.Job{
		ProfileURL:    profileURL,
		Channel:       msg.Channel,
		MessageTS:     placeholderTS,
		CallbackURL:   d.cfg.CallbackURL,
		CallbackToken: d.cfg.CallbackToken,
	})
	if err != nil {
		// No store write on submission failure: a failed submission must
		// not leave an orphaned entry.
		d.logger.Error("enrichment submission failed", err,
			logging.String("channel", msg.Channel),
			logging.String("url", profileURL),
			logging.String("error_type", string(apperrors.GetType(err))))
		return
	}

	key := jobID
	if key == "" {
		key = correlation.FallbackKey(msg.Channel, placeholderTS)
	}

	if err := d.store.Put(ctx, correlation.Entry{
		Key:           key,
		Channel:       msg.Channel,
		ThreadAnchor:  msg.TS,
		PlaceholderTS: placeholderTS,
		SubjectURL:    profileURL,
	}); err != nil {
		d.logger.Error("failed to record correlation entry", err,
			logging.String("key", key))
		return
	}

	d.logger.Info("enrichment dispatched",
		logging.String("key", key),
		logging.String("channel", msg.Channel),
		logging.String("url", profileURL))
}

func (d *Dispatcher) editPlaceholder(ctx context.Context, channel, ts, text string) {
	if err := d.chat.UpdateMessage(ctx, channel, ts, text); err != nil {
		d.logger.Error("failed to edit placeholder", err,
			logging.String("channel", channel),
			logging.String("ts", ts))
	}
}
