// Package handlers exposes the relay's HTTP surface: the Slack events
// endpoint, the enrichment callback endpoint and the health check.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"enrich-relay/internal/common/logging"
	"enrich-relay/internal/dispatcher"
	"enrich-relay/internal/resolver"
)

// handleTimeout bounds the asynchronous handling of one inbound event,
// covering the placeholder post and the enrichment submission.
const handleTimeout = 60 * time.Second

// maxBodySize caps inbound request bodies.
const maxBodySize = 1 << 20

// MessageDispatcher handles one inbound chat message.
type MessageDispatcher interface {
	Handle(ctx context.Context, msg dispatcher.InboundMessage)
}

// CallbackResolver handles one inbound enrichment callback.
type CallbackResolver interface {
	Handle(ctx context.Context, cb resolver.Callback) resolver.Result
}

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	signingSecret string
	dispatcher    MessageDispatcher
	resolver      CallbackResolver
	logger        logging.Logger
}

// New creates the handler set.
func New(signingSecret string, d MessageDispatcher, r CallbackResolver, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		signingSecret: signingSecret,
		dispatcher:    d,
		resolver:      r,
		logger:        logger,
	}
}

// SlackEvents receives Slack Events API deliveries. The request signature is
// verified, the URL-verification handshake is answered inline, and message
// events are acknowledged immediately and handled asynchronously: Slack
// retries deliveries that are not acknowledged within a few seconds, and a
// slow enrichment submission must not trigger that.
func (h *Handlers) SlackEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	verifier, err := slackapi.NewSecretsVerifier(r.Header, h.signingSecret)
	if err != nil {
		http.Error(w, "bad signature headers", http.StatusBadRequest)
		return
	}
	if _, err := verifier.Write(body); err != nil {
		http.Error(w, "failed to verify request", http.StatusInternalServerError)
		return
	}
	if err := verifier.Ensure(); err != nil {
		h.logger.Warn("slack event rejected: bad signature")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		http.Error(w, "failed to parse event", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			http.Error(w, "failed to parse challenge", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(challenge.Challenge))

	case slackevents.CallbackEvent:
		if msg, ok := inboundMessage(event); ok {
			h.dispatchAsync(msg)
		}
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusOK)
	}
}

// inboundMessage extracts a plain user message from an event callback.
// Bot messages, edits and other subtypes are ignored.
func inboundMessage(event slackevents.EventsAPIEvent) (dispatcher.InboundMessage, bool) {
	ev, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return dispatcher.InboundMessage{}, false
	}
	if ev.BotID != "" || ev.SubType != "" {
		return dispatcher.InboundMessage{}, false
	}
	return dispatcher.InboundMessage{
		Channel: ev.Channel,
		User:    ev.User,
		Text:    ev.Text,
		TS:      ev.TimeStamp,
	}, true
}

// dispatchAsync hands the message to the dispatcher in its own goroutine.
// Each event is an independent unit of work: a panic is contained and logged
// here, never propagated to the events endpoint or to other events.
func (h *Handlers) dispatchAsync(msg dispatcher.InboundMessage) {
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("panic in message handler", nil,
					logging.Any("panic", rec),
					logging.String("channel", msg.Channel))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		h.dispatcher.Handle(ctx, msg)
	}()
}

// ClayCallback receives enrichment results. Resolution is synchronous; the
// status tells the caller whether to retry (500) or stop (200, 401).
func (h *Handlers) ClayCallback(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("panic in callback handler", nil, logging.Any("panic", rec))
			http.Error(w, "error", http.StatusInternalServerError)
		}
	}()

	var cb resolver.Callback
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&cb); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	result := h.resolver.Handle(r.Context(), cb)
	w.WriteHeader(result.Status)
	w.Write([]byte(result.Body))
}

// Health answers liveness probes.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
