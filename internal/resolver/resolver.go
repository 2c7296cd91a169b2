// Package resolver turns inbound enrichment callbacks back into chat message
// updates.
//
// A callback may arrive seconds or hours after dispatch, possibly after a
// process restart wiped the correlation store, possibly more than once.
// Resolution therefore runs through a precedence chain: identifiers carried
// by the callback itself beat the store, and the store beats a last-resort
// first-live-entry heuristic.
package resolver

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"

	"enrich-relay/internal/common/logging"
	"enrich-relay/internal/correlation"
)

// missingValue is displayed for result fields the service did not return.
const missingValue = "—"

// Chat is the outbound capability the resolver needs.
type Chat interface {
	UpdateMessage(ctx context.Context, channel, ts, text string) error
}

// StringOrNumber is a string that also accepts a JSON number on decode.
// Enrichment services are not consistent about the type of the row id they
// echo back; the submit side tolerates both, so the callback side must too.
type StringOrNumber string

// UnmarshalJSON decodes a JSON string, number or null. Numbers keep their
// literal form, so large ids never pick up exponent notation.
func (s *StringOrNumber) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return err
	}
	switch v := v.(type) {
	case string:
		*s = StringOrNumber(v)
	case json.Number:
		*s = StringOrNumber(v.String())
	case nil:
		*s = ""
	default:
		return fmt.Errorf("expected string or number, got %T", v)
	}
	return nil
}

// Callback is the inbound result notification. Identifier fields are
// optional; the richer the callback, the less store state resolution needs.
type Callback struct {
	CallbackToken string         `json:"callback_token"`
	RowID         StringOrNumber `json:"row_id"`

	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Fields struct {
		Email       string `json:"email"`
		Phone       string `json:"phone"`
		LinkedInURL string `json:"linkedin_url"`
	} `json:"fields"`

	// Stateless-mode identifiers echoed back by the enrichment service.
	Channel        string `json:"channel"`
	MessageTS      string `json:"message_ts"`
	SlackChannel   string `json:"slack_channel"`
	SlackMessageTS string `json:"slack_message_ts"`
	LinkedInURL    string `json:"linkedin_url"`
}

// Result is the HTTP outcome handed back to the caller. Status 200 covers
// both success and benign no-ops; only chat-update failures yield 500, the
// one case where the caller is expected to retry.
type Result struct {
	Status int
	Body   string
}

// Resolver authenticates callbacks and resolves them to chat messages.
type Resolver struct {
	secret string
	store  correlation.Store
	chat   Chat
	// singleFlight enables the degraded first-live-entry fallback, which
	// assumes at most one outstanding enrichment at a time.
	singleFlight bool
	logger       logging.Logger
}

// New creates a Resolver. singleFlightFallback controls whether a callback
// with no usable identifiers may consume the oldest live entry.
func New(secret string, store correlation.Store, chat Chat, singleFlightFallback bool, logger logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Resolver{
		secret:       secret,
		store:        store,
		chat:         chat,
		singleFlight: singleFlightFallback,
		logger:       logger,
	}
}

// Handle processes one callback and returns the HTTP outcome.
func (r *Resolver) Handle(ctx context.Context, cb Callback) Result {
	if subtle.ConstantTimeCompare([]byte(cb.CallbackToken), []byte(r.secret)) != 1 {
		r.logger.Warn("callback rejected: token mismatch")
		return Result{Status: http.StatusUnauthorized, Body: "Unauthorized"}
	}

	rowKey := string(cb.RowID)
	email := firstNonEmpty(cb.Email, cb.Fields.Email, missingValue)
	phone := firstNonEmpty(cb.Phone, cb.Fields.Phone, missingValue)
	subjectURL := firstNonEmpty(cb.LinkedInURL, cb.Fields.LinkedInURL, "")

	// Path (a): the callback carries everything needed. Works even after a
	// restart lost all correlation state.
	channel := firstNonEmpty(cb.Channel, cb.SlackChannel, "")
	messageTS := firstNonEmpty(cb.MessageTS, cb.SlackMessageTS, "")
	if channel != "" && messageTS != "" {
		if err := r.chat.UpdateMessage(ctx, channel, messageTS, resultText(subjectURL, email, phone)); err != nil {
			r.logger.Error("failed to update message from stateless callback", err,
				logging.String("channel", channel),
				logging.String("ts", messageTS))
			return Result{Status: http.StatusInternalServerError, Body: "error"}
		}
		if rowKey != "" {
			// Best effort: the entry may already be gone.
			if err := r.store.Delete(ctx, rowKey); err != nil {
				r.logger.Warn("failed to retire correlation entry",
					logging.String("key", rowKey), logging.Err(err))
			}
		}
		return Result{Status: http.StatusOK, Body: "ok"}
	}

	// Path (b): job identifier tracked in the store.
	key, entry, found := r.lookup(ctx, rowKey)
	if !found {
		// Benign: answering success avoids retry storms from the caller
		// when correlation is impossible.
		r.logger.Warn("callback matched no tracked entry",
			logging.String("row_id", rowKey))
		return Result{Status: http.StatusOK, Body: "No tracked entry; relay may have restarted."}
	}

	if subjectURL == "" {
		subjectURL = entry.SubjectURL
	}

	if err := r.chat.UpdateMessage(ctx, entry.Channel, entry.PlaceholderTS, resultText(subjectURL, email, phone)); err != nil {
		r.logger.Error("failed to update message from tracked callback", err,
			logging.String("key", key))
		return Result{Status: http.StatusInternalServerError, Body: "error"}
	}

	if err := r.store.Delete(ctx, key); err != nil {
		r.logger.Warn("failed to retire correlation entry",
			logging.String("key", key), logging.Err(err))
	}
	return Result{Status: http.StatusOK, Body: "ok"}
}

// lookup resolves the store entry for a callback: the row id when tracked,
// else — when the single-flight fallback is enabled — the oldest live entry.
func (r *Resolver) lookup(ctx context.Context, rowID string) (string, correlation.Entry, bool) {
	if rowID != "" {
		entry, ok, err := r.store.Get(ctx, rowID)
		if err != nil {
			r.logger.Error("correlation store read failed", err,
				logging.String("key", rowID))
		} else if ok {
			return rowID, entry, true
		}
	}

	if !r.singleFlight {
		return "", correlation.Entry{}, false
	}

	key, ok, err := r.store.FirstKey(ctx)
	if err != nil {
		r.logger.Error("correlation store scan failed", err)
		return "", correlation.Entry{}, false
	}
	if !ok {
		return "", correlation.Entry{}, false
	}

	entry, ok, err := r.store.Get(ctx, key)
	if err != nil || !ok {
		return "", correlation.Entry{}, false
	}
	return key, entry, true
}

// resultText formats the final message: linked subject when known, then
// labeled email and phone lines.
func resultText(subjectURL, email, phone string) string {
	subject := "this profile"
	if subjectURL != "" {
		subject = fmt.Sprintf("<%s|LinkedIn profile>", subjectURL)
	}
	return fmt.Sprintf("Results for %s\n• Email: %s\n• Phone: %s", subject, email, phone)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
