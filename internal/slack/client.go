// Package slack implements the chat capability on top of the Slack Web API.
package slack

import (
	"context"
	"time"

	slackapi "github.com/slack-go/slack"
	"golang.org/x/time/rate"

	apperrors "enrich-relay/internal/common/errors"
)

// updateTimeout bounds chat.update calls; posts inherit the caller's context.
const updateTimeout = 15 * time.Second

// Client wraps the Slack Web API client. Outbound calls share a token-bucket
// throttle sized for Slack's Tier 3 Web API methods (~1 rps sustained with a
// small burst).
type Client struct {
	api     *slackapi.Client
	limiter *rate.Limiter
}

// Option customizes the underlying API client.
type Option func(*options)

type options struct {
	apiURL string
}

// WithAPIURL points the client at an alternate API base URL. Used in tests.
func WithAPIURL(url string) Option {
	return func(o *options) { o.apiURL = url }
}

// New creates a Client authenticated with the given bot token.
func New(token string, opts ...Option) *Client {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	apiOpts := []slackapi.Option{}
	if o.apiURL != "" {
		apiOpts = append(apiOpts, slackapi.OptionAPIURL(o.apiURL))
	}

	return &Client{
		api:     slackapi.New(token, apiOpts...),
		limiter: rate.NewLimiter(rate.Limit(1), 5),
	}
}

// PostThreadReply posts text as a threaded reply under threadTS with link
// previews disabled, returning the new message's timestamp identifier.
func (c *Client) PostThreadReply(ctx context.Context, channel, threadTS, text string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	_, ts, err := c.api.PostMessageContext(ctx, channel,
		slackapi.MsgOptionText(text, false),
		slackapi.MsgOptionTS(threadTS),
		slackapi.MsgOptionDisableLinkUnfurl(),
		slackapi.MsgOptionDisableMediaUnfurl(),
	)
	if err != nil {
		return "", apperrors.TransportError("failed to post thread reply", err).
			WithContext("channel", channel)
	}
	return ts, nil
}

// UpdateMessage overwrites the message at (channel, ts) with text.
func (c *Client) UpdateMessage(ctx context.Context, channel, ts, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	_, _, _, err := c.api.UpdateMessageContext(ctx, channel, ts,
		slackapi.MsgOptionText(text, false),
	)
	if err != nil {
		return apperrors.TransportError("failed to update message", err).
			WithContext("channel", channel).
			WithContext("ts", ts)
	}
	return nil
}

// PostEphemeral sends a notice visible only to user in channel.
func (c *Client) PostEphemeral(ctx context.Context, channel, user, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := c.api.PostEphemeralContext(ctx, channel, user,
		slackapi.MsgOptionText(text, false),
	)
	if err != nil {
		return apperrors.TransportError("failed to post ephemeral notice", err).
			WithContext("channel", channel).
			WithContext("user", user)
	}
	return nil
}
