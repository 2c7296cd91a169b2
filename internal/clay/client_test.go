package clay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "enrich-relay/internal/common/errors"
)

func testJob() Job {
	return Job{
		ProfileURL:    "https://linkedin.com/in/jane-doe",
		Channel:       "C123",
		MessageTS:     "1700000000.000200",
		CallbackURL:   "https://relay.example.com/clay/callback",
		CallbackToken: "s3cret",
	}
}

func TestClientDisabledWithoutTransport(t *testing.T) {
	c := New(Config{}, nil)
	assert.False(t, c.Enabled())

	_, err := c.Submit(context.Background(), testJob())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClientWebhookSubmission(t *testing.T) {
	var gotBody map[string]interface{}
	var gotAuth string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]string{"id": "row-42"})
	}))
	defer ts.Close()

	c := New(Config{WebhookURL: ts.URL}, nil)
	require.True(t, c.Enabled())

	id, err := c.Submit(context.Background(), testJob())
	require.NoError(t, err)
	assert.Equal(t, "row-42", id)

	assert.Equal(t, "https://linkedin.com/in/jane-doe", gotBody["linkedin_url"])
	assert.Equal(t, "C123", gotBody["slack_channel"])
	assert.Equal(t, "1700000000.000200", gotBody["slack_message_ts"])
	assert.Equal(t, "https://relay.example.com/clay/callback", gotBody["callback_url"])
	assert.Equal(t, "s3cret", gotBody["callback_token"])
	assert.Empty(t, gotAuth, "webhook mode without a key sends no bearer header")
}

func TestClientWebhookBearerWhenKeySet(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	c := New(Config{WebhookURL: ts.URL, APIKey: "key-1"}, nil)
	_, err := c.Submit(context.Background(), testJob())
	require.NoError(t, err)
	assert.Equal(t, "Bearer key-1", gotAuth)
}

func TestClientWebhookTakesPrecedenceOverAPI(t *testing.T) {
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"row_id":"via-webhook"}`))
	}))
	defer webhook.Close()

	c := New(Config{WebhookURL: webhook.URL, APIBase: "http://unused.example.com", APIKey: "k"}, nil)
	id, err := c.Submit(context.Background(), testJob())
	require.NoError(t, err)
	assert.Equal(t, "via-webhook", id)
}

func TestClientRowSubmission(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]string{"id": "row-7"})
	}))
	defer ts.Close()

	c := New(Config{APIBase: ts.URL, APIKey: "key-1"}, nil)
	require.True(t, c.Enabled())

	id, err := c.Submit(context.Background(), testJob())
	require.NoError(t, err)
	assert.Equal(t, "row-7", id)
	assert.Equal(t, "/rows", gotPath)

	fields, ok := gotBody["fields"].(map[string]interface{})
	require.True(t, ok, "row submission nests the payload under fields")
	assert.Equal(t, "https://linkedin.com/in/jane-doe", fields["linkedin_url"])
}

func TestClientAPIBaseWithoutKeyIsDisabled(t *testing.T) {
	c := New(Config{APIBase: "https://api.clay.com"}, nil)
	assert.False(t, c.Enabled())
}

func TestClientNonSuccessStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))
	defer ts.Close()

	c := New(Config{WebhookURL: ts.URL}, nil)
	_, err := c.Submit(context.Background(), testJob())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeTransport))
}

func TestClientIDLessResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"queued"}`))
	}))
	defer ts.Close()

	c := New(Config{WebhookURL: ts.URL}, nil)
	id, err := c.Submit(context.Background(), testJob())
	require.NoError(t, err)
	assert.Empty(t, id, "an id-less response is a success with no job identifier")
}

func TestExtractJobID(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"id field", `{"id":"a1"}`, "a1"},
		{"row_id field", `{"row_id":"b2"}`, "b2"},
		{"rowId field", `{"rowId":"c3"}`, "c3"},
		{"id beats row_id", `{"id":"a1","row_id":"b2"}`, "a1"},
		{"numeric id", `{"id":42}`, "42"},
		{"large numeric id stays decimal", `{"id":10000000000}`, "10000000000"},
		{"no id", `{"ok":true}`, ""},
		{"not json", `plain text`, ""},
		{"empty body", ``, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJobID([]byte(tt.body)))
		})
	}
}
