package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage(t *testing.T) {
	var got sendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL, "TOKEN")
	err := client.SendMessage(context.Background(), 42, "  Transaction registered  ")
	assert.NoError(t, err)
	assert.Equal(t, int64(42), got.ChatID)
	assert.Equal(t, "Transaction registered", got.Text)
}

func TestSendMessageEmptyText(t *testing.T) {
	var got sendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(nil, server.URL, "TOKEN")
	assert.NoError(t, client.SendMessage(context.Background(), 1, " "))
	assert.Equal(t, "(empty)", got.Text)
}

func TestSendMessageSplitsLongText(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.LessOrEqual(t, len([]rune(req.Text)), maxMessageLength)
		calls++
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(nil, server.URL, "TOKEN")
	assert.NoError(t, client.SendMessage(context.Background(), 1, strings.Repeat("a", maxMessageLength*2+10)))
	assert.Equal(t, 3, calls)
}

func TestSendMessageAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer server.Close()

	client := NewClient(nil, server.URL, "TOKEN")
	err := client.SendMessage(context.Background(), 1, "hi")
	apiErr := &APIError{}
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "sendMessage", apiErr.Method)
	assert.Contains(t, apiErr.Description, "chat not found")
}

func TestConnectionErrorHidesToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(nil, url, "SUPERSECRET")
	err := client.SendMessage(context.Background(), 1, "hi")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SUPERSECRET")
}

func TestSetWebhook(t *testing.T) {
	var got setWebhookRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/setWebhook", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true,"result":true,"description":"Webhook was set"}`))
	}))
	defer server.Close()

	client := NewClient(nil, server.URL, "TOKEN")
	err := client.SetWebhook(context.Background(), "https://bot.example.com/api/v1/webhook/telegram", "s3cret")
	assert.NoError(t, err)
	assert.Equal(t, "https://bot.example.com/api/v1/webhook/telegram", got.Url)
	assert.Equal(t, "s3cret", got.SecretToken)
	assert.Equal(t, []string{"message"}, got.AllowedUpdates)
}

func TestGetMe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true,"result":{"id":7,"is_bot":true,"username":"finance_bot"}}`))
	}))
	defer server.Close()

	client := NewClient(nil, server.URL, "TOKEN")
	me, err := client.GetMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), me.ID)
	assert.True(t, me.IsBot)
	assert.Equal(t, "finance_bot", me.Username)
}

func TestUpdateDecodingIgnoresUnknownFields(t *testing.T) {
	raw := `{"update_id":10,"message":{"message_id":3,"text":"paid 30 on pix","chat":{"id":99,"type":"private","first_name":"A"},"date":1700000000}}`
	update := &Update{}
	require.NoError(t, json.Unmarshal([]byte(raw), update))
	assert.True(t, update.HasText())
	assert.Equal(t, int64(99), update.Message.Chat.ID)

	empty := &Update{UpdateID: 11}
	assert.False(t, empty.HasText())
}

func TestSplitMessagePrefersNewlines(t *testing.T) {
	text := strings.Repeat("a", 7) + "\n" + strings.Repeat("b", 5)
	chunks := splitMessage(text, 10)
	assert.Equal(t, []string{strings.Repeat("a", 7) + "\n", strings.Repeat("b", 5)}, chunks)
}
