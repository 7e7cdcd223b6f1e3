package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultApiUrl = "https://api.telegram.org"

	// SecretTokenHeader carries the secret given to setWebhook on every delivery.
	SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

	// Telegram rejects longer messages.
	maxMessageLength = 4096
)

// APIError is returned when the Bot API answers with a non 2xx status or ok=false.
type APIError struct {
	Method      string
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: http %d: %s", e.Method, e.StatusCode, e.Description)
}

type Client struct {
	http    *http.Client
	baseUrl string
	token   string
}

func NewClient(httpClient *http.Client, baseUrl, token string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if baseUrl == "" {
		baseUrl = DefaultApiUrl
	}
	return &Client{
		http:    httpClient,
		baseUrl: strings.TrimRight(baseUrl, "/"),
		token:   token,
	}
}

// SendMessage posts text to a chat, splitting it when it exceeds Telegram's limit.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		text = "(empty)"
	}
	for _, chunk := range splitMessage(text, maxMessageLength) {
		req := sendMessageRequest{
			ChatID:                chatID,
			Text:                  chunk,
			DisableWebPagePreview: true,
		}
		if err := c.call(ctx, "sendMessage", req, nil); err != nil {
			return err
		}
	}
	return nil
}

// SetWebhook points Telegram at url. An empty secret disables secret token checks.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	return c.call(ctx, "setWebhook", setWebhookRequest{
		Url:            url,
		SecretToken:    secret,
		AllowedUpdates: []string{"message"},
	}, nil)
}

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	out := &getMeResponse{}
	if err := c.call(ctx, "getMe", nil, out); err != nil {
		return nil, err
	}
	return &out.Result, nil
}

func (c *Client) call(ctx context.Context, method string, body interface{}, out interface{}) error {
	url := fmt.Sprintf("%s/bot%s/%s", c.baseUrl, c.token, method)
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		// the url carries the bot token, keep it out of logs
		return fmt.Errorf("telegram %s: %w", method, redact(err, c.token))
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	var ok apiResponse
	_ = json.Unmarshal(raw, &ok)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !ok.OK {
		description := ok.Description
		if description == "" {
			description = strings.TrimSpace(string(raw))
		}
		return &APIError{Method: method, StatusCode: resp.StatusCode, Description: description}
	}
	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

func redact(err error, token string) error {
	if token == "" {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), token, "<token>"))
}

func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}
	chunks := []string{}
	for len(runes) > 0 {
		end := limit
		if end > len(runes) {
			end = len(runes)
		} else if cut := lastNewline(runes[:end]); cut > limit/2 {
			end = cut + 1
		}
		chunks = append(chunks, string(runes[:end]))
		runes = runes[end:]
	}
	return chunks
}

func lastNewline(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == '\n' {
			return i
		}
	}
	return -1
}
