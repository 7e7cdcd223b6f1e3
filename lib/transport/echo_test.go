package transport

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finagent/finance-agent/telegram"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ziflex/lecho/v3"
)

func postUpdate(e *echo.Echo, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRequestLogCarriesChatID(t *testing.T) {
	var logs bytes.Buffer
	e := echo.New()
	var bound telegram.Update
	e.POST("/webhook", func(c echo.Context) error {
		require.NoError(t, c.Bind(&bound))
		return c.NoContent(http.StatusOK)
	}, CreateChatIDMiddleware(), CreateLoggingMiddleware(lecho.New(&logs)))

	rec := postUpdate(e, `{"update_id": 7, "message": {"text": "paid 10", "chat": {"id": 4242}}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, logs.String(), `"ChatID":4242`)
	// the handler still sees the whole body
	require.NotNil(t, bound.Message)
	assert.Equal(t, "paid 10", bound.Message.Text)
	assert.Equal(t, int64(4242), bound.Message.Chat.ID)
}

func TestChatIDMiddlewareIgnoresOtherBodies(t *testing.T) {
	e := echo.New()
	var chatID interface{}
	var body []byte
	e.POST("/webhook", func(c echo.Context) error {
		chatID = c.Get("ChatID")
		body, _ = io.ReadAll(c.Request().Body)
		return c.NoContent(http.StatusOK)
	}, CreateChatIDMiddleware())

	postUpdate(e, `{"update_id": 8, "my_chat_member": {}}`)
	assert.Nil(t, chatID)

	postUpdate(e, `not json`)
	assert.Nil(t, chatID)
	assert.Equal(t, "not json", string(body))
}
