package controllers

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/finagent/finance-agent/lib/responses"
	"github.com/finagent/finance-agent/telegram"
	"github.com/labstack/echo/v4"
)

type UpdateHandler interface {
	HandleTelegramUpdate(ctx context.Context, update *telegram.Update)
}

// TelegramWebhookController : TelegramWebhookController struct
type TelegramWebhookController struct {
	svc    UpdateHandler
	secret string
}

func NewTelegramWebhookController(svc UpdateHandler, secret string) *TelegramWebhookController {
	return &TelegramWebhookController{svc: svc, secret: secret}
}

type WebhookResponseBody struct {
	Ok bool `json:"ok"`
}

// Webhook godoc
// @Summary      Receive a Telegram update
// @Description  Runs the finance agent on a text message and replies in the chat
// @Accept       json
// @Produce      json
// @Tags         Telegram
// @Param        update  body      telegram.Update  true  "Telegram update"
// @Success      200     {object}  WebhookResponseBody
// @Failure      400     {object}  responses.ErrorResponse
// @Failure      401     {object}  responses.ErrorResponse
// @Router       /api/v1/webhook/telegram [post]
func (controller *TelegramWebhookController) Webhook(c echo.Context) error {
	if controller.secret != "" {
		got := c.Request().Header.Get(telegram.SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(controller.secret)) != 1 {
			return c.JSON(http.StatusUnauthorized, responses.UnauthorizedWebhookError)
		}
	}

	var update telegram.Update
	if err := c.Bind(&update); err != nil {
		c.Logger().Errorf("Failed to load telegram update: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&update); err != nil {
		c.Logger().Errorf("Invalid telegram update: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	// the reply is sent even if Telegram drops the connection meanwhile
	controller.svc.HandleTelegramUpdate(context.WithoutCancel(c.Request().Context()), &update)
	return c.JSON(http.StatusOK, &WebhookResponseBody{Ok: true})
}
