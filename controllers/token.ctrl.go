package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/finagent/finance-agent/db/models"
	"github.com/finagent/finance-agent/lib/responses"
	"github.com/finagent/finance-agent/lib/service"
	"github.com/finagent/finance-agent/lib/tokens"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type UserFinder interface {
	FindUser(ctx context.Context, userId uuid.UUID) (*models.User, error)
}

// TokenController issues API access tokens for existing users.
type TokenController struct {
	svc    UserFinder
	secret []byte
	expiry int
}

func NewTokenController(svc UserFinder, secret []byte, expiryInSeconds int) *TokenController {
	return &TokenController{svc: svc, secret: secret, expiry: expiryInSeconds}
}

type TokenRequestBody struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

type TokenResponseBody struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// IssueToken godoc
// @Summary      Issue an access token
// @Description  Admin only. Issues a JWT for the given user
// @Accept       json
// @Produce      json
// @Tags         Admin
// @Param        body  body      TokenRequestBody  true  "User"
// @Success      200   {object}  TokenResponseBody
// @Failure      400   {object}  responses.ErrorResponse
// @Failure      404   {object}  responses.ErrorResponse
// @Failure      500   {object}  responses.ErrorResponse
// @Router       /api/v1/admin/tokens [post]
// @Security     AdminToken
func (controller *TokenController) IssueToken(c echo.Context) error {
	var body TokenRequestBody
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load token request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	user, err := controller.svc.FindUser(c.Request().Context(), uuid.MustParse(body.UserID))
	if errors.Is(err, service.ErrUserNotFound) {
		return c.JSON(http.StatusNotFound, responses.UserNotFoundError)
	}
	if err != nil {
		return err
	}

	accessToken, err := tokens.GenerateAccessToken(controller.secret, controller.expiry, user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &TokenResponseBody{AccessToken: accessToken, ExpiresIn: controller.expiry})
}
