package tokens

import (
	"fmt"
	"net/http"
	"time"

	"github.com/finagent/finance-agent/db/models"
	"github.com/finagent/finance-agent/lib/responses"
	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type jwtCustomClaims struct {
	ID string `json:"id"`

	jwt.StandardClaims
}

// GenerateAccessToken : Generate Access Token
func GenerateAccessToken(secret []byte, expiryInSeconds int, u *models.User) (string, error) {
	now := time.Now()
	claims := &jwtCustomClaims{
		u.ID.String(),
		jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(time.Second * time.Duration(expiryInSeconds)).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	t, err := token.SignedString(secret)
	if err != nil {
		return "", err
	}

	return t, nil
}

// ParseAccessToken verifies the signature and expiry of a token and returns
// the user id it was issued for.
func ParseAccessToken(secret []byte, tokenString string) (uuid.UUID, error) {
	claims := &jwtCustomClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(claims.ID)
}

const userContextKey = "UserID"

// Middleware authenticates requests with a bearer token and stores the user id
// under "UserID" in the echo context.
func Middleware(secret []byte) echo.MiddlewareFunc {
	jwtMiddleware := middleware.JWTWithConfig(middleware.JWTConfig{
		SigningKey:    secret,
		SigningMethod: middleware.AlgorithmHS256,
		Claims:        &jwtCustomClaims{},
		SuccessHandler: func(c echo.Context) {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return
			}
			claims, ok := token.Claims.(*jwtCustomClaims)
			if !ok {
				return
			}
			if userID, err := uuid.Parse(claims.ID); err == nil {
				c.Set(userContextKey, userID)
			}
		},
		ErrorHandlerWithContext: func(err error, c echo.Context) error {
			c.Logger().Debugf("rejected access token: %v", err)
			return echo.NewHTTPError(http.StatusUnauthorized, responses.BadAuthError)
		},
	})
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		// a signed token without a user id is still bad auth
		return jwtMiddleware(func(c echo.Context) error {
			if _, ok := c.Get(userContextKey).(uuid.UUID); !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, responses.BadAuthError)
			}
			return next(c)
		})
	}
}
