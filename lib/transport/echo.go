package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/finagent/finance-agent/lib"
	"github.com/finagent/finance-agent/lib/responses"
	"github.com/finagent/finance-agent/lib/service"
	"github.com/finagent/finance-agent/telegram"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/ziflex/lecho/v3"
	"golang.org/x/time/rate"
)

// InitEcho builds the public server with the middlewares every route shares.
func InitEcho(c *service.Config, logger *lecho.Logger) (e *echo.Echo) {
	e = echo.New()
	e.HideBanner = true

	e.HTTPErrorHandler = responses.HTTPErrorHandler
	e.Validator = &lib.CustomValidator{Validator: validator.New()}

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("250K"))
	// global ceiling in requests per second, per client ip
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(c.DefaultRateLimit))))

	e.Logger = logger
	e.Use(middleware.RequestID())

	// sentry.Init must already have run
	if c.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{}))
	}
	return e
}

func CreateLoggingMiddleware(logger *lecho.Logger) echo.MiddlewareFunc {
	return lecho.Middleware(lecho.Config{
		Logger: logger,
		Enricher: func(c echo.Context, logger zerolog.Context) zerolog.Context {
			if chatID := c.Get("ChatID"); chatID != nil {
				logger = logger.Interface("ChatID", chatID)
			}
			return logger.Interface("UserID", c.Get("UserID"))
		},
	})
}

// CreateChatIDMiddleware sets ChatID from a Telegram update body ahead of the
// logging middleware, which reads the echo context before the handler runs.
// The body is restored for the handler's Bind.
func CreateChatIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			body, err := io.ReadAll(c.Request().Body)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, responses.BadArgumentsError)
			}
			c.Request().Body = io.NopCloser(bytes.NewReader(body))

			var update telegram.Update
			if json.Unmarshal(body, &update) == nil && update.Message != nil && update.Message.Chat.ID != 0 {
				c.Set("ChatID", update.Message.Chat.ID)
			}
			return next(c)
		}
	}
}

// CreateRateLimitMiddleware limits per user once authenticated, per client ip
// otherwise.
func CreateRateLimitMiddleware(requestsPerSecond int, burst int) echo.MiddlewareFunc {
	config := middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{Rate: rate.Limit(requestsPerSecond), Burst: burst},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			id := ctx.RealIP()
			if userId, ok := ctx.Get("UserID").(uuid.UUID); ok {
				id = userId.String()
			}
			return id, nil
		},
	}

	return middleware.RateLimiterWithConfig(config)
}

// InitPrometheusEcho instruments e and returns a separate server exposing its
// metrics.
func InitPrometheusEcho(logger *lecho.Logger, e *echo.Echo) *echo.Echo {
	echoPrometheus := echo.New()
	echoPrometheus.HideBanner = true
	prom := prometheus.NewPrometheus("finance_agent", func(c echo.Context) bool {
		return c.Path() == "/health"
	})
	e.Use(prom.HandlerFunc)
	prom.SetMetricsPath(echoPrometheus)
	echoPrometheus.Logger = logger
	return echoPrometheus
}

func StartPrometheusEcho(c *service.Config, echoPrometheus *echo.Echo) {
	echoPrometheus.Logger.Infof("Starting prometheus on port %d", c.PrometheusPort)
	if err := echoPrometheus.Start(fmt.Sprintf(":%d", c.PrometheusPort)); err != nil && err != http.ErrServerClosed {
		echoPrometheus.Logger.Error(err)
	}
}
