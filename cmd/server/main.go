package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/finagent/finance-agent/agent"
	"github.com/finagent/finance-agent/db"
	"github.com/finagent/finance-agent/docs"
	"github.com/finagent/finance-agent/lib"
	"github.com/finagent/finance-agent/lib/service"
	"github.com/finagent/finance-agent/lib/tokens"
	"github.com/finagent/finance-agent/lib/transport"
	"github.com/finagent/finance-agent/llm/openai"
	"github.com/finagent/finance-agent/rabbitmq"
	"github.com/finagent/finance-agent/telegram"
	"github.com/finagent/finance-agent/tools"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
	ddEcho "gopkg.in/DataDog/dd-trace-go.v1/contrib/labstack/echo.v4"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

// @title        Finance Agent
// @version      0.1.0
// @description  Telegram bot that records payments through a language model agent.

// @BasePath  /

// @securitydefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization

// @securitydefinitions.apikey  AdminToken
// @in                          header
// @name                        Authorization
// @schemes                     https http
func main() {

	c := &service.Config{}

	// Load configuration from environment variables
	err := godotenv.Load(".env")
	if err != nil {
		fmt.Println("Failed to load .env file")
	}
	err = envconfig.Process("", c)
	if err != nil {
		log.Fatalf("Error loading environment variables: %v", err)
	}

	// Setup logging to STDOUT or a configured log file
	logger := lib.Logger(c.LogLevel, c.LogFilePath)

	// Open a DB connection based on the configured DATABASE_URI
	dbConn, err := db.Open(c)
	if err != nil {
		logger.Fatalf("Error initializing db connection: %v", err)
	}
	defer dbConn.Close()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), time.Minute)
	defer cancelStartup()
	if err = db.WaitReady(startupCtx, dbConn, 30*time.Second); err != nil {
		logger.Fatalf("Error connecting to database: %v", err)
	}
	group, err := db.Migrate(startupCtx, dbConn)
	if err != nil {
		logger.Fatalf("Error migrating database: %v", err)
	}
	if group != nil && !group.IsZero() {
		logger.Infof("Migrated database to %s", group)
	}

	// Setup exception tracking with Sentry if configured
	// sentry init needs to happen before the echo middlewares are added
	if c.SentryDSN != "" {
		if err = sentry.Init(sentry.ClientOptions{
			Dsn:              c.SentryDSN,
			IgnoreErrors:     []string{"401"},
			EnableTracing:    c.SentryTracesSampleRate > 0,
			TracesSampleRate: c.SentryTracesSampleRate,
		}); err != nil {
			logger.Errorf("sentry init error: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// If no RABBITMQ_URI was provided we will not attempt to create a client
	// No rabbitmq features will be available in this case.
	var rabbitmqClient rabbitmq.Client
	if c.RabbitMQUri != "" {
		amqpClient, err := rabbitmq.DialAMQP(c.RabbitMQUri, rabbitmq.WithAmqpLogger(logger))
		if err != nil {
			logger.Fatal(err)
		}

		rabbitmqClient, err = rabbitmq.NewClient(amqpClient,
			rabbitmq.WithLogger(logger),
			rabbitmq.WithEventExchange(c.RabbitMQEventExchange),
		)
		if err != nil {
			logger.Fatal(err)
		}

		// close the connection gently at the end of the runtime
		defer rabbitmqClient.Close()
	}

	telegramClient := telegram.NewClient(
		&http.Client{Timeout: time.Duration(c.Telegram.SendTimeoutSecond) * time.Second},
		c.Telegram.ApiUrl,
		c.Telegram.BotToken,
	)
	if bot, err := telegramClient.GetMe(startupCtx); err != nil {
		logger.Errorf("Could not reach the telegram bot api: %v", err)
	} else {
		logger.Infof("Connected to telegram as @%s", bot.Username)
	}

	svc := &service.FinanceService{
		Config:      c,
		DB:          dbConn,
		Logger:      logger,
		Telegram:    telegramClient,
		EventPubSub: service.NewPubsub(),
	}
	llmClient := openai.New(c.LLM.BaseUrl, c.LLM.ApiKey, time.Duration(c.LLM.TimeoutSeconds)*time.Second)
	svc.Agent = agent.New(llmClient, tools.NewFinanceRegistry(svc), agent.Config{
		Model:           c.LLM.Model,
		Temperature:     c.LLM.Temperature,
		MaxSteps:        c.LLM.MaxSteps,
		DefaultCurrency: c.LLM.DefaultCurrency,
	}, logger)

	//init echo server
	e := transport.InitEcho(c, logger)
	//if Datadog is configured, add datadog middleware
	if c.DatadogAgentUrl != "" {
		tracer.Start(tracer.WithAgentAddr(c.DatadogAgentUrl))
		defer tracer.Stop()
		e.Use(ddEcho.Middleware(ddEcho.WithServiceName("finance-agent")))
	}

	//Start Prometheus server if necessary
	var echoPrometheus *echo.Echo
	if c.EnablePrometheus {
		echoPrometheus = transport.InitPrometheusEcho(logger, e)
		go transport.StartPrometheusEcho(c, echoPrometheus)
	}

	logMw := transport.CreateLoggingMiddleware(logger)
	strictRateLimitMiddleware := transport.CreateRateLimitMiddleware(c.StrictRateLimit, c.BurstRateLimit)
	secured := e.Group("", tokens.Middleware(c.JWTSecret), logMw)

	transport.RegisterEndpoints(svc, e, secured, strictRateLimitMiddleware, tokens.AdminTokenMiddleware(c.AdminToken), logMw)

	// Swagger API spec
	docs.SwaggerInfo.Host = c.Host
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	var backgroundWg sync.WaitGroup
	backGroundCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	//Point telegram at this server
	backgroundWg.Add(1)
	go func() {
		defer backgroundWg.Done()
		// failures are already logged, the bot keeps serving whatever webhook is set
		_ = svc.RegisterTelegramWebhook(backGroundCtx)
	}()

	//Start webhook subscription
	if svc.Config.WebhookUrl != "" {
		backgroundWg.Add(1)
		go func() {
			svc.StartWebhookSubscription(backGroundCtx)
			svc.Logger.Info("Webhook routine done")
			backgroundWg.Done()
		}()
	}
	//Start rabbit publisher
	if rabbitmqClient != nil {
		backgroundWg.Add(1)
		go func() {
			err := rabbitmqClient.StartPublishEvents(backGroundCtx,
				svc.SubscribeEvents,
				svc.EncodeEvent,
			)
			if err != nil && err != context.Canceled {
				svc.Logger.Error(err)
				sentry.CaptureException(err)
			}

			svc.Logger.Info("Rabbit event publisher done")
			backgroundWg.Done()
		}()
	}

	// Start server
	go func() {
		if err := e.Start(fmt.Sprintf(":%v", c.Port)); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	<-backGroundCtx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Error(err)
	}
	if echoPrometheus != nil {
		if err := echoPrometheus.Shutdown(ctx); err != nil {
			e.Logger.Error(err)
		}
	}
	//Wait for graceful shutdown of background routines
	backgroundWg.Wait()
	svc.Logger.Info("Finance agent exiting gracefully. Goodbye.")
}
