package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/finagent/finance-agent/llm"
	"github.com/finagent/finance-agent/tools"
	"github.com/ziflex/lecho/v3"
)

var ErrMaxStepsExceeded = errors.New("agent did not reach an answer within the step limit")

const DefaultMaxSteps = 8

type Config struct {
	Model           string
	Temperature     float32
	MaxSteps        int
	DefaultCurrency string
}

// Agent alternates between the model and the tool registry until the model
// answers without calling a tool.
type Agent struct {
	client   llm.Client
	registry *tools.Registry
	config   Config
	logger   *lecho.Logger
}

func New(client llm.Client, registry *tools.Registry, config Config, logger *lecho.Logger) *Agent {
	if config.MaxSteps <= 0 {
		config.MaxSteps = DefaultMaxSteps
	}
	if config.DefaultCurrency == "" {
		config.DefaultCurrency = "BRL"
	}
	return &Agent{client: client, registry: registry, config: config, logger: logger}
}

// SystemPrompt instructs the model how to use the finance tools.
func SystemPrompt(defaultCurrency string) string {
	return "You are a financial assistant. Extract the chat_id from the message (it will be in the format 'chat_id: <id>'). " +
		"When users report payments or expenses, use the register_new_payment tool with the chat_id and other parameters: amount, currency, payment_method, description. " +
		"When users report money they received, use register_new_payment with type set to income. " +
		"Extract the information accurately from the user's message. " +
		fmt.Sprintf("Currency is usually %s unless the user says otherwise. ", defaultCurrency) +
		"Payment method examples: PIX, credit card, debit card, cash. " +
		"When received the /auth command, use the auth_new_user tool with the chat_id. " +
		"Use list_transactions, delete_transaction and spending_summary when the user asks about past transactions. " +
		"Reply in the language the user writes in, briefly."
}

// Run answers text sent from chatID. Tools always act on chatID, whatever
// chat id the model passes in its arguments.
func (a *Agent) Run(ctx context.Context, chatID int64, text string) (string, error) {
	ctx = tools.WithChatID(ctx, strconv.FormatInt(chatID, 10))
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: SystemPrompt(a.config.DefaultCurrency)},
		{Role: llm.RoleUser, Content: text},
	}
	definitions := a.registry.Definitions()

	for step := 0; step < a.config.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("context cancelled at step %d: %w", step, err)
		}
		start := time.Now()
		result, err := a.client.Chat(ctx, llm.Request{
			Model:       a.config.Model,
			Messages:    messages,
			Tools:       definitions,
			Temperature: a.config.Temperature,
		})
		if err != nil {
			return "", fmt.Errorf("llm call failed at step %d: %w", step, err)
		}
		a.logger.Debugf("chat %d step %d: %d tool call(s), %d tokens in %s",
			chatID, step, len(result.ToolCalls), result.Usage.TotalTokens, time.Since(start))

		if len(result.ToolCalls) == 0 {
			return strings.TrimSpace(result.Text), nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   result.Text,
			ToolCalls: result.ToolCalls,
		})
		for _, call := range result.ToolCalls {
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    a.execute(ctx, chatID, call),
				ToolCallID: call.ID,
			})
		}
	}
	return "", ErrMaxStepsExceeded
}

func (a *Agent) execute(ctx context.Context, chatID int64, call llm.ToolCall) string {
	tool, ok := a.registry.Get(call.Name)
	if !ok {
		a.logger.Warnf("chat %d: model called unknown tool %s", chatID, call.Name)
		return fmt.Sprintf("error: unknown tool %q, available tools: %s", call.Name, a.registry.ToolNames())
	}
	observation, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		a.logger.Errorf("chat %d: tool %s failed: %v", chatID, call.Name, err)
		return fmt.Sprintf("error: %v", err)
	}
	a.logger.Infof("chat %d: tool %s returned %q", chatID, call.Name, observation)
	return observation
}
