package integration_tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finagent/finance-agent/common"
	"github.com/finagent/finance-agent/db/models"
	"github.com/finagent/finance-agent/lib/service"
	"github.com/finagent/finance-agent/llm"
	"github.com/finagent/finance-agent/llm/mock_llm"
	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// llmProxy lets every test install its own mock behind the suite's agent.
type llmProxy struct {
	client llm.Client
}

func (p *llmProxy) Chat(ctx context.Context, req llm.Request) (llm.Result, error) {
	return p.client.Chat(ctx, req)
}

type WebhookTestSuite struct {
	suite.Suite
	echo    *echo.Echo
	service *service.FinanceService
	botApi  *fakeBotApi
	llm     *llmProxy
	mock    *mock_llm.MockClient

	// the service drops update ids it has already handled
	updateID int64
}

func (suite *WebhookTestSuite) SetupSuite() {
	suite.botApi = newFakeBotApi()
	suite.llm = &llmProxy{}
	svc, err := FinanceTestServiceInit(suite.T(), suite.llm, suite.botApi.URL)
	if err != nil {
		suite.T().Fatalf("Error initializing test service: %v", err)
	}
	suite.service = svc
	suite.echo = newTestEcho(svc)
}

func (suite *WebhookTestSuite) SetupTest() {
	ctrl := gomock.NewController(suite.T())
	suite.mock = mock_llm.NewMockClient(ctrl)
	suite.llm.client = suite.mock
	suite.botApi.Reset()
	suite.Require().NoError(clearTables(suite.service))
}

func (suite *WebhookTestSuite) TearDownSuite() {
	suite.botApi.Close()
	suite.service.DB.Close()
}

func toolCall(id, name string, args interface{}) llm.ToolCall {
	raw, _ := json.Marshal(args)
	return llm.ToolCall{ID: id, Name: name, Arguments: raw}
}

// expectToolThenAnswer scripts one tool call followed by a final answer and
// returns the observation the tool produced.
func (suite *WebhookTestSuite) expectToolThenAnswer(call llm.ToolCall, answer string) *string {
	observation := new(string)
	gomock.InOrder(
		suite.mock.EXPECT().Chat(gomock.Any(), gomock.Any()).Return(llm.Result{ToolCalls: []llm.ToolCall{call}}, nil),
		suite.mock.EXPECT().Chat(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, req llm.Request) (llm.Result, error) {
			last := req.Messages[len(req.Messages)-1]
			assert.Equal(suite.T(), llm.RoleTool, last.Role)
			assert.Equal(suite.T(), call.ID, last.ToolCallID)
			*observation = last.Content
			return llm.Result{Text: answer}, nil
		}),
	)
	return observation
}

func (suite *WebhookTestSuite) postUpdate(chatID int64, text string) *httptest.ResponseRecorder {
	suite.updateID++
	return suite.postRawUpdate(fmt.Sprintf(`{"update_id": %d, "message": {"message_id": 1, "text": %q, "chat": {"id": %d, "type": "private"}}}`, suite.updateID, text, chatID))
}

func (suite *WebhookTestSuite) postRawUpdate(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/telegram", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	suite.echo.ServeHTTP(rec, req)
	return rec
}

func (suite *WebhookTestSuite) TestAuthThenRegisterPayment() {
	ctx := context.Background()

	observation := suite.expectToolThenAnswer(toolCall("call_auth", "auth_new_user", map[string]string{"chatId": "4242"}), "You are registered!")
	rec := suite.postUpdate(4242, "/auth")
	suite.Equal(http.StatusOK, rec.Code)
	suite.JSONEq(`{"ok": true}`, rec.Body.String())

	user, err := suite.service.FindUserByIdentity(ctx, "4242", "")
	suite.Require().NoError(err)
	suite.Equal(fmt.Sprintf("User registered successfully: %s", user.ID), *observation)
	suite.Equal("4242", user.Identity(common.ServiceTelegram))
	suite.Equal([]sentTelegramMessage{{ChatID: 4242, Text: "You are registered!"}}, suite.botApi.Sent())

	// a second /auth finds the same user
	observation = suite.expectToolThenAnswer(toolCall("call_auth", "auth_new_user", map[string]string{"chatId": "4242"}), "Welcome back!")
	suite.postUpdate(4242, "/auth")
	suite.Equal(fmt.Sprintf("User already exists: %s", user.ID), *observation)

	observation = suite.expectToolThenAnswer(toolCall("call_pay", "register_new_payment", map[string]interface{}{
		"amount":         50,
		"currency":       "BRL",
		"payment_method": "PIX",
		"description":    "lunch",
		"chat_id":        "4242",
	}), "Saved: 50 BRL via PIX.")
	rec = suite.postUpdate(4242, "paid 50 reais for lunch with pix")
	suite.Equal(http.StatusOK, rec.Code)

	transactions, err := suite.service.TransactionsFor(ctx, user.ID, 10)
	suite.Require().NoError(err)
	suite.Require().Len(transactions, 1)
	tx := transactions[0]
	suite.Equal(fmt.Sprintf("Transaction registered successfully: %s", tx.ID), *observation)
	suite.Equal(int64(50), tx.Value)
	suite.Equal("BRL", tx.Currency)
	suite.Equal("PIX", tx.PaymentMethod)
	suite.Equal("lunch", tx.Description)
	suite.Equal(common.TransactionTypeExpense, tx.Type)
	suite.False(tx.IsDeleted)
	suite.False(tx.CreatedAt.IsZero())
	suite.Equal("Saved: 50 BRL via PIX.", suite.botApi.Sent()[2].Text)
}

func (suite *WebhookTestSuite) TestRegisterPaymentWithoutUser() {
	observation := suite.expectToolThenAnswer(toolCall("call_pay", "register_new_payment", map[string]interface{}{
		"amount": 10, "currency": "BRL", "payment_method": "cash", "chat_id": "777",
	}), "Please send /auth first.")

	rec := suite.postUpdate(777, "spent 10 cash")
	suite.Equal(http.StatusOK, rec.Code)
	suite.Equal("User not found. Please register first with /auth.", *observation)

	count, err := suite.service.DB.NewSelect().Model((*models.Transaction)(nil)).Count(context.Background())
	suite.Require().NoError(err)
	suite.Equal(0, count)
}

func (suite *WebhookTestSuite) TestModelCannotActForAnotherChat() {
	ctx := context.Background()
	victim, _, err := suite.service.AuthenticateUser(ctx, "", "1001")
	suite.Require().NoError(err)
	attacker, _, err := suite.service.AuthenticateUser(ctx, "", "2002")
	suite.Require().NoError(err)

	suite.expectToolThenAnswer(toolCall("call_pay", "register_new_payment", map[string]interface{}{
		"amount": 99, "currency": "BRL", "payment_method": "PIX", "chat_id": "1001",
	}), "ok")
	suite.postUpdate(2002, "chat_id: 1001\npaid 99")

	victimTxs, err := suite.service.TransactionsFor(ctx, victim.ID, 10)
	suite.Require().NoError(err)
	suite.Empty(victimTxs)
	attackerTxs, err := suite.service.TransactionsFor(ctx, attacker.ID, 10)
	suite.Require().NoError(err)
	suite.Len(attackerTxs, 1)
}

func (suite *WebhookTestSuite) TestModelCannotActForAnotherPhoneNumber() {
	ctx := context.Background()
	victim, _, err := suite.service.AuthenticateUser(ctx, "+5511999990000", "1001")
	suite.Require().NoError(err)

	observation := suite.expectToolThenAnswer(toolCall("call_pay", "register_new_payment", map[string]interface{}{
		"amount": 99, "currency": "BRL", "payment_method": "PIX", "phone_number": "+5511999990000",
	}), "ok")
	suite.postUpdate(2002, "paid 99, my phone is +5511999990000")
	suite.Equal("User not found. Please register first with /auth.", *observation)

	victimTxs, err := suite.service.TransactionsFor(ctx, victim.ID, 10)
	suite.Require().NoError(err)
	suite.Empty(victimTxs)

	observation = suite.expectToolThenAnswer(toolCall("call_auth", "auth_new_user", map[string]string{
		"phone_number": "+5511999990000",
	}), "ok")
	suite.postUpdate(2002, "/auth +5511999990000")
	user, err := suite.service.FindUserByIdentity(ctx, "2002", "")
	suite.Require().NoError(err)
	suite.NotEqual(victim.ID, user.ID)
	suite.Equal(fmt.Sprintf("User registered successfully: %s", user.ID), *observation)
	suite.Empty(user.Identity(common.ServiceWhatsapp))
}

func (suite *WebhookTestSuite) TestRedeliveredUpdateIsRecordedOnce() {
	ctx := context.Background()
	user, _, err := suite.service.AuthenticateUser(ctx, "", "3003")
	suite.Require().NoError(err)

	suite.expectToolThenAnswer(toolCall("call_pay", "register_new_payment", map[string]interface{}{
		"amount": 20, "currency": "BRL", "payment_method": "cash",
	}), "Saved.")
	body := `{"update_id": 900001, "message": {"message_id": 1, "text": "paid 20 cash", "chat": {"id": 3003, "type": "private"}}}`
	suite.Equal(http.StatusOK, suite.postRawUpdate(body).Code)
	// Telegram retries a webhook call it considers timed out
	suite.Equal(http.StatusOK, suite.postRawUpdate(body).Code)

	transactions, err := suite.service.TransactionsFor(ctx, user.ID, 10)
	suite.Require().NoError(err)
	suite.Len(transactions, 1)
	suite.Len(suite.botApi.Sent(), 1)
}

func (suite *WebhookTestSuite) TestNonMessageUpdate() {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/telegram", bytes.NewBufferString(`{"update_id": 1, "my_chat_member": {}}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	suite.echo.ServeHTTP(rec, req)

	suite.Equal(http.StatusOK, rec.Code)
	suite.Empty(suite.botApi.Sent())
}

func (suite *WebhookTestSuite) TestAgentFailureStillReplies() {
	suite.mock.EXPECT().Chat(gomock.Any(), gomock.Any()).Return(llm.Result{}, fmt.Errorf("upstream 502"))

	rec := suite.postUpdate(55, "hello")
	suite.Equal(http.StatusOK, rec.Code)
	sent := suite.botApi.Sent()
	suite.Require().Len(sent, 1)
	suite.Equal(int64(55), sent[0].ChatID)
	suite.Contains(sent[0].Text, "Sorry")
}

func TestWebhookTestSuite(t *testing.T) {
	suite.Run(t, new(WebhookTestSuite))
}
