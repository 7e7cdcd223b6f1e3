package common

const (
	TransactionTypeExpense = "expense"
	TransactionTypeIncome  = "income"

	ServiceTelegram = "telegram"
	ServiceWhatsapp = "whatsapp"

	EventUserCreated        = "user.created"
	EventTransactionCreated = "transaction.created"
	EventTransactionDeleted = "transaction.deleted"

	DefaultTransactionListLimit = 10
	MaxTransactionListLimit     = 100
)
