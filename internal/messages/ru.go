package messages

// ─── Callbacks ───────────────────────────────────────────────────────────────

const (
	CallbackSoonTitle = "Перезвон через 5 минут"
	CallbackNowTitle  = "Время перезвона"
)

// ─── Transfers ───────────────────────────────────────────────────────────────

const (
	ClientTransferredTitle = "Переданный клиент"
	ClientAssignedTitle    = "Новый клиент"
)

// ─── Push ────────────────────────────────────────────────────────────────────

const (
	TestPushTitle = "Тестовое уведомление"
	TestPushBody  = "CRM push работает"
)
