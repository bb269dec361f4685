package messages

// ─── Callback builders ───────────────────────────────────────────────────────

func CallbackSoon(clientName string) (string, string) {
	return CallbackSoonTitle, clientName
}

func CallbackNow(clientName string) (string, string) {
	return CallbackNowTitle, clientName
}

// ─── Transfer builders ───────────────────────────────────────────────────────

func ClientTransferred(clientName string) (string, string) {
	return ClientTransferredTitle, clientName
}

func ClientAssigned(clientName string) (string, string) {
	return ClientAssignedTitle, clientName
}

// ─── Push builders ───────────────────────────────────────────────────────────

func TestPush() (string, string) {
	return TestPushTitle, TestPushBody
}
