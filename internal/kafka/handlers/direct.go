package handlers

import (
	"encoding/json"

	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
	"github.com/arhteh596/granovskicrm-sub002/internal/notify"
)

// TopicCommands carries ready-made notifications, e.g. relayed push events.
const TopicCommands = "notification-commands"

func init() {
	RegisterDirect(TopicCommands, handleDirectCommand)
}

func handleDirectCommand(data []byte) *domain.Event {
	var cmd struct {
		CommandID string `json:"commandId"`
		UserID    string `json:"userId"`
		Title     string `json:"title"`
		Body      string `json:"body"`
	}
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil
	}
	if cmd.UserID == "" || (cmd.Title == "" && cmd.Body == "") {
		return nil
	}

	ev := &domain.Event{UserID: cmd.UserID, Title: cmd.Title, Message: cmd.Body}
	if cmd.CommandID != "" {
		ev.Key = notify.CommandKey(cmd.CommandID)
	}
	return ev
}
