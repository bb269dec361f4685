package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
	"github.com/arhteh596/granovskicrm-sub002/internal/messages"
	"github.com/arhteh596/granovskicrm-sub002/internal/notify"
)

// TopicCRM carries client lifecycle events from the CRM backend.
const TopicCRM = "crm-events"

func init() {
	Register(TopicCRM, "CLIENT_TRANSFERRED", handleClientTransferred)
	Register(TopicCRM, "CLIENT_ASSIGNED", handleClientAssigned)
}

type crmEnv struct {
	EventType string `json:"eventType"`
	EventID   string `json:"eventId"`
	Payload   struct {
		ClientID    int64  `json:"clientId"`
		CEOName     string `json:"ceoName"`
		CompanyName string `json:"companyName"`
		ToUserID    int64  `json:"toUserId"`
	} `json:"payload"`
}

func parseCRMEnv(data []byte) (*crmEnv, bool) {
	var env crmEnv
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}
	if env.Payload.ClientID == 0 || env.Payload.ToUserID == 0 {
		return nil, false
	}
	return &env, true
}

func (e *crmEnv) client() domain.Client {
	return domain.Client{ID: e.Payload.ClientID, CEOName: e.Payload.CEOName, CompanyName: e.Payload.CompanyName}
}

// A transfer shares its key with the transfer poller, so whichever sees it first wins.
func handleClientTransferred(data []byte) *domain.Event {
	env, ok := parseCRMEnv(data)
	if !ok {
		return nil
	}
	title, message := messages.ClientTransferred(env.client().DisplayName())
	return &domain.Event{
		UserID:  strconv.FormatInt(env.Payload.ToUserID, 10),
		Key:     notify.TransferKey(env.Payload.ClientID),
		Title:   title,
		Message: message,
	}
}

func handleClientAssigned(data []byte) *domain.Event {
	env, ok := parseCRMEnv(data)
	if !ok || env.EventID == "" {
		return nil
	}
	title, message := messages.ClientAssigned(env.client().DisplayName())
	return &domain.Event{
		UserID:  strconv.FormatInt(env.Payload.ToUserID, 10),
		Key:     notify.KeyPrefix + "assign_" + env.EventID,
		Title:   title,
		Message: message,
	}
}
