package poller

import (
	"context"
	"fmt"
	"strconv"

	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
	"github.com/arhteh596/granovskicrm-sub002/internal/messages"
	"github.com/arhteh596/granovskicrm-sub002/internal/notify"
)

// Transfer tells managers about clients handed over to them.
type Transfer struct {
	source domain.ClientSource
	sink   Sink
}

// NewTransfer creates the transfer-detection checker.
func NewTransfer(source domain.ClientSource, sink Sink) *Transfer {
	return &Transfer{source: source, sink: sink}
}

func (p *Transfer) Name() string { return "transfer" }

// Check notifies the receiving manager once per transferred client.
func (p *Transfer) Check(ctx context.Context) error {
	clients, err := p.source.ClientsByStatus(ctx, domain.StatusTransfer)
	if err != nil {
		return fmt.Errorf("load transferred clients: %w", err)
	}

	for _, c := range clients {
		if c.TransferredTo == nil {
			continue
		}
		title, message := messages.ClientTransferred(c.DisplayName())
		p.sink.Deliver(ctx, domain.Event{
			UserID:  strconv.FormatInt(*c.TransferredTo, 10),
			Key:     notify.TransferKey(c.ID),
			Title:   title,
			Message: message,
		})
	}
	return nil
}
