package gateway

import (
	"context"

	"github.com/google/uuid"
	"github.com/printmate/order-service/pkg/logger"
)

// Webhook is the payment-gateway collaborator for webhook deployments:
// the gateway pulls invoice details from the upload response and pushes
// confirmations back over the payment webhook, so issuing a payment
// request amounts to minting a handle the gateway will echo back.
type Webhook struct {
	logger logger.Logger
}

func NewWebhook(logger logger.Logger) *Webhook {
	return &Webhook{logger: logger}
}

func (g *Webhook) RequestPayment(
	_ context.Context, requesterID string, amount int64, currency, description string,
) (string, error) {
	handle := uuid.NewString()

	g.logger.Infof("payment request %s for %s: %d %s (%s)",
		handle, requesterID, amount, currency, description)

	return handle, nil
}

// LogNotifier is the outbound chat-transport collaborator for webhook
// deployments: user-facing messages are logged, the transport picks
// invoice data up from the HTTP response.
type LogNotifier struct {
	logger logger.Logger
}

func NewLogNotifier(logger logger.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendText(_ context.Context, requesterID, text string) error {
	n.logger.Infof("notify %s: %s", requesterID, text)
	return nil
}

func (n *LogNotifier) SendInvoice(
	_ context.Context, requesterID, title, description string,
	amount int64, currency, handle string,
) error {
	n.logger.Infof("invoice %s to %s: %s / %s, %d %s",
		handle, requesterID, title, description, amount, currency)
	return nil
}
