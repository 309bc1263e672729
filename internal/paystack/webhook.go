package paystack

// Webhook event types the service recognizes. Anything else is logged and
// ignored.
const (
	EventChargeSuccess   = "charge.success"
	EventChargeFailed    = "charge.failed"
	EventTransferSuccess = "transfer.success"
	EventTransferFailed  = "transfer.failed"
)

// WebhookEvent is the body of an inbound Paystack notification.
type WebhookEvent struct {
	Event string           `json:"event"`
	Data  WebhookEventData `json:"data"`
}

// WebhookEventData is the charge payload inside a webhook event. Amount is
// in kobo.
type WebhookEventData struct {
	Reference     string        `json:"reference"`
	Status        string        `json:"status"`
	Channel       string        `json:"channel"`
	Amount        int64         `json:"amount"`
	Currency      string        `json:"currency"`
	Authorization Authorization `json:"authorization"`
}
