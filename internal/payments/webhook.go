package payments

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agrilink/agrilink-backend/internal/settlement"
	"github.com/agrilink/agrilink-backend/pkg/enums"
	pkgerrors "github.com/agrilink/agrilink-backend/pkg/errors"
	"github.com/agrilink/agrilink-backend/pkg/logger"
)

// GatewayEvent mirrors the relevant slice of a Square payment webhook.
type GatewayEvent struct {
	EventID string           `json:"event_id"`
	Type    string           `json:"type"`
	Data    GatewayEventData `json:"data"`
}

type GatewayEventData struct {
	Type   string             `json:"type"`
	ID     string             `json:"id"`
	Object GatewayEventObject `json:"object"`
}

type GatewayEventObject struct {
	Payment *GatewayPayment `json:"payment"`
}

// GatewayPayment carries the payment fields settlement cares about. The
// reference id holds our order id, set when the charge was created.
type GatewayPayment struct {
	ID          string              `json:"id"`
	Status      string              `json:"status"`
	ReferenceID string              `json:"reference_id"`
	AmountMoney *GatewayPaymentMoney `json:"amount_money"`
}

type GatewayPaymentMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type settler interface {
	Settle(ctx context.Context, input settlement.SettleInput) (*settlement.Result, error)
	RecordPaymentFailure(ctx context.Context, orderID uuid.UUID, reason string) error
}

// WebhookService routes verified gateway payment events into settlement.
type WebhookService struct {
	settlement settler
	logger     *logger.Logger
}

// WebhookServiceParams wires the webhook handler dependencies.
type WebhookServiceParams struct {
	Settlement settler
	Logger     *logger.Logger
}

func NewWebhookService(params WebhookServiceParams) (*WebhookService, error) {
	if params.Settlement == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "settlement service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &WebhookService{
		settlement: params.Settlement,
		logger:     params.Logger,
	}, nil
}

// HandleEvent processes a payment event. Unknown event types are ignored so
// the gateway does not retry them forever.
func (s *WebhookService) HandleEvent(ctx context.Context, event *GatewayEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway event required")
	}

	switch strings.ToLower(event.Type) {
	case "payment.created", "payment.updated":
	default:
		return nil
	}

	payment := event.Data.Object.Payment
	if payment == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment payload missing")
	}

	orderID, err := uuid.Parse(strings.TrimSpace(payment.ReferenceID))
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment reference is not an order id").
			WithDetails(map[string]any{"reference_id": payment.ReferenceID})
	}

	ctx = s.logger.WithOrderID(ctx, orderID.String())

	switch strings.ToUpper(payment.Status) {
	case "COMPLETED":
		input := settlement.SettleInput{
			OrderID:           orderID,
			Mode:              enums.SettlementModeGatewayWebhook,
			GatewayPaymentRef: &payment.ID,
		}
		if payment.AmountMoney != nil {
			amount := decimal.NewFromInt(payment.AmountMoney.Amount).Div(decimal.NewFromInt(100))
			input.Amount = &amount
		}
		result, err := s.settlement.Settle(ctx, input)
		if err != nil {
			return err
		}
		if result.AlreadySettled {
			s.logger.Info(ctx, "duplicate payment callback ignored")
		}
		return nil
	case "FAILED", "CANCELED":
		return s.settlement.RecordPaymentFailure(ctx, orderID, strings.ToLower(payment.Status))
	default:
		// APPROVED and PENDING resolve in a later callback.
		s.logger.Info(ctx, "payment event in non-final state, skipping")
		return nil
	}
}
