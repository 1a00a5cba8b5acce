package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/pkg/db/models"
	"github.com/agrilink/agrilink-backend/pkg/enums"
	pkgerrors "github.com/agrilink/agrilink-backend/pkg/errors"
	"github.com/agrilink/agrilink-backend/pkg/logger"
	"github.com/agrilink/agrilink-backend/pkg/square"
)

// gatewayClient is the slice of the Square client used to charge buyers.
type gatewayClient interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
}

type orderLoader interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// ChargeInput identifies the order and the tokenized payment source.
type ChargeInput struct {
	OrderID  uuid.UUID `json:"-"`
	BuyerID  uuid.UUID `json:"-"`
	SourceID string    `json:"source_id" validate:"required"`
}

// ChargeResult reports the gateway's answer. Settlement happens when the
// payment webhook confirms completion.
type ChargeResult struct {
	ProviderPaymentID string `json:"provider_payment_id"`
	Status            string `json:"status"`
}

// Service starts gateway charges for pending orders.
type Service interface {
	Charge(ctx context.Context, input ChargeInput) (*ChargeResult, error)
}

type service struct {
	gateway gatewayClient
	orders  orderLoader
	logger  *logger.Logger
}

// ServiceParams wires the charge service dependencies.
type ServiceParams struct {
	Gateway gatewayClient
	Orders  orderLoader
	Logger  *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway client is required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order loader is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("payments logger is required")
	}
	return &service{
		gateway: params.Gateway,
		orders:  params.Orders,
		logger:  params.Logger,
	}, nil
}

func (s *service) Charge(ctx context.Context, input ChargeInput) (*ChargeResult, error) {
	if input.OrderID == uuid.Nil || input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and buyer id are required")
	}
	if input.SourceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment source is required")
	}

	order, err := s.orders.GetOrder(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.BuyerID != input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.Status != enums.OrderStatusCreated {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s, cannot charge", order.Status))
	}
	if order.PaymentMethod != enums.PaymentMethodGateway {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not a gateway order")
	}

	ctx = s.logger.WithOrderID(ctx, order.ID.String())

	payment, err := s.gateway.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents: order.Total.Mul(decimal.NewFromInt(100)).IntPart(),
		SourceID:    input.SourceID,
		ReferenceID: order.ID.String(),
		Note:        "agrilink order",
	})
	if err != nil {
		return nil, err
	}

	result := &ChargeResult{}
	if id := payment.GetID(); id != nil {
		result.ProviderPaymentID = *id
	}
	if status := payment.GetStatus(); status != nil {
		result.Status = *status
	}
	s.logger.Info(ctx, "gateway charge created")
	return result, nil
}
