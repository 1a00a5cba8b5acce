package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/internal/earnings"
	"github.com/agrilink/agrilink-backend/internal/geo"
	"github.com/agrilink/agrilink-backend/internal/settlement"
	"github.com/agrilink/agrilink-backend/pkg/db/models"
	"github.com/agrilink/agrilink-backend/pkg/enums"
	pkgerrors "github.com/agrilink/agrilink-backend/pkg/errors"
	"github.com/agrilink/agrilink-backend/pkg/logger"
	"github.com/agrilink/agrilink-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// settler is the slice of the settlement service orders depend on. Cash
// orders settle synchronously at checkout.
type settler interface {
	Settle(ctx context.Context, input settlement.SettleInput) (*settlement.Result, error)
	Cancel(ctx context.Context, orderID uuid.UUID, actorID uuid.UUID) error
}

// Service covers the buyer-facing order lifecycle.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*OrderView, error)
	Get(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderView, error)
	List(ctx context.Context, buyerID uuid.UUID, filters ListFilters) ([]OrderView, error)
	Cancel(ctx context.Context, buyerID, orderID uuid.UUID) error
}

type service struct {
	tx         txRunner
	repo       Repository
	settlement settler
	resolver   geo.Resolver
	feePolicy  earnings.FeePolicy
	logger     *logger.Logger
}

// ServiceParams wires the order service dependencies.
type ServiceParams struct {
	Tx         txRunner
	Repo       Repository
	Settlement settler
	Resolver   geo.Resolver
	FeePolicy  earnings.FeePolicy
	Logger     *logger.Logger
}

// NewService validates dependencies and constructs the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("orders tx runner is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository is required")
	}
	if params.Settlement == nil {
		return nil, fmt.Errorf("settlement service is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("orders logger is required")
	}
	return &service{
		tx:         params.Tx,
		repo:       params.Repo,
		settlement: params.Settlement,
		resolver:   params.Resolver,
		feePolicy:  params.FeePolicy,
		logger:     params.Logger,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*OrderView, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", input.PaymentMethod))
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order needs at least one line")
	}
	if input.DeliveryAddress == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address is required")
	}

	deliveryAddr := *input.DeliveryAddress
	if s.resolver != nil {
		// Best effort: a failed geocode leaves the address as given and
		// lets settlement fall back to postal/city matching.
		located, err := s.resolver.Locate(ctx, deliveryAddr)
		if err == nil {
			deliveryAddr = located
		} else {
			s.logger.Warn(ctx, fmt.Sprintf("delivery address not geocoded: %s", err))
		}
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ids := make([]uuid.UUID, 0, len(input.Lines))
		seen := make(map[uuid.UUID]bool, len(input.Lines))
		for _, line := range input.Lines {
			if line.Qty <= 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
			}
			if seen[line.ListingID] {
				return pkgerrors.New(pkgerrors.CodeValidation, "duplicate listing in order lines")
			}
			seen[line.ListingID] = true
			ids = append(ids, line.ListingID)
		}

		listings, err := repo.GetListings(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load listings")
		}
		byID := make(map[uuid.UUID]models.Listing, len(listings))
		for _, listing := range listings {
			byID[listing.ID] = listing
		}

		order = &models.Order{
			ID:              uuid.New(),
			BuyerID:         input.BuyerID,
			Status:          enums.OrderStatusCreated,
			PaymentMethod:   input.PaymentMethod,
			DeliveryAddress: &deliveryAddr,
			Notes:           input.Notes,
		}

		subtotal := decimal.Zero
		var firstPickup *types.Address
		for _, line := range input.Lines {
			listing, ok := byID[line.ListingID]
			if !ok || !listing.IsActive {
				return pkgerrors.New(pkgerrors.CodeNotFound, "listing not available").
					WithDetails(map[string]any{"listing_id": line.ListingID})
			}
			if listing.AvailableQty < line.Qty {
				return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock").
					WithDetails(map[string]any{"listing_id": listing.ID, "available": listing.AvailableQty})
			}
			if firstPickup == nil {
				firstPickup = listing.PickupAddress
			}

			qty := decimal.NewFromInt(int64(line.Qty))
			lineTotal := listing.StorePrice.Mul(qty)
			subtotal = subtotal.Add(lineTotal)
			order.Items = append(order.Items, models.OrderItem{
				ID:          uuid.New(),
				OrderID:     order.ID,
				ListingID:   listing.ID,
				FarmerID:    listing.FarmerID,
				Title:       listing.Title,
				Unit:        listing.Unit,
				StorePrice:  listing.StorePrice,
				FarmerPrice: listing.FarmerPrice,
				PlatformFee: listing.StorePrice.Sub(listing.FarmerPrice).Mul(qty),
				Qty:         line.Qty,
				LineTotal:   lineTotal,
			})
		}

		order.Subtotal = subtotal
		order.DeliveryFee = s.estimateDeliveryFee(deliveryAddr, firstPickup)
		order.Total = subtotal.Add(order.DeliveryFee)

		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logger.WithOrderID(ctx, order.ID.String())
	s.logger.Info(ctx, "order created")

	view := toOrderView(order, nil)

	// Cash orders have no webhook to wait for, so they settle in line.
	if input.PaymentMethod == enums.PaymentMethodCashOnDelivery {
		result, err := s.settlement.Settle(ctx, settlement.SettleInput{
			OrderID: order.ID,
			Mode:    enums.SettlementModeCashOnDelivery,
		})
		if err != nil {
			return nil, err
		}
		view.Status = result.Status
		view.Warnings = result.Warnings
		if result.DeliveryJobID != nil {
			view.DeliveryJob = &DeliveryJobView{
				ID:     *result.DeliveryJobID,
				Status: enums.DeliveryJobStatusRequested,
			}
		}
	}

	return view, nil
}

// estimateDeliveryFee prices the buyer-visible fee at checkout. Settlement
// prices the agent fee separately once an agent is matched.
func (s *service) estimateDeliveryFee(dropoff types.Address, pickup *types.Address) decimal.Decimal {
	if pickup == nil {
		return s.feePolicy.DeliveryFee(0, true)
	}
	samePostal := pickup.PostalCode != "" && pickup.PostalCode == dropoff.PostalCode
	if samePostal {
		return s.feePolicy.DeliveryFee(0, true)
	}
	if (dropoff.Lat != 0 || dropoff.Lng != 0) && (pickup.Lat != 0 || pickup.Lng != 0) {
		distance := geo.DistanceKm(pickup.Lat, pickup.Lng, dropoff.Lat, dropoff.Lng)
		return s.feePolicy.DeliveryFee(distance, false)
	}
	return s.feePolicy.DeliveryFee(0, true)
}

func (s *service) Get(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderView, error) {
	order, err := s.loadOwned(ctx, buyerID, orderID)
	if err != nil {
		return nil, err
	}

	var jobView *DeliveryJobView
	if job, err := s.repo.GetDeliveryJobByOrder(ctx, order.ID); err == nil {
		jobView = &DeliveryJobView{ID: job.ID, Status: job.Status}
	} else if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load delivery job")
	}

	return toOrderView(order, jobView), nil
}

func (s *service) List(ctx context.Context, buyerID uuid.UUID, filters ListFilters) ([]OrderView, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}

	orders, err := s.repo.ListByBuyer(ctx, buyerID, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}

	views := make([]OrderView, len(orders))
	for i := range orders {
		views[i] = *toOrderView(&orders[i], nil)
	}
	return views, nil
}

func (s *service) Cancel(ctx context.Context, buyerID, orderID uuid.UUID) error {
	if _, err := s.loadOwned(ctx, buyerID, orderID); err != nil {
		return err
	}
	return s.settlement.Cancel(ctx, orderID, buyerID)
}

func (s *service) loadOwned(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error) {
	if buyerID == uuid.Nil || orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id and order id are required")
	}
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func toOrderView(order *models.Order, job *DeliveryJobView) *OrderView {
	view := &OrderView{
		ID:              order.ID,
		Status:          order.Status,
		PaymentMethod:   order.PaymentMethod,
		Subtotal:        order.Subtotal,
		DeliveryFee:     order.DeliveryFee,
		Total:           order.Total,
		DeliveryAddress: order.DeliveryAddress,
		DeliveryJob:     job,
		CreatedAt:       order.CreatedAt,
		SettledAt:       order.SettledAt,
		CancelledAt:     order.CancelledAt,
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, OrderItemView{
			ID:        item.ID,
			ListingID: item.ListingID,
			Title:     item.Title,
			Unit:      item.Unit,
			UnitPrice: item.StorePrice,
			Qty:       item.Qty,
			LineTotal: item.LineTotal,
		})
	}
	return view
}
