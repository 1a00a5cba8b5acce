package orders

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/agrilink/agrilink-backend/internal/earnings"
	"github.com/agrilink/agrilink-backend/internal/settlement"
	"github.com/agrilink/agrilink-backend/pkg/db/models"
	"github.com/agrilink/agrilink-backend/pkg/enums"
	pkgerrors "github.com/agrilink/agrilink-backend/pkg/errors"
	"github.com/agrilink/agrilink-backend/pkg/logger"
	"github.com/agrilink/agrilink-backend/pkg/types"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

type fakeSettler struct {
	settleCalls []settlement.SettleInput
	cancelCalls []uuid.UUID
	result      *settlement.Result
	err         error
}

func (f *fakeSettler) Settle(_ context.Context, input settlement.SettleInput) (*settlement.Result, error) {
	f.settleCalls = append(f.settleCalls, input)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &settlement.Result{OrderID: input.OrderID, Status: enums.OrderStatusPaid}, nil
}

func (f *fakeSettler) Cancel(_ context.Context, orderID uuid.UUID, _ uuid.UUID) error {
	f.cancelCalls = append(f.cancelCalls, orderID)
	return f.err
}

type fixture struct {
	db      *gorm.DB
	svc     Service
	settler *fakeSettler
	buyerID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Listing{}, &models.Order{}, &models.OrderItem{}, &models.DeliveryJob{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	settler := &fakeSettler{}
	svc, err := NewService(ServiceParams{
		Tx:         gormTxRunner{db: db},
		Repo:       NewRepository(db),
		Settlement: settler,
		FeePolicy:  earnings.NewFeePolicy(8, 20, 30).WithRand(rand.New(rand.NewSource(3))),
		Logger:     logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	return &fixture{db: db, svc: svc, settler: settler, buyerID: uuid.New()}
}

func (f *fixture) seedListing(t *testing.T, stock int, storePrice, farmerPrice int64) *models.Listing {
	t.Helper()
	listing := &models.Listing{
		ID:           uuid.New(),
		FarmerID:     uuid.New(),
		Title:        "onions",
		Unit:         "kg",
		StorePrice:   decimal.NewFromInt(storePrice),
		FarmerPrice:  decimal.NewFromInt(farmerPrice),
		AvailableQty: stock,
		IsActive:     true,
		PickupAddress: &types.Address{
			City: "Mysuru", PostalCode: "570001", Lat: 12.2958, Lng: 76.6394,
		},
	}
	if err := f.db.Create(listing).Error; err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	return listing
}

func deliveryAddress() *types.Address {
	return &types.Address{
		Line1: "14 Market Rd", City: "Bengaluru", PostalCode: "560001",
		Lat: 12.9716, Lng: 77.5946,
	}
}

func TestCreateOrderSnapshotsPrices(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, 10, 50, 40)

	view, err := f.svc.Create(context.Background(), CreateOrderInput{
		BuyerID:         f.buyerID,
		PaymentMethod:   enums.PaymentMethodGateway,
		DeliveryAddress: deliveryAddress(),
		Lines:           []CreateOrderLine{{ListingID: listing.ID, Qty: 2}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if view.Status != enums.OrderStatusCreated {
		t.Fatalf("gateway order must await webhook, got %s", view.Status)
	}
	if len(view.Items) != 1 || !view.Items[0].LineTotal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected items: %+v", view.Items)
	}
	if !view.Subtotal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected subtotal 100, got %s", view.Subtotal)
	}
	if view.DeliveryFee.IsZero() {
		t.Fatal("expected a non-zero delivery fee")
	}
	if !view.Total.Equal(view.Subtotal.Add(view.DeliveryFee)) {
		t.Fatal("total must be subtotal plus delivery fee")
	}
	if len(f.settler.settleCalls) != 0 {
		t.Fatal("gateway orders must not settle at checkout")
	}

	// Later price changes must not leak into the frozen item.
	if err := f.db.Model(&models.Listing{}).Where("id = ?", listing.ID).
		Update("store_price", decimal.NewFromInt(99)).Error; err != nil {
		t.Fatalf("reprice listing: %v", err)
	}
	var item models.OrderItem
	if err := f.db.First(&item, "order_id = ?", view.ID).Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if !item.StorePrice.Equal(decimal.NewFromInt(50)) || !item.FarmerPrice.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("price snapshot moved: %s/%s", item.StorePrice, item.FarmerPrice)
	}
	if !item.PlatformFee.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected platform fee snapshot 20, got %s", item.PlatformFee)
	}
}

func TestCreateOrderDistanceFee(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, 10, 50, 40)

	view, err := f.svc.Create(context.Background(), CreateOrderInput{
		BuyerID:         f.buyerID,
		PaymentMethod:   enums.PaymentMethodGateway,
		DeliveryAddress: deliveryAddress(),
		Lines:           []CreateOrderLine{{ListingID: listing.ID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Bengaluru to Mysuru is roughly 128 km at 8 per km.
	if view.DeliveryFee.LessThan(decimal.NewFromInt(900)) || view.DeliveryFee.GreaterThan(decimal.NewFromInt(1150)) {
		t.Fatalf("distance fee out of range: %s", view.DeliveryFee)
	}
}

func TestCreateOrderLocalFeeBand(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, 10, 50, 40)
	addr := deliveryAddress()
	addr.PostalCode = "570001"

	view, err := f.svc.Create(context.Background(), CreateOrderInput{
		BuyerID:         f.buyerID,
		PaymentMethod:   enums.PaymentMethodGateway,
		DeliveryAddress: addr,
		Lines:           []CreateOrderLine{{ListingID: listing.ID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if view.DeliveryFee.LessThan(decimal.NewFromInt(20)) || view.DeliveryFee.GreaterThan(decimal.NewFromInt(30)) {
		t.Fatalf("local fee outside band: %s", view.DeliveryFee)
	}
}

func TestCreateOrderCashSettlesInline(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, 10, 50, 40)
	jobID := uuid.New()
	f.settler.result = &settlement.Result{
		Status:        enums.OrderStatusPaid,
		DeliveryJobID: &jobID,
	}

	view, err := f.svc.Create(context.Background(), CreateOrderInput{
		BuyerID:         f.buyerID,
		PaymentMethod:   enums.PaymentMethodCashOnDelivery,
		DeliveryAddress: deliveryAddress(),
		Lines:           []CreateOrderLine{{ListingID: listing.ID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(f.settler.settleCalls) != 1 {
		t.Fatalf("expected one settlement call, got %d", len(f.settler.settleCalls))
	}
	if f.settler.settleCalls[0].Mode != enums.SettlementModeCashOnDelivery {
		t.Fatalf("expected cash mode, got %s", f.settler.settleCalls[0].Mode)
	}
	if view.Status != enums.OrderStatusPaid {
		t.Fatalf("cash order must come back settled, got %s", view.Status)
	}
	if view.DeliveryJob == nil || view.DeliveryJob.ID != jobID {
		t.Fatal("expected the delivery job on the view")
	}
}

func TestCreateOrderRejectsBadLines(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, 2, 50, 40)

	cases := []struct {
		name  string
		lines []CreateOrderLine
		code  pkgerrors.Code
	}{
		{"unknown listing", []CreateOrderLine{{ListingID: uuid.New(), Qty: 1}}, pkgerrors.CodeNotFound},
		{"oversell", []CreateOrderLine{{ListingID: listing.ID, Qty: 5}}, pkgerrors.CodeInsufficientStock},
		{"duplicate", []CreateOrderLine{{ListingID: listing.ID, Qty: 1}, {ListingID: listing.ID, Qty: 1}}, pkgerrors.CodeValidation},
		{"zero qty", []CreateOrderLine{{ListingID: listing.ID, Qty: 0}}, pkgerrors.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), CreateOrderInput{
				BuyerID:         f.buyerID,
				PaymentMethod:   enums.PaymentMethodGateway,
				DeliveryAddress: deliveryAddress(),
				Lines:           tc.lines,
			})
			if !pkgerrors.IsCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestCreateOrderInactiveListing(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, 10, 50, 40)
	if err := f.db.Model(&models.Listing{}).Where("id = ?", listing.ID).
		Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	_, err := f.svc.Create(context.Background(), CreateOrderInput{
		BuyerID:         f.buyerID,
		PaymentMethod:   enums.PaymentMethodGateway,
		DeliveryAddress: deliveryAddress(),
		Lines:           []CreateOrderLine{{ListingID: listing.ID, Qty: 1}},
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for inactive listing, got %v", err)
	}
}

func TestGetEnforcesOwnership(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, 10, 50, 40)

	view, err := f.svc.Create(context.Background(), CreateOrderInput{
		BuyerID:         f.buyerID,
		PaymentMethod:   enums.PaymentMethodGateway,
		DeliveryAddress: deliveryAddress(),
		Lines:           []CreateOrderLine{{ListingID: listing.ID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := f.svc.Get(context.Background(), f.buyerID, view.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != view.ID || len(got.Items) != 1 {
		t.Fatalf("unexpected view: %+v", got)
	}

	if _, err := f.svc.Get(context.Background(), uuid.New(), view.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("foreign buyer must get not found, got %v", err)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, 10, 50, 40)

	for i := 0; i < 2; i++ {
		if _, err := f.svc.Create(context.Background(), CreateOrderInput{
			BuyerID:         f.buyerID,
			PaymentMethod:   enums.PaymentMethodGateway,
			DeliveryAddress: deliveryAddress(),
			Lines:           []CreateOrderLine{{ListingID: listing.ID, Qty: 1}},
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	all, err := f.svc.List(context.Background(), f.buyerID, ListFilters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(all))
	}

	paid := enums.OrderStatusPaid
	none, err := f.svc.List(context.Background(), f.buyerID, ListFilters{Status: &paid})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no paid orders, got %d", len(none))
	}
}

func TestCancelDelegatesToSettlement(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, 10, 50, 40)

	view, err := f.svc.Create(context.Background(), CreateOrderInput{
		BuyerID:         f.buyerID,
		PaymentMethod:   enums.PaymentMethodGateway,
		DeliveryAddress: deliveryAddress(),
		Lines:           []CreateOrderLine{{ListingID: listing.ID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := f.svc.Cancel(context.Background(), f.buyerID, view.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(f.settler.cancelCalls) != 1 || f.settler.cancelCalls[0] != view.ID {
		t.Fatal("cancel must delegate to settlement")
	}

	if err := f.svc.Cancel(context.Background(), uuid.New(), view.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("foreign buyer cancel must fail, got %v", err)
	}
}
