package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agrilink/agrilink-backend/api/middleware"
	"github.com/agrilink/agrilink-backend/internal/orders"
	"github.com/agrilink/agrilink-backend/pkg/enums"
	pkgerrors "github.com/agrilink/agrilink-backend/pkg/errors"
)

type stubOrdersService struct {
	create func(ctx context.Context, input orders.CreateOrderInput) (*orders.OrderView, error)
	get    func(ctx context.Context, buyerID, orderID uuid.UUID) (*orders.OrderView, error)
	list   func(ctx context.Context, buyerID uuid.UUID, filters orders.ListFilters) ([]orders.OrderView, error)
	cancel func(ctx context.Context, buyerID, orderID uuid.UUID) error
}

func (s stubOrdersService) Create(ctx context.Context, input orders.CreateOrderInput) (*orders.OrderView, error) {
	if s.create != nil {
		return s.create(ctx, input)
	}
	return &orders.OrderView{}, nil
}

func (s stubOrdersService) Get(ctx context.Context, buyerID, orderID uuid.UUID) (*orders.OrderView, error) {
	if s.get != nil {
		return s.get(ctx, buyerID, orderID)
	}
	return &orders.OrderView{ID: orderID}, nil
}

func (s stubOrdersService) List(ctx context.Context, buyerID uuid.UUID, filters orders.ListFilters) ([]orders.OrderView, error) {
	if s.list != nil {
		return s.list(ctx, buyerID, filters)
	}
	return nil, nil
}

func (s stubOrdersService) Cancel(ctx context.Context, buyerID, orderID uuid.UUID) error {
	if s.cancel != nil {
		return s.cancel(ctx, buyerID, orderID)
	}
	return nil
}

func authedRequest(method, target string, body string, userID uuid.UUID) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
}

func TestCreateOrder(t *testing.T) {
	buyerID := uuid.New()
	listingID := uuid.New()
	var captured orders.CreateOrderInput
	svc := stubOrdersService{
		create: func(_ context.Context, input orders.CreateOrderInput) (*orders.OrderView, error) {
			captured = input
			return &orders.OrderView{ID: uuid.New(), Status: enums.OrderStatusCreated}, nil
		},
	}

	body := fmt.Sprintf(`{
		"payment_method": "cash_on_delivery",
		"delivery_address": {"line1": "1 Farm Rd", "city": "Kochi", "state": "KL", "postal_code": "682001", "country": "IN", "lat": 0, "lng": 0},
		"lines": [{"listing_id": %q, "qty": 2}]
	}`, listingID)

	req := authedRequest(http.MethodPost, "/api/v1/orders", body, buyerID)
	resp := httptest.NewRecorder()
	CreateOrder(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", resp.Code, resp.Body.String())
	}
	if captured.BuyerID != buyerID {
		t.Fatalf("expected buyer from context, got %s", captured.BuyerID)
	}
	if len(captured.Lines) != 1 || captured.Lines[0].Qty != 2 {
		t.Fatalf("unexpected lines %+v", captured.Lines)
	}
}

func TestCreateOrderValidatesBody(t *testing.T) {
	req := authedRequest(http.MethodPost, "/api/v1/orders", `{"payment_method": "cash_on_delivery"}`, uuid.New())
	resp := httptest.NewRecorder()
	CreateOrder(stubOrdersService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCreateOrderRequiresIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	CreateOrder(stubOrdersService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestGetOrderNotFoundPassthrough(t *testing.T) {
	svc := stubOrdersService{
		get: func(context.Context, uuid.UUID, uuid.UUID) (*orders.OrderView, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		},
	}

	router := chi.NewRouter()
	router.Get("/orders/{orderID}", GetOrder(svc, nil))

	req := authedRequest(http.MethodGet, "/orders/"+uuid.NewString(), "", uuid.New())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestListOrdersRejectsBadStatus(t *testing.T) {
	req := authedRequest(http.MethodGet, "/api/v1/orders?status=shipped-to-mars", "", uuid.New())
	resp := httptest.NewRecorder()
	ListOrders(stubOrdersService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestListOrdersPassesStatusFilter(t *testing.T) {
	var captured orders.ListFilters
	svc := stubOrdersService{
		list: func(_ context.Context, _ uuid.UUID, filters orders.ListFilters) ([]orders.OrderView, error) {
			captured = filters
			return []orders.OrderView{{ID: uuid.New()}}, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/orders?status=delivered&limit=10", "", uuid.New())
	resp := httptest.NewRecorder()
	ListOrders(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.Status == nil || *captured.Status != enums.OrderStatusDelivered {
		t.Fatalf("expected delivered filter, got %+v", captured.Status)
	}
	if captured.Limit != 10 {
		t.Fatalf("expected limit 10, got %d", captured.Limit)
	}
}

func TestCancelOrder(t *testing.T) {
	orderID := uuid.New()
	buyerID := uuid.New()
	var gotBuyer, gotOrder uuid.UUID
	svc := stubOrdersService{
		cancel: func(_ context.Context, b, o uuid.UUID) error {
			gotBuyer, gotOrder = b, o
			return nil
		},
	}

	router := chi.NewRouter()
	router.Post("/orders/{orderID}/cancel", CancelOrder(svc, nil))

	req := authedRequest(http.MethodPost, "/orders/"+orderID.String()+"/cancel", "", buyerID)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if gotBuyer != buyerID || gotOrder != orderID {
		t.Fatalf("expected buyer %s order %s, got %s %s", buyerID, orderID, gotBuyer, gotOrder)
	}

	var payload struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload.Data["status"] != string(enums.OrderStatusCancelled) {
		t.Fatalf("expected cancelled status, got %+v", payload.Data)
	}
}
