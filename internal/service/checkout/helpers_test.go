package checkout

import (
	"context"
	"sync"
	"testing"

	"designer-marketplace/internal/domain"
	"designer-marketplace/internal/gateway"
	"designer-marketplace/internal/repository/memory"
	cartsvc "designer-marketplace/internal/service/cart"
	"github.com/stretchr/testify/require"
)

const testSecret = "key-secret"

type fakeGateway struct {
	mu       sync.Mutex
	payments map[string]gateway.Payment
	fetchErr error
	fetches  int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: make(map[string]gateway.Payment)}
}

func (g *fakeGateway) CreateIntent(_ context.Context, amount int64, currency, key string) (*gateway.Intent, error) {
	return &gateway.Intent{ID: "order_" + key, Amount: amount, Currency: currency, Status: gateway.StatusCreated}, nil
}

func (g *fakeGateway) VerifySignature(orderRef, paymentRef, signature string) bool {
	return gateway.SignPayment(testSecret, orderRef, paymentRef) == signature
}

func (g *fakeGateway) FetchStatus(_ context.Context, paymentRef string) (*gateway.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetches++
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	p, ok := g.payments[paymentRef]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (g *fakeGateway) VerifyWebhook(body []byte, signature string) bool {
	return gateway.Sign(testSecret, body) == signature
}

func (g *fakeGateway) setPayment(p gateway.Payment) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[p.ID] = p
}

type harness struct {
	store *memory.Store
	carts *cartsvc.Service
	gw    *fakeGateway
	coord *Coordinator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.New()
	carts := cartsvc.New(store.Carts(), store.Products(), nil, nil)
	gw := newFakeGateway()
	coord := NewCoordinator(Deps{
		Carts:   carts,
		Ledger:  store.Ledger(),
		Orders:  store.Orders(),
		Intents: store.Payments(),
		Gateway: gw,
	}, Options{})
	return &harness{store: store, carts: carts, gw: gw, coord: coord}
}

func (h *harness) product(t *testing.T, price int64, stock int) string {
	t.Helper()
	p, err := h.store.Products().Upsert(context.Background(), domain.Product{
		DesignerID: "designer-1", Name: "Handloom saree", PriceMinor: price, Currency: "INR", AvailableQuantity: stock,
	})
	require.NoError(t, err)
	return p.ID
}

func (h *harness) addToCart(t *testing.T, buyerID, productID string, qty int) {
	t.Helper()
	_, err := h.carts.AddItem(context.Background(), buyerID, productID, qty)
	require.NoError(t, err)
}

func (h *harness) intent(t *testing.T, buyerID string, amount int64, shipping *domain.ShippingAddress) string {
	t.Helper()
	id := "order_" + buyerID
	require.NoError(t, h.store.Payments().CreateIntent(context.Background(), domain.PaymentIntent{
		ID: id, BuyerID: buyerID, OrderRef: "ref-" + buyerID, IdempotencyKey: "key-" + buyerID,
		Amount: amount, Currency: "INR", Shipping: shipping,
	}))
	return id
}

// capture registers a captured payment with the gateway and returns the browser signature.
func (h *harness) capture(paymentRef, intentID string, amount int64) string {
	h.gw.setPayment(gateway.Payment{ID: paymentRef, OrderID: intentID, Status: gateway.StatusCaptured, Amount: amount, Method: "upi"})
	return gateway.SignPayment(testSecret, intentID, paymentRef)
}

func (h *harness) stock(t *testing.T, productID string) int {
	t.Helper()
	n, err := h.store.Ledger().Available(context.Background(), productID)
	require.NoError(t, err)
	return n
}

func (h *harness) orders(t *testing.T, buyerID string) []domain.Order {
	t.Helper()
	orders, err := h.store.Orders().ListByBuyer(context.Background(), buyerID, "")
	require.NoError(t, err)
	return orders
}

func buyer(id string) domain.Identity {
	return domain.Identity{SubjectID: id, Role: domain.RoleBuyer}
}

func address() domain.ShippingAddress {
	return domain.ShippingAddress{
		FullName: "Meera Iyer", Phone: "9800000000", Address: "12 Temple Road",
		City: "Chennai", State: "TN", Pincode: "600004",
	}
}
