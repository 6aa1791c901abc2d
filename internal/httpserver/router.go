package httpserver

import (
	"context"
	"errors"
	"time"

	"designer-marketplace/internal/domain"
	"designer-marketplace/internal/metrics"
	"designer-marketplace/internal/repository/token"
	cartsvc "designer-marketplace/internal/service/cart"
	"designer-marketplace/internal/service/checkout"
	ordersvc "designer-marketplace/internal/service/order"
	paymentsvc "designer-marketplace/internal/service/payment"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type tokenLookup interface {
	Get(ctx context.Context, token string) (*token.Token, error)
}

type cartService interface {
	View(ctx context.Context, buyerID string) (*cartsvc.View, error)
	AddItem(ctx context.Context, buyerID, productID string, quantity int) (*domain.Cart, error)
	SetQuantity(ctx context.Context, buyerID, productID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, buyerID, productID string) (*domain.Cart, error)
}

type checkoutService interface {
	SettleOnline(ctx context.Context, who domain.Identity, in checkout.OnlineInput) (*checkout.Result, error)
	SettleCashOnDelivery(ctx context.Context, who domain.Identity, shipping domain.ShippingAddress, notes string) (*checkout.Result, error)
}

type paymentService interface {
	CreateOrder(ctx context.Context, who domain.Identity, in paymentsvc.CreateOrderInput) (*paymentsvc.CreateOrderResult, error)
	Status(ctx context.Context, who domain.Identity, paymentRef string) (*domain.PaymentRecord, error)
}

type webhookHandler interface {
	Handle(ctx context.Context, body []byte, signature string) error
}

type orderService interface {
	ListForBuyer(ctx context.Context, who domain.Identity, f ordersvc.Filter) ([]domain.Order, error)
	ListForDesigner(ctx context.Context, who domain.Identity, f ordersvc.Filter) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, who domain.Identity, orderID string, next domain.OrderStatus) (*domain.Order, error)
	SetTracking(ctx context.Context, who domain.Identity, orderID, trackingNumber string) (*domain.Order, error)
}

type productService interface {
	ListForDesigner(ctx context.Context, who domain.Identity) ([]domain.Product, error)
	SetPrice(ctx context.Context, who domain.Identity, productID string, price decimal.Decimal) (*domain.Product, error)
}

// Deps are the services the router dispatches to.
type Deps struct {
	Tokens   tokenLookup
	Carts    cartService
	Checkout checkoutService
	Payments paymentService
	Webhooks webhookHandler
	Orders   orderService
	Products productService
	// Metrics is optional; /metrics is only mounted when set.
	Metrics     *metrics.Metrics
	CORSOrigins []string
}

func (d Deps) validate() error {
	if d.Tokens == nil || d.Carts == nil || d.Checkout == nil || d.Payments == nil || d.Webhooks == nil || d.Orders == nil || d.Products == nil {
		return errors.New("httpserver: missing service dependency")
	}
	return nil
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, db pinger, deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	h := &handlers{
		carts:    deps.Carts,
		checkout: deps.Checkout,
		payments: deps.Payments,
		webhooks: deps.Webhooks,
		orders:   deps.Orders,
		products: deps.Products,
		logger:   logger,
	}

	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery())
	router.Use(cors.New(corsConfig(deps.CORSOrigins)))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	// The gateway authenticates itself with the body signature.
	router.POST("/payment/webhook", h.webhook)

	authed := router.Group("/", authMiddleware(deps.Tokens))

	authed.GET("/cart", h.getCart)
	authed.POST("/cart/add", h.addToCart)
	authed.PUT("/cart/update", h.updateCart)
	authed.DELETE("/cart/remove/:productId", h.removeFromCart)

	authed.POST("/checkout/process", h.processCheckout)
	authed.POST("/payment/create-order", h.createPaymentOrder)
	authed.POST("/payment/verify-payment", h.verifyPayment)
	authed.GET("/payment/status/:paymentRef", h.paymentStatus)

	authed.GET("/orders", h.buyerOrders)
	authed.GET("/designer/orders", h.designerOrders)
	authed.PUT("/designer/orders/:orderId/status", h.updateOrderStatus)
	authed.PUT("/designer/orders/:orderId/tracking", h.updateTracking)
	authed.GET("/designer/products", h.designerProducts)
	authed.PUT("/designer/products/:productId/price", h.updateProductPrice)

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

type handlers struct {
	carts    cartService
	checkout checkoutService
	payments paymentService
	webhooks webhookHandler
	orders   orderService
	products productService
	logger   *zap.Logger
}
