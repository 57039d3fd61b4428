package api

import (
	"net/http"
	"strconv"
	"time"

	"commerce-core/internal/models"
	"commerce-core/internal/redisclient"
	"commerce-core/internal/service"
	"commerce-core/internal/store"
	"commerce-core/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Handler contains HTTP handlers
type Handler struct {
	orderService   *service.OrderService
	paymentService *service.PaymentService
	store          *store.Store
	cache          *redisclient.Client
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orderService *service.OrderService,
	paymentService *service.PaymentService,
	store *store.Store,
	cache *redisclient.Client,
) *Handler {
	return &Handler{
		orderService:   orderService,
		paymentService: paymentService,
		store:          store,
		cache:          cache,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.PATCH("/orders/:id/status", h.updateOrderStatus)
		v1.PATCH("/orders/:id/address", h.updateDeliveryAddress)
		v1.POST("/orders/:id/payments", h.pay)
		v1.POST("/transactions/:id/refund", h.refund)
		v1.GET("/buyers/:id/orders", h.getBuyerOrders)
		v1.GET("/products/:id/availability", h.getAvailability)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createOrder handles order creation from the buyer's cart
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.orderService.CreateOrderFromCart(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	order, lines, err := h.orderService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	transactions, err := h.paymentService.GetTransactions(c.Request.Context(), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order":        order,
		"lines":        lines,
		"transactions": transactions,
	})
}

type updateStatusRequest struct {
	Status  string `json:"status" binding:"required"`
	ActorID int64  `json:"actor_id" binding:"required"`
}

// updateOrderStatus accepts an externally driven status transition
func (h *Handler) updateOrderStatus(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.orderService.UpdateOrderStatus(c.Request.Context(), orderID, req.Status, req.ActorID); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "status": req.Status})
}

type updateAddressRequest struct {
	DeliveryAddress string `json:"delivery_address" binding:"required,max=500"`
}

// updateDeliveryAddress updates the order's delivery address
func (h *Handler) updateDeliveryAddress(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req updateAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.store.UpdateDeliveryAddress(c.Request.Context(), orderID, req.DeliveryAddress); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order_id": orderID})
}

type payRequest struct {
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	PaymentMethod string          `json:"payment_method" binding:"required"`
	ActorID       int64           `json:"actor_id,omitempty"`
}

// pay handles a payment attempt against an order
func (h *Handler) pay(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.paymentService.Pay(c.Request.Context(), &service.PayRequest{
		OrderID:       orderID,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		ActorID:       req.ActorID,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

type refundRequest struct {
	ActorID int64 `json:"actor_id,omitempty"`
}

// refund handles refunding a successful transaction
func (h *Handler) refund(c *gin.Context) {
	transactionID, ok := pathID(c)
	if !ok {
		return
	}

	// Body is optional, an actor id is the only thing it can carry.
	var req refundRequest
	_ = c.ShouldBindJSON(&req)

	message, err := h.paymentService.Refund(c.Request.Context(), transactionID, req.ActorID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": message})
}

// getBuyerOrders lists a buyer's orders, newest first
func (h *Handler) getBuyerOrders(c *gin.Context) {
	buyerID, ok := pathID(c)
	if !ok {
		return
	}

	orders, err := h.orderService.GetBuyerOrders(c.Request.Context(), buyerID, c.Query("status"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getAvailability serves product availability from the cache, falling back
// to the database on a miss.
func (h *Handler) getAvailability(c *gin.Context) {
	productID, ok := pathID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()

	if available, hit, err := h.cache.GetAvailability(ctx, productID); err == nil && hit {
		c.JSON(http.StatusOK, gin.H{
			"product_id": productID,
			"available":  available,
			"source":     "cache",
		})
		return
	}

	available, err := h.store.ProductAvailability(ctx, productID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product_id": productID,
		"available":  available,
		"source":     "db",
	})
}

// writeError maps domain errors onto HTTP statuses. Infrastructure errors
// stay opaque.
func (h *Handler) writeError(c *gin.Context, err error) {
	if ise, ok := models.AsInsufficientStock(err); ok {
		c.JSON(http.StatusConflict, gin.H{
			"error":      "Insufficient stock",
			"product_id": ise.ProductID,
			"requested":  ise.Requested,
			"available":  ise.Available,
		})
		return
	}

	switch err {
	case models.ErrEmptyCart:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
	case models.ErrInvalidPaymentAmount:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payment amount does not match order total"})
	case models.ErrOrderNotPayable:
		c.JSON(http.StatusConflict, gin.H{"error": "Order is not in a payable state"})
	case models.ErrNotRefundable:
		c.JSON(http.StatusConflict, gin.H{"error": "Transaction cannot be refunded"})
	case models.ErrOrderNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
	case models.ErrTransactionNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
	default:
		util.GetLogger().Sugar().Errorw("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return id, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
