package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/quickcart-backend/internal/app/model"
	"github.com/ikkim/quickcart-backend/internal/app/repository"
	"github.com/ikkim/quickcart-backend/internal/app/service"
	"github.com/ikkim/quickcart-backend/internal/db"
	"github.com/ikkim/quickcart-backend/internal/middleware"
	ws "github.com/ikkim/quickcart-backend/internal/websocket"
	"github.com/ikkim/quickcart-backend/pkg/payment/razorpay"
	"github.com/ikkim/quickcart-backend/pkg/util"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testJWTSecret     = "controller-test-secret"
	testGatewaySecret = "gateway_test_secret"
)

type testEnv struct {
	db      *gorm.DB
	router  *gin.Engine
	hub     *ws.Hub
	auth    service.AuthService
	gateway *httptest.Server
}

// setupControllerTest wires the real services over SQLite and a fake gateway
// and mounts the handlers the way the API router does.
func setupControllerTest(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	var opened atomic.Int64
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req razorpay.CreateOrderRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		id := "order_gw_" + strconv.FormatInt(opened.Add(1), 10)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(razorpay.Order{ID: id, Amount: req.Amount, Currency: req.Currency, Status: "created"})
	}))
	t.Cleanup(gateway.Close)

	gatewayClient, err := razorpay.NewClient(razorpay.Config{
		KeyID:     "rzp_test_key",
		KeySecret: testGatewaySecret,
		BaseURL:   gateway.URL,
		Currency:  "INR",
	})
	require.NoError(t, err)

	hub := ws.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	productRepo := repository.NewProductRepository(testDB)
	categoryRepo := repository.NewCategoryRepository(testDB)
	orderRepo := repository.NewOrderRepository(testDB)
	userRepo := repository.NewUserRepository(testDB)

	authService := service.NewAuthService(userRepo, testJWTSecret, 15*time.Minute, 24*time.Hour)
	productService := service.NewProductService(productRepo, categoryRepo, orderRepo, nil, 8)
	paymentService := service.NewPaymentService(gatewayClient, repository.NewGatewayOrderRepository(testDB), "INR")
	orderService := service.NewOrderService(orderRepo, paymentService, hub, testDB)

	authCtrl := NewAuthController(authService)
	productCtrl := NewProductController(productService)
	orderCtrl := NewOrderController(orderService)
	paymentCtrl := NewPaymentController(paymentService)
	feedCtrl := NewOrderFeedController(hub, []string{"http://localhost:3000"})
	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret)
	adminOnly := authMiddleware.RequireRole(model.RoleAdmin)

	router := gin.New()
	router.Use(middleware.LoggingMiddleware())
	v1 := router.Group("/api/v1")
	v1.POST("/auth/register", authCtrl.Register)
	v1.POST("/auth/login", authCtrl.Login)
	v1.POST("/auth/refresh", authCtrl.Refresh)
	v1.GET("/users/profile", authMiddleware.OptionalAuthenticate(), authCtrl.GetProfile)
	v1.PUT("/users/profile", authMiddleware.Authenticate(), authCtrl.UpdateProfile)

	v1.GET("/products", productCtrl.ListProducts)
	v1.GET("/products/by-ids", productCtrl.GetProductsByIDs)
	v1.GET("/products/offers", productCtrl.GetOffers)
	v1.GET("/products/most-sold", productCtrl.GetMostSold)
	v1.GET("/products/:id", productCtrl.GetProductByID)
	v1.POST("/products", authMiddleware.Authenticate(), adminOnly, productCtrl.CreateProduct)
	v1.GET("/categories", productCtrl.ListCategories)

	v1.POST("/orders", authMiddleware.OptionalAuthenticate(), orderCtrl.PlaceOrder)
	v1.GET("/orders/user/:email", authMiddleware.Authenticate(), orderCtrl.GetOrdersByEmail)
	v1.GET("/orders", authMiddleware.Authenticate(), adminOnly, orderCtrl.ListOrders)
	v1.PUT("/orders/:id/status", authMiddleware.Authenticate(), adminOnly, orderCtrl.UpdateOrderStatus)
	v1.PUT("/orders/:id/payment-status", authMiddleware.Authenticate(), adminOnly, orderCtrl.UpdatePaymentStatus)
	v1.GET("/admin/orders/feed", authMiddleware.Authenticate(), adminOnly, feedCtrl.Stream)

	v1.POST("/payments/create-order", paymentCtrl.CreateGatewayOrder)
	v1.POST("/payments/verify", paymentCtrl.VerifyPayment)

	return &testEnv{db: testDB, router: router, hub: hub, auth: authService, gateway: gateway}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// registerUser returns an access token for a fresh user with the given role
func (e *testEnv) registerUser(t *testing.T, email string, role model.UserRole) (*model.User, string) {
	t.Helper()
	user, _, err := e.auth.Register(email, "password123", "Test User", "9876543210")
	require.NoError(t, err)
	if role != model.RoleUser {
		require.NoError(t, e.db.Model(user).Update("role", role).Error)
		user.Role = role
	}
	tokens, err := util.GenerateTokenPair(user.ID, user.Email, string(user.Role), testJWTSecret, time.Minute, time.Hour)
	require.NoError(t, err)
	return user, tokens.AccessToken
}

func (e *testEnv) createProduct(t *testing.T, name string, price float64, offer *float64) model.Product {
	t.Helper()
	p := model.Product{Name: name, Price: price, OfferPrice: offer}
	require.NoError(t, e.db.Create(&p).Error)
	return p
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}
