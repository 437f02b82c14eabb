package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/quickcart-backend/config"
	"github.com/ikkim/quickcart-backend/internal/app/controller"
	"github.com/ikkim/quickcart-backend/internal/app/model"
	"github.com/ikkim/quickcart-backend/internal/middleware"
)

type Router struct {
	authController      *controller.AuthController
	productController   *controller.ProductController
	orderController     *controller.OrderController
	paymentController   *controller.PaymentController
	orderFeedController *controller.OrderFeedController
	authMiddleware      *middleware.AuthMiddleware
	config              *config.Config
}

func NewRouter(
	authController *controller.AuthController,
	productController *controller.ProductController,
	orderController *controller.OrderController,
	paymentController *controller.PaymentController,
	orderFeedController *controller.OrderFeedController,
	authMiddleware *middleware.AuthMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:      authController,
		productController:   productController,
		orderController:     orderController,
		paymentController:   paymentController,
		orderFeedController: orderFeedController,
		authMiddleware:      authMiddleware,
		config:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware("/health"))
	router.Use(middleware.CORS(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "QuickCart API is running",
		})
	})

	authenticate := r.authMiddleware.Authenticate()
	optionalAuth := r.authMiddleware.OptionalAuthenticate()
	adminOnly := r.authMiddleware.RequireRole(model.RoleAdmin)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", r.authController.Register)
			auth.POST("/login", r.authController.Login)
			auth.POST("/refresh", r.authController.Refresh)
		}

		users := v1.Group("/users")
		{
			users.GET("/profile", optionalAuth, r.authController.GetProfile)
			users.PUT("/profile", authenticate, r.authController.UpdateProfile)
		}

		products := v1.Group("/products")
		{
			products.GET("", r.productController.ListProducts)
			products.GET("/by-ids", r.productController.GetProductsByIDs)
			products.GET("/offers", r.productController.GetOffers)
			products.GET("/most-sold", r.productController.GetMostSold)
			products.GET("/:id", r.productController.GetProductByID)
			products.POST("", authenticate, adminOnly, r.productController.CreateProduct)
		}

		v1.GET("/categories", r.productController.ListCategories)

		orders := v1.Group("/orders")
		{
			orders.POST("", optionalAuth, r.orderController.PlaceOrder)
			orders.GET("/user/:email", authenticate, r.orderController.GetOrdersByEmail)
			orders.GET("", authenticate, adminOnly, r.orderController.ListOrders)
			orders.PUT("/:id/status", authenticate, adminOnly, r.orderController.UpdateOrderStatus)
			orders.PUT("/:id/payment-status", authenticate, adminOnly, r.orderController.UpdatePaymentStatus)
		}

		payments := v1.Group("/payments")
		{
			payments.POST("/create-order", r.paymentController.CreateGatewayOrder)
			payments.POST("/verify", r.paymentController.VerifyPayment)
		}

		admin := v1.Group("/admin")
		admin.Use(authenticate, adminOnly)
		{
			admin.GET("/orders/feed", r.orderFeedController.Stream)
		}
	}

	return router
}
