package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/bkurui/fleetrent-backend/internal/booking"
	"github.com/bkurui/fleetrent-backend/internal/database"
	"github.com/bkurui/fleetrent-backend/internal/handlers"
	"github.com/bkurui/fleetrent-backend/internal/middleware"
	"github.com/bkurui/fleetrent-backend/internal/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Fatal("Error loading .env file")
	}

	// Initialize database with better error handling
	db, err := database.InitDB()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Get underlying SQL DB instance
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Initialize Redis
	if err := services.InitRedis(); err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
	}

	// Initialize Storage (S3 or local fallback)
	if err := services.InitStorage(); err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize payment gateway
	gateway, err := services.NewRazorpayGateway()
	if err != nil {
		log.Fatalf("Failed to initialize payment gateway: %v", err)
	}

	// Settlement coordinator
	settlement := booking.NewService(db, gateway, services.NewRedisLocker(), os.Getenv("CURRENCY"))

	// Checkout reaper: expire unpaid orders past the checkout window
	go settlement.RunExpiry(context.Background(), time.Minute)

	// Initialize WebSocket hub and bridge it to Redis pub/sub
	hub := services.NewHub()
	go hub.Run()
	go hub.RelayBookingUpdates(context.Background())

	// Initialize router
	r := gin.Default()

	// Configure CORS
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(config))

	// Serve static files
	r.Static("/uploads", "/app/uploads")

	// Routes
	api := r.Group("/api")
	{
		// Public routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.Register(db))
			auth.POST("/login", handlers.Login(db))
			auth.POST("/forgot-password", handlers.RequestPasswordReset(db))
			auth.POST("/verify-otp", handlers.VerifyOTP(db))
			auth.POST("/reset-password", handlers.ResetPassword(db))
		}

		// WebSocket connection
		api.GET("/ws", middleware.AuthMiddleware(), handlers.WebSocketHandler(hub))

		// Vehicle catalog is browsable without auth
		api.GET("/vehicles", handlers.GetVehicles(db))
		api.GET("/vehicles/:id", handlers.GetVehicle(db))

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			// User routes
			users := protected.Group("/users")
			{
				users.GET("/profile", handlers.GetProfile(db))
				users.PUT("/profile", handlers.UpdateProfile(db))
			}

			// Pricing (advisory quote)
			protected.POST("/quote", handlers.Quote(settlement))

			// Checkout and settlement
			orders := protected.Group("/orders")
			{
				orders.POST("", handlers.CreateOrder(settlement))
				orders.POST("/:orderId/confirm", handlers.ConfirmPayment(db, settlement))
			}

			// Bookings routes
			bookings := protected.Group("/bookings")
			{
				bookings.GET("", handlers.GetClientBookings(settlement))
				bookings.GET("/all", middleware.StaffOnly(), handlers.GetAllBookings(settlement))
				bookings.GET("/:id", handlers.GetBooking(settlement))
				bookings.POST("/:id/cancel", handlers.CancelBooking(db, settlement))
				bookings.POST("/:id/start", middleware.StaffOnly(), handlers.StartRental(db, settlement))
				bookings.POST("/:id/complete", middleware.StaffOnly(), handlers.CompleteRental(db, settlement))
			}

			// Fleet management
			vehicles := protected.Group("/vehicles")
			vehicles.Use(middleware.StaffOnly())
			{
				vehicles.POST("", handlers.CreateVehicle(db))
				vehicles.PUT("/:id", handlers.UpdateVehicle(db))
			}
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
