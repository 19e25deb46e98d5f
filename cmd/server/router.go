package main

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"loyalty-ledger/internal/middleware"
	"loyalty-ledger/internal/model"
	"loyalty-ledger/internal/service"
	apperrors "loyalty-ledger/pkg/errors"
)

func setupRouter(svc *service.LedgerService, jwtSecret string) *gin.Engine {
	// Set Gin mode
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API routes
	api := router.Group("/api")
	api.Use(middleware.Auth(jwtSecret))
	{
		api.GET("/customers/:mobile", getCustomerHandler(svc))
		api.POST("/customers/:mobile/verify-pin", verifyPINHandler(svc))
		api.POST("/customers/:mobile/notify", retryNotificationHandler(svc))
		api.POST("/transactions/preview", previewTransactionHandler(svc))
		api.POST("/transactions", recordTransactionHandler(svc))
		api.GET("/settings", getSettingsHandler(svc))
		api.GET("/sms-logs", listSmsLogsHandler(svc))
	}

	admin := router.Group("/api")
	admin.Use(middleware.Auth(jwtSecret, middleware.RoleAdmin))
	{
		admin.POST("/businesses", createBusinessHandler(svc))
		admin.PUT("/settings", updateSettingsHandler(svc))
	}

	return router
}

// writeError maps domain errors to HTTP status codes
func writeError(c *gin.Context, err error, fallback string) {
	var (
		validation   *apperrors.ValidationError
		insufficient *apperrors.InsufficientPaymentError
	)

	switch {
	case errors.As(err, &insufficient):
		c.JSON(http.StatusBadRequest, gin.H{"error": "insufficient cash given", "cashPayable": insufficient.CashPayable})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error(), "field": validation.Field})
	case errors.Is(err, apperrors.ErrInvalidPIN):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid pin"})
	case errors.Is(err, apperrors.ErrCustomerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "customer not found"})
	case errors.Is(err, apperrors.ErrBusinessNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "business not found"})
	case errors.Is(err, apperrors.ErrBusinessAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "business already exists"})
	case errors.Is(err, apperrors.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "ledger busy, retry the transaction"})
	case errors.Is(err, apperrors.ErrNotificationFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "retryable": true})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// createBusinessHandler handles POST /api/businesses
func createBusinessHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.CreateBusinessRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		req.BusinessID = c.GetString(middleware.BusinessIDKey)

		ledger, err := svc.CreateBusiness(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err, "failed to create business")
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"businessId":   ledger.BusinessID,
			"businessName": ledger.BusinessName,
			"settings":     ledger.Settings,
		})
	}
}

// getCustomerHandler handles GET /api/customers/:mobile
func getCustomerHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := svc.GetCustomer(c.Request.Context(), c.GetString(middleware.BusinessIDKey), c.Param("mobile"))
		if err != nil {
			writeError(c, err, "failed to get customer")
			return
		}

		c.JSON(http.StatusOK, summary)
	}
}

// verifyPINHandler handles POST /api/customers/:mobile/verify-pin
func verifyPINHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.VerifyPINRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		isNew, err := svc.VerifyPIN(c.Request.Context(), c.GetString(middleware.BusinessIDKey), c.Param("mobile"), req.PIN)
		if err != nil {
			writeError(c, err, "failed to verify pin")
			return
		}

		c.JSON(http.StatusOK, gin.H{"verified": true, "isNewCustomer": isNew})
	}
}

// retryNotificationHandler handles POST /api/customers/:mobile/notify
func retryNotificationHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := svc.RetryNotification(c.Request.Context(), c.GetString(middleware.BusinessIDKey), c.Param("mobile"))
		if err != nil {
			writeError(c, err, "failed to send notification")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "notification sent"})
	}
}

// previewTransactionHandler handles POST /api/transactions/preview
func previewTransactionHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.TransactionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		bill, err := svc.PreviewTransaction(c.Request.Context(), c.GetString(middleware.BusinessIDKey), &req)
		if err != nil {
			writeError(c, err, "failed to compute bill")
			return
		}

		c.JSON(http.StatusOK, bill)
	}
}

// recordTransactionHandler handles POST /api/transactions
func recordTransactionHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.TransactionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		receipt, err := svc.RecordTransaction(c.Request.Context(), c.GetString(middleware.BusinessIDKey), &req)
		if err != nil {
			writeError(c, err, "failed to record transaction")
			return
		}

		c.JSON(http.StatusCreated, receipt)
	}
}

// getSettingsHandler handles GET /api/settings
func getSettingsHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		settings, err := svc.GetSettings(c.Request.Context(), c.GetString(middleware.BusinessIDKey))
		if err != nil {
			writeError(c, err, "failed to get settings")
			return
		}

		c.JSON(http.StatusOK, settings)
	}
}

// updateSettingsHandler handles PUT /api/settings
func updateSettingsHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var settings model.Settings
		if err := c.ShouldBindJSON(&settings); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		if err := svc.UpdateSettings(c.Request.Context(), c.GetString(middleware.BusinessIDKey), settings); err != nil {
			writeError(c, err, "failed to update settings")
			return
		}

		c.JSON(http.StatusOK, settings)
	}
}

// listSmsLogsHandler handles GET /api/sms-logs?limit=n
func listSmsLogsHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}

		logs, err := svc.ListSmsLogs(c.Request.Context(), c.GetString(middleware.BusinessIDKey), limit)
		if err != nil {
			writeError(c, err, "failed to list sms logs")
			return
		}

		c.JSON(http.StatusOK, gin.H{"logs": logs, "total": len(logs)})
	}
}
