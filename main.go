package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/teamfive/lesson-booking-api/docs"
	"github.com/teamfive/lesson-booking-api/internal/authentication"
	"github.com/teamfive/lesson-booking-api/internal/lesson"
	"github.com/teamfive/lesson-booking-api/internal/user"
	"github.com/teamfive/lesson-booking-api/internal/utils"
)

// @title           Lesson Booking API
// @version         1.0
// @description     Accounts, session tokens and lesson bookings for the lesson-booking application.
//
// @host      localhost:5000
// @BasePath  /api
//
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	// load config; a missing or short JWT secret stops the process here
	cfg, err := utils.LoadConfig(".env")
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// init logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	// init database
	db, err := utils.InitDatabase(cfg.Database.DSN())
	if err != nil {
		logger.Fatal("failed to connect to the database", zap.Error(err))
	}
	if err := db.AutoMigrate(&user.Role{}, &user.User{}, &authentication.RefreshToken{}, &lesson.Lesson{}); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	signer, err := utils.NewTokenSigner(cfg.Jwt)
	if err != nil {
		logger.Fatal("invalid jwt configuration", zap.Error(err))
	}

	// init Gin router
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	//
	// SWAGGER (protected by Basic Auth, not JWT)
	//
	swaggerGroup := router.Group("/swagger", gin.BasicAuth(gin.Accounts{
		cfg.Admin.Username: cfg.Admin.Password,
	}))
	swaggerGroup.GET("", ginSwagger.WrapHandler(swaggerFiles.Handler))
	swaggerGroup.GET("/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	//
	// WIRE UP SERVICES
	//
	userRepo := user.NewUserRepository(db)
	if err := userRepo.EnsureRoles(context.Background()); err != nil {
		logger.Fatal("failed to seed roles", zap.Error(err))
	}
	userService := user.NewUserService(userRepo, logger)

	recordRepo := authentication.NewRecordRepository(db)
	authService := authentication.NewAuthenticationService(
		userService,
		recordRepo,
		signer,
		logger,
		time.Duration(cfg.Jwt.RefreshTokenExpiry)*time.Hour,
	)

	api := router.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authentication.NewAuthHandler(
		api.Group("/", authentication.RateLimitMiddleware(cfg.RateLimit.AuthPerSecond)),
		authService,
		logger,
	)

	authGroup := api.Group("/", authentication.AuthMiddleware(signer, logger))
	adminGroup := api.Group("/",
		authentication.AuthMiddleware(signer, logger),
		authentication.RoleMiddleware(user.Superuser, logger),
	)
	user.NewUserHandler(api, authGroup, adminGroup, userService, authService, authService, logger)

	lessonService := lesson.NewLessonService(lesson.NewLessonRepository(db), logger)
	lesson.NewLessonHandler(authGroup, adminGroup, lessonService, authService, logger)

	//
	// START SERVER
	//
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped gracefully")
	}
}
