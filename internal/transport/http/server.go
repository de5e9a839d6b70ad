package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bapmate/internal/cache"
	"bapmate/internal/config"
	"bapmate/internal/database"
	"bapmate/internal/handler"
	"bapmate/internal/live"
	"bapmate/internal/queue"
	"bapmate/internal/redis"
	"bapmate/internal/repository"
	"bapmate/internal/service"
	"bapmate/internal/worker"
)

const (
	// streamMaxLen roughly bounds the events stream.
	streamMaxLen    = 100_000
	shutdownTimeout = 15 * time.Second
)

func Run() error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// 3. Connect to Redis
	rdb, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer rdb.Close()

	// 4. Repositories and caches
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	chatRepo := repository.NewChatRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	deviceTokenRepo := repository.NewDeviceTokenRepository(db)

	nameCache := cache.NewNameCache(rdb.Client)
	locations := cache.NewLocationStore(rdb.Client, cfg.LocationTTL)

	// 5. Events stream and live signals
	publisher := queue.NewPublisher(rdb.Client, streamMaxLen)
	notifier := live.NewNotifier(rdb.Client)
	hub := live.NewHub()
	if err := notifier.Start(ctx, hub.Dispatch); err != nil {
		return fmt.Errorf("failed to start live subscriber: %w", err)
	}

	// 6. Services
	var fcm, expo service.PushSender
	if cfg.PushEnabled() {
		client, err := service.NewFCMClient(ctx, cfg.FirebaseProjectID, cfg.FirebaseClientEmail, cfg.FirebasePrivateKey)
		if err != nil {
			return fmt.Errorf("failed to init FCM: %w", err)
		}
		fcm = client
	}
	if cfg.ExpoPushEnabled {
		expo = service.NewExpoPushClient()
	}
	var pushSender service.PushSender
	if fcm != nil || expo != nil {
		pushSender = service.NewPushRouter(fcm, expo)
	} else {
		log.Println("[Server] No push provider configured, push notifications disabled")
	}

	authService := service.NewAuthService(refreshTokenRepo, cfg)
	userService := service.NewUserService(userRepo, nameCache)
	passwordService := service.NewPasswordService(userRepo, publisher)
	postService := service.NewPostService(postRepo, requestRepo, userRepo, db)
	hotspotService := service.NewHotspotService(postRepo, cfg.HotspotDays, cfg.HotspotTopN)
	chatService := service.NewChatService(chatRepo, postRepo, userRepo, nameCache, locations, publisher, notifier, db)
	requestService := service.NewRequestService(requestRepo, postRepo, chatService, publisher, db)
	locationService := service.NewLocationService(chatService, locations, userRepo, nameCache, notifier)
	accountService := service.NewAccountService(userRepo, postRepo, requestRepo, refreshTokenRepo, deviceTokenRepo,
		chatService, nameCache, db, cfg.RecentLoginWindow)
	notificationService := service.NewNotificationService(deviceTokenRepo, pushSender)

	// 7. Workers
	managerCfg := worker.DefaultManagerConfig()
	managerCfg.WorkerCount = cfg.WorkerCount
	manager := worker.NewManager(queue.NewConsumer(rdb.Client), worker.NewHandler(notificationService, notifier), managerCfg)
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	defer manager.Stop()

	// 8. Setup Server
	router := NewRouter(RouterConfig{
		AuthHandler:         handler.NewAuthHandler(userService, authService),
		UserHandler:         handler.NewUserHandler(userService, accountService),
		AccountHandler:      handler.NewAccountHandler(userService, authService, passwordService),
		PostHandler:         handler.NewPostHandler(postService, hotspotService),
		RequestHandler:      handler.NewRequestHandler(requestService),
		ChatHandler:         handler.NewChatHandler(chatService),
		LocationHandler:     handler.NewLocationHandler(locationService),
		NotificationHandler: handler.NewNotificationHandler(notificationService),
		LiveHandler:         handler.NewLiveHandler(requestService, chatService, locationService, hub, cfg.WSInsecureSkipVerify),
		JWTSecret:           cfg.JWTSecret,
	})

	srv := &stdhttp.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Server] Listening on :%s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Println("[Server] Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Println("[Server] Stopped")
	return nil
}
