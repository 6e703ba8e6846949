package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"roomchat/internal/chat"
	"roomchat/internal/config"
	"roomchat/internal/db"
	"roomchat/internal/grpcserver"
	"roomchat/internal/handlers"
	"roomchat/internal/identity"
	"roomchat/internal/middleware"
	"roomchat/internal/observability"
	"roomchat/internal/rabbitmq"
	"roomchat/internal/realtime"
	"roomchat/internal/repositories"
	"roomchat/internal/telemetry"
	"roomchat/internal/tracing"
	"roomchat/internal/ws"
)

const serviceName = "roomchat"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, serviceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("amqp publisher mode=%s %s", rabbitmq.PublisherMode(publisher), rabbitmq.PublisherNoopReason(publisher))
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, "audit."+serviceName, serviceName, cfg.Environment)

	provider, closeThrottle := newIdentityProvider(cfg)
	defer closeThrottle()

	roomRepo := repositories.NewRoomRepo(database)
	memberRepo := repositories.NewMemberRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	feed := realtime.NewFeed()
	grpcSrv := grpcserver.New()
	go func() {
		if err := feed.Listen(ctx, cfg.DatabaseDSN, db.ChangeChannel, grpcSrv.SetFeedHealthy); err != nil {
			log.Printf("change feed stopped: %v", err)
			grpcSrv.SetFeedHealthy(false)
		}
	}()

	gate := chat.NewGate(provider)
	directory := chat.NewDirectory(roomRepo, memberRepo)
	joiner := chat.NewJoiner(roomRepo, memberRepo, cfg.StrictMembership)
	creator := chat.NewCreator(roomRepo)
	sender := chat.NewSender(roomRepo, messageRepo)

	authHandler := handlers.NewAuthHandler(provider, audit)
	roomHandler := handlers.NewRoomHandler(directory, joiner, creator, audit)
	messageHandler := handlers.NewMessageHandler(roomRepo, messageRepo, sender, audit)

	hub := ws.NewHub()
	roomWS := ws.NewRoomWebSocketHandler(hub, gate, joiner, feed, messageRepo)
	directoryWS := ws.NewDirectoryWebSocketHandler(hub, gate, directory, feed)

	router := gin.Default()

	// middlewares
	router.Use(cors.New(corsConfig(cfg.CORSAllowedOrigins)))
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	authMiddleware := middleware.AuthMiddleware(gate)

	router.POST("/auth/login", authHandler.Login)
	router.POST("/auth/federated/:provider", authHandler.FederatedLogin)
	router.POST("/auth/logout", authMiddleware, authHandler.Logout)
	router.GET("/auth/me", authMiddleware, authHandler.Me)

	router.GET("/rooms", authMiddleware, roomHandler.ListRooms)
	router.POST("/rooms", authMiddleware, roomHandler.CreateRoom)
	router.GET("/rooms/:room_id", authMiddleware, roomHandler.OpenRoom)
	router.GET("/rooms/:room_id/members", authMiddleware, roomHandler.ListMembers)
	router.DELETE("/rooms/:room_id/members/me", authMiddleware, roomHandler.LeaveRoom)
	router.GET("/rooms/:room_id/messages", authMiddleware, messageHandler.ListMessages)
	router.POST("/rooms/:room_id/messages", authMiddleware, messageHandler.PostMessage)
	router.GET("/me/rooms", authMiddleware, roomHandler.ListMyRooms)

	router.GET("/ws/rooms", directoryWS.Handle)
	router.GET("/ws/rooms/:room_id", roomWS.Handle)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()
	go func() {
		if err := grpcSrv.Serve(net.JoinHostPort("", cfg.GRPCPort)); err != nil {
			log.Printf("grpc server error: %v", err)
		}
	}()
	grpcSrv.SetServing(true)
	log.Printf("roomchat listening on :%s", cfg.Port)

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcSrv.Stop()
	hub.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown: %v", err)
	}
}

func newIdentityProvider(cfg *config.Config) (*identity.Provider, func()) {
	accounts := make([]identity.Account, 0, len(cfg.Accounts))
	for _, acc := range cfg.Accounts {
		accounts = append(accounts, identity.Account{
			ID:           acc.ID,
			Email:        acc.Email,
			PasswordHash: acc.PasswordHash,
			DisplayName:  acc.DisplayName,
			AvatarURL:    acc.AvatarURL,
		})
	}

	var throttle identity.Throttle = identity.NoThrottle{}
	closeThrottle := func() {}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		throttle = identity.NewRedisThrottle(client, cfg.SignInMaxAttempts, cfg.SignInWindow)
		closeThrottle = func() { client.Close() }
		log.Printf("sign-in throttle enabled redis=%s max_attempts=%d window=%s", cfg.RedisAddr, cfg.SignInMaxAttempts, cfg.SignInWindow)
	}

	provider := identity.NewProvider(
		identity.NewStaticAccounts(accounts),
		identity.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		cfg.FederatedProviders,
		throttle,
	)
	return provider, closeThrottle
}

func corsConfig(origins []string) cors.Config {
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", "X-Device-Id"}
	corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsCfg.ExposeHeaders = []string{"Location"}

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
	}
	return corsCfg
}
