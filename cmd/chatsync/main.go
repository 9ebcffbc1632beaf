package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/tmurph/go-chatsync/internal/auth"
	"github.com/tmurph/go-chatsync/internal/client"
	"github.com/tmurph/go-chatsync/internal/config"
	"github.com/tmurph/go-chatsync/internal/engine"
	"github.com/tmurph/go-chatsync/internal/realtime"
	"github.com/tmurph/go-chatsync/internal/stats"
)

var (
	apiBaseUrl   string
	transport    string
	wsUrl        string
	redisAddr    string
	sessionToken string
	signingKey   string
	debugAddr    string
)

func main() {
	flag.StringVar(&apiBaseUrl, "api-url", "http://localhost:8000", "base URL of the messaging API")
	flag.StringVar(&transport, "transport", config.TransportWebsocket, "realtime transport: websocket or redis")
	flag.StringVar(&wsUrl, "ws-url", "ws://localhost:8000/ws", "websocket URL for the realtime stream")
	flag.StringVar(&redisAddr, "redis-addr", "localhost:6379", "redis address for the realtime stream")
	flag.StringVar(&sessionToken, "token", os.Getenv("CHATSYNC_TOKEN"), "session token")
	flag.StringVar(&signingKey, "signing-key", os.Getenv("CHATSYNC_SIGNING_KEY"), "base64 encoded session signing key")
	flag.StringVar(&debugAddr, "debug-addr", "localhost:8090", "address of the local debug endpoint")
	flag.Parse()

	logger := log.New(os.Stderr, "[chatsync] ", log.LstdFlags)

	cfg, err := config.NewConfig(apiBaseUrl, transport, wsUrl, redisAddr, sessionToken, signingKey, debugAddr)
	if err != nil {
		logger.Fatal("config:", err)
	}

	claims, err := auth.ParseSessionClaims(cfg.SessionToken, cfg.SigningKey)
	if err != nil {
		logger.Fatal("session token:", err)
	}
	logger.Printf("starting as user %q", claims.UserId)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var subr realtime.Subscriber
	switch cfg.Transport {
	case config.TransportRedis:
		redisSubr, err := realtime.NewRedisSubscriber(ctx, cfg.RedisAddr, logger)
		if err != nil {
			logger.Fatal("redis:", err)
		}
		defer redisSubr.Close()
		subr = redisSubr
	default:
		wsSubr, err := realtime.DialWsSubscriber(ctx, cfg.WsUrl, cfg.SessionToken, logger)
		if err != nil {
			logger.Fatal("websocket:", err)
		}
		defer wsSubr.Close()
		subr = wsSubr
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)
	statsUpdater.Run()
	defer statsUpdater.Stop()

	api := client.NewHttpChatAPI(cfg.ApiBaseUrl, cfg.SessionToken)

	eng := engine.NewEngine(api, subr, claims.UserId, logger, statsUpdater)
	if err := eng.Start(ctx); err != nil {
		logger.Fatal("engine start:", err)
	}

	debugSrv := &http.Server{
		Addr: cfg.DebugAddr,
		Handler: handlers.CORS(
			handlers.MaxAge(3600),
			handlers.AllowedMethods([]string{http.MethodGet}),
		)(mux),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- debugSrv.ListenAndServe()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("debug server:", err)
	}

	shutDownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer shutdownCancel()

	if err := debugSrv.Shutdown(shutDownCtx); err != nil {
		logger.Println("debug server shutdown:", err)
	}

	logger.Println("shutting down engine...")
	eng.Shutdown()

	logger.Println("shutdown complete")
}
