package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nocap-editor/auth"
	"nocap-editor/config"
	"nocap-editor/handlers/api/assets"
	"nocap-editor/handlers/api/projects"
	"nocap-editor/handlers/websocket"
	authMiddleware "nocap-editor/middleware"
	"nocap-editor/stores"
	"nocap-editor/thumbnail"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func setupRouter(store stores.Store, hub *websocket.Hub, cfg config.Config) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"https://*", "http://*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "X-CSRF-Token", "Origin", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	renderer := thumbnail.New(cfg.Editor.ThumbnailWidth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authMiddleware.AuthJWT)
		r.Mount("/projects", projects.Routes(store,
			projects.WithNotifier(hub),
			projects.WithThumbnailer(renderer.DataURL),
		))
		r.Mount("/assets", assets.Routes(store))
	})

	r.Mount("/socket.io/", hub.Server().ServeHandler(nil))
	return r
}

func waitForShutdown(srv *http.Server, hub *websocket.Hub, store stores.Store) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	s := <-signals
	logrus.WithField("signal", s.String()).Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
	hub.Close()
	stores.Close(store)
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to a TOML config file.")
	listenAddress := flag.String("listen", "", "The address to listen on. Overrides the config file.")
	logLevel := flag.String("loglevel", "", "The log level (debug, info, warn, error). Overrides the config file.")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	if *listenAddress != "" {
		cfg.ListenAddr = *listenAddress
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	auth.Init(cfg.JWTSecret)
	store, err := stores.GetStore(context.Background(), cfg.Storage)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open storage")
	}

	hub := websocket.SetupSocketIO(cfg.AllowedOrigins...)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           setupRouter(store, hub, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logrus.WithField("addr", cfg.ListenAddr).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	waitForShutdown(srv, hub, store)
}
