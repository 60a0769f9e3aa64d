package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"pulsefm/cache"
	"pulsefm/config"
	"pulsefm/core/acquire"
	"pulsefm/core/agent"
	"pulsefm/core/audio"
	"pulsefm/core/catalog"
	"pulsefm/core/library"
	"pulsefm/core/promo"
	"pulsefm/core/queue"
	"pulsefm/core/session"
	"pulsefm/core/station"
	"pulsefm/db"
	"pulsefm/logger"
	"pulsefm/model"
	"pulsefm/repository"
	"pulsefm/storage"

	"github.com/gorilla/mux"
)

// Start boots every station component, runs the playback loop and
// serves the control API until an interrupt arrives.
func Start() {
	cfg := config.Load()

	logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})
	defer logger.Sync()

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// MySQL is required; the queue, history, blocklist and promos live
	// there.
	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("mysql connect failed", logger.ErrorField(err))
	}
	defer db.CloseDB()
	if err := db.InitDB(); err != nil {
		logger.Fatal("schema init failed", logger.ErrorField(err))
	}
	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("gorm connect failed", logger.ErrorField(err))
	}
	defer db.CloseGormDB()
	if err := db.AutoMigrateModels(&model.QueueEntry{}, &model.BlockedTrack{}, &model.Promotion{}); err != nil {
		logger.Fatal("gorm migrate failed", logger.ErrorField(err))
	}

	// Redis mirrors are best-effort; the station runs without them.
	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Warn("redis unavailable, mirrors disabled", logger.ErrorField(err))
	} else {
		defer cache.CloseRedis()
	}

	// MinIO is the optional cold tier of the audio cache.
	var archive *storage.Archive
	if cfg.MinioEndpoint != "" {
		var err error
		archive, err = storage.NewArchive(cfg)
		if err != nil {
			logger.Warn("minio unavailable, archive tier disabled", logger.ErrorField(err))
			archive = nil
		}
	}

	ensureDirExists(cfg.AudioDir)
	ensureDirExists(cfg.ScratchDir)
	ensureDirExists(cfg.PromoDir)

	historyRepo := repository.NewMySQLHistoryRepository()
	queueRepo := repository.NewGormQueueRepository()
	blocklistRepo := repository.NewGormBlocklistRepository()
	promoRepo := repository.NewGormPromoRepository()

	playbackCache := cache.NewPlaybackCache()
	sessionCache := cache.NewSessionCache()

	catalogClient, err := catalog.NewClient(rootCtx, cfg)
	if err != nil {
		logger.Fatal("catalog client failed", logger.ErrorField(err))
	}
	resolver := catalog.NewResolver(catalogClient)
	walker := catalog.NewWalker(catalogClient)

	sourceCache, err := library.NewSourceCache(cfg.AudioDir, archive)
	if err != nil {
		logger.Fatal("audio cache init failed", logger.ErrorField(err))
	}
	defer sourceCache.Close()

	ffmpeg := audio.NewFFmpeg(cfg.FFmpegPath)
	acquirer := acquire.NewAcquirer(cfg, sourceCache, ffmpeg)

	spool, err := station.NewSpool(cfg.SpoolPath)
	if err != nil {
		logger.Fatal("spool init failed", logger.ErrorField(err))
	}

	q := queue.New(queueRepo, playbackCache)
	q.Start(rootCtx)

	state := station.NewStateStore(playbackCache)

	hub := session.NewHub()
	go hub.Run(rootCtx)
	sessions := session.NewManager(hub, sessionCache)

	var suggester station.TrackSuggester
	if cfg.AgentEnabled {
		suggester = agent.NewDJAgent(cfg)
		logger.Info("dj agent enabled", logger.String("model", cfg.AgentModel))
	}
	selector := station.NewSelector(walker, resolver, suggester,
		blocklistRepo, historyRepo, cfg.ReselectWindow, cfg.MaxAISelections)

	promos, err := promo.NewManager(promoRepo, cfg.PromoDir, cfg.PromoInterval)
	if err != nil {
		logger.Fatal("promo manager failed", logger.ErrorField(err))
	}

	var skip atomic.Bool
	relay := station.NewIcecastClient(cfg, ffmpeg, &skip)

	var blender station.Blender
	if cfg.CrossfadeSec > 0 {
		blender = audio.NewCrossfader(ffmpeg, cfg.ScratchDir, cfg.CrossfadeSec)
	}

	orch := station.NewOrchestrator(cfg, station.OrchestratorDeps{
		State:     state,
		Spool:     spool,
		Queue:     q,
		Selector:  selector,
		Fetcher:   acquirer,
		Relay:     relay,
		Blender:   blender,
		Promos:    promos,
		History:   historyRepo,
		Blocklist: blocklistRepo,
		Hub:       hub,
		Skip:      &skip,
	})
	go orch.Run(rootCtx)

	subs := station.NewSubmissions(q, state, resolver, blocklistRepo,
		historyRepo, hub, cfg.ResubmitWindow)

	api := NewAPIHandler(cfg, state, q, subs, orch, relay,
		historyRepo, blocklistRepo, resolver, sessions, hub)
	server.Handler = NewRouter(api)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("control api listening",
			logger.String("addr", cfg.ListenAddr),
			logger.String("station", cfg.StationName))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down")

	// Stops the playback loop, the hub and the queue writer.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", logger.ErrorField(err))
	}

	logger.Info("station stopped")
}

// NewRouter builds the control API router with the CORS middleware
// every route shares.
func NewRouter(api *APIHandler) *mux.Router {
	router := mux.NewRouter()

	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	router.HandleFunc("/api/playback/now", api.NowPlayingHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/playback/next", api.NextComingHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/history", api.HistoryHandler).Methods(http.MethodGet)

	router.HandleFunc("/api/queue", api.QueueHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/queue", api.SubmitHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/queue/{position}", api.RemoveFromQueueHandler).Methods(http.MethodDelete)

	router.HandleFunc("/api/skip", api.SkipHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/block-current", api.BlockCurrentHandler).Methods(http.MethodPost)

	router.HandleFunc("/api/blocklist", api.BlocklistHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/blocklist", api.BlockTrackHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/blocklist/{key}", api.UnblockHandler).Methods(http.MethodDelete)

	router.HandleFunc("/api/listeners", api.ListenersHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/auth/token", api.TokenHandler).Methods(http.MethodPost)

	router.HandleFunc("/ws", api.WebSocketHandler)
	router.HandleFunc("/healthz", api.HealthHandler).Methods(http.MethodGet)

	return router
}

func ensureDirExists(path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("creating directory", logger.String("path", path))
		if err := os.MkdirAll(path, 0755); err != nil {
			logger.Fatal("directory create failed", logger.String("path", path), logger.ErrorField(err))
		}
	} else if err != nil {
		logger.Fatal("directory check failed", logger.String("path", path), logger.ErrorField(err))
	}
}
