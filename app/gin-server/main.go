package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yoockh/yoointerview/config"
	"github.com/yoockh/yoointerview/internal/api/handlers"
	"github.com/yoockh/yoointerview/internal/api/middleware"
	"github.com/yoockh/yoointerview/internal/api/routes"
	"github.com/yoockh/yoointerview/internal/cache"
	"github.com/yoockh/yoointerview/internal/interview"
	"github.com/yoockh/yoointerview/internal/logger"
	"github.com/yoockh/yoointerview/internal/metrics"
	"github.com/yoockh/yoointerview/internal/providers/llm"
	"github.com/yoockh/yoointerview/internal/providers/remote"
	"github.com/yoockh/yoointerview/internal/providers/stt"
	"github.com/yoockh/yoointerview/internal/providers/tts"
	mongorepo "github.com/yoockh/yoointerview/internal/repositories/mongo"
	pgrepo "github.com/yoockh/yoointerview/internal/repositories/postgres"
	"github.com/yoockh/yoointerview/internal/services"
	"github.com/yoockh/yoointerview/internal/storage"
	"github.com/yoockh/yoointerview/internal/workers"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logger.New(cfg.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.InitMongo(ctx, cfg); err != nil {
		log.WithError(err).Fatal("MongoDB init error")
	}
	mdb := config.MongoClient.Database(cfg.MongoDB)
	if err := config.EnsureMongoIndexes(ctx, mdb); err != nil {
		log.WithError(err).Fatal("MongoDB index error")
	}
	log.Info("MongoDB connected")

	if err := config.InitPostgres(ctx, cfg); err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}
	if err := config.MigratePostgres(); err != nil {
		log.WithError(err).Fatal("PostgreSQL migration error")
	}
	log.Info("PostgreSQL connected")

	if err := config.InitRedis(ctx, cfg); err != nil {
		log.WithError(err).Fatal("Redis init error")
	}
	log.Info("Redis connected")

	sttProvider, llmProvider, ttsProvider, err := buildProviders(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("provider init error")
	}
	defer sttProvider.Close()
	defer llmProvider.Close()
	defer ttsProvider.Close()

	rdb := config.RedisClient
	redisCache := cache.NewRedisCache(rdb)
	collector := metrics.NewCollector()

	sessionSvc := services.NewSessionService(mongorepo.NewSessionRepo(mdb))
	conversationSvc := services.NewConversationService(pgrepo.NewConversationRepo(config.PostgresDB))
	creditSvc := services.NewCreditService(pgrepo.NewCreditRepo(config.PostgresDB), redisCache, services.CreditConfig{
		StartingCredits: cfg.StartingCredits,
		MaxEarlyRefunds: cfg.MaxEarlyRefunds,
	}, log)
	profileSvc := services.NewProfileService(pgrepo.NewProfileRepo(config.PostgresDB), redisCache, 0)
	journalSvc := services.NewJournalService(mongorepo.NewTurnRepo(mdb), cfg.JournalTTL)
	reportSvc := services.NewReportService(rdb, mongorepo.NewReportRepo(mdb), sessionSvc, conversationSvc, log)
	bus := services.NewEventBus(rdb)

	interviewSvc := services.NewInterviewService(services.LiveConfig{
		VAD: interview.VADConfig{
			Threshold:       cfg.VADThreshold,
			SilenceDuration: cfg.VADSilence,
			PollInterval:    cfg.VADPoll,
		},
		Timer: interview.TimerConfig{
			Cap:            cfg.SessionCap,
			EarlyThreshold: cfg.EarlyDisconnect,
			Tick:           time.Second,
		},
		QuestionLimit: cfg.QuestionLimit,
		SampleRate:    cfg.SampleRate,
		StartTimeout:  cfg.StartTimeout,
	}, services.LiveDeps{
		STT:      sttProvider,
		LLM:      llmProvider,
		TTS:      ttsProvider,
		Sessions: sessionSvc,
		Credits:  creditSvc,
		Profiles: profileSvc,
		Reporter: reportSvc,
		Journal:  journalSvc,
		Sink:     bus,
		Metrics:  collector,
		Registry: interview.NewRegistry(),
		Logger:   log,
	})

	var cvHandler *handlers.CVHandler
	if cfg.GCSBucket != "" {
		gcs, err := storage.NewGCSUploader(ctx, cfg.GCSBucket)
		if err != nil {
			log.WithError(err).Fatal("GCS init error")
		}
		defer gcs.Close()
		cvHandler = handlers.NewCVHandler(services.NewCVFileService(pgrepo.NewCVFileRepo(config.PostgresDB), gcs, gcs))
	} else {
		log.Warn("GCS_BUCKET is not set; CV upload is disabled")
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	routes.RegisterRoutes(r, routes.Deps{
		Session:      handlers.NewSessionHandler(sessionSvc, interviewSvc, reportSvc, journalSvc),
		Credit:       handlers.NewCreditHandler(creditSvc),
		Profile:      handlers.NewProfileHandler(profileSvc),
		CV:           cvHandler,
		Conversation: handlers.NewConversationHandler(conversationSvc),
		WS: handlers.NewWSHandler(interviewSvc, bus, collector, log, handlers.WSConfig{
			MessageRate:    cfg.WSMessageRate,
			Burst:          cfg.WSBurst,
			AllowedOrigins: cfg.WSOrigins,
		}),
		JWT: middleware.JWTConfig{
			Secret:   cfg.JWTSecret,
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
		},
		Metrics: collector.Handler(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("port", cfg.Port).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		pool := &workers.ReportWorkerPool{
			Redis:      rdb,
			Reports:    reportSvc,
			NumWorkers: cfg.ReportWorkers,
			Logger:     log,
		}
		return pool.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		// End live interviews first so their reports reach the stream.
		interviewSvc.Shutdown(shutdownCtx)
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("server stopped with error")
		os.Exit(1)
	}
	log.Info("server stopped")
}

func buildProviders(ctx context.Context, cfg *config.App, log *logrus.Logger) (stt.Provider, llm.Provider, tts.Provider, error) {
	var (
		s   stt.Provider
		l   llm.Provider
		err error
	)

	switch cfg.STTProvider {
	case "google":
		s, err = stt.NewGoogleSpeech(ctx, int32(cfg.SampleRate))
		if err != nil {
			return nil, nil, nil, err
		}
	default:
		s = stt.NewHTTPProvider(remote.New(cfg.STTURL, cfg.STTToken, cfg.RemoteTimeout), "", "")
	}

	switch cfg.LLMProvider {
	case "http":
		l = llm.NewHTTPProvider(remote.New(cfg.LLMURL, cfg.LLMToken, cfg.RemoteTimeout), "")
	default:
		gemini, gerr := llm.NewVertexGemini(ctx, cfg.VertexProject, cfg.VertexLocation, cfg.VertexModel)
		if gerr != nil {
			_ = s.Close()
			return nil, nil, nil, gerr
		}
		router := &llm.Router{Free: gemini}
		if cfg.OpenAIKey != "" {
			router.Pro = llm.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		} else {
			log.Warn("OPENAI_API_KEY is not set; pro plans use Gemini")
		}
		l = router
	}

	t := tts.NewHTTPProvider(remote.New(cfg.TTSURL, cfg.TTSToken, cfg.RemoteTimeout), "", "")
	return s, l, t, nil
}
