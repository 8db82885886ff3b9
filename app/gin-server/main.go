package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoocare/config"
	"github.com/yoockh/yoocare/internal/api/handlers"
	"github.com/yoockh/yoocare/internal/api/middleware"
	"github.com/yoockh/yoocare/internal/api/routes"
	"github.com/yoockh/yoocare/internal/audio"
	"github.com/yoockh/yoocare/internal/cache"
	"github.com/yoockh/yoocare/internal/knowledge"
	"github.com/yoockh/yoocare/internal/logger"
	"github.com/yoockh/yoocare/internal/observability/metrics"
	"github.com/yoockh/yoocare/internal/providers/embedding"
	"github.com/yoockh/yoocare/internal/providers/llm"
	"github.com/yoockh/yoocare/internal/providers/notify"
	"github.com/yoockh/yoocare/internal/providers/stt"
	"github.com/yoockh/yoocare/internal/quota"
	mongorepo "github.com/yoockh/yoocare/internal/repositories/mongo"
	pgrepo "github.com/yoockh/yoocare/internal/repositories/postgres"
	"github.com/yoockh/yoocare/internal/retry"
	"github.com/yoockh/yoocare/internal/services"
	"github.com/yoockh/yoocare/internal/storage"
	"github.com/yoockh/yoocare/internal/workers"
)

func main() {
	_ = godotenv.Load()
	log := logger.New("yoocare-api")

	cfg, err := config.LoadPipeline()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	if err := config.InitMongo(); err != nil {
		log.WithError(err).Fatal("MongoDB init error")
	}
	log.Info("MongoDB connected")
	if err := config.InitPostgres(); err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}
	log.Info("PostgreSQL connected")
	if err := config.InitRedis(); err != nil {
		log.WithError(err).Fatal("Redis init error")
	}
	log.Info("Redis connected")

	if err := config.MigratePostgres(config.PostgresDB); err != nil {
		log.WithError(err).Fatal("PostgreSQL migration error")
	}
	if err := config.EnsureMongoIndexes(); err != nil {
		log.WithError(err).Fatal("MongoDB index error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mdb := config.MongoDatabase()
	patientRepo := pgrepo.NewPatientRepo(config.PostgresDB)
	voiceRepo := pgrepo.NewVoiceFileRepo(config.PostgresDB)
	kbRepo := pgrepo.NewKBRepo(config.PostgresDB)
	assignRepo := pgrepo.NewAssignmentRepo(config.PostgresDB)
	specialistRepo := mongorepo.NewSpecialistRepo(mdb)
	auditRepo := mongorepo.NewAuditRepo(mdb)
	jobRepo := mongorepo.NewIntakeJobRepo(mdb)

	policy := retry.None
	if cfg.RetryMax > 0 {
		policy = retry.Policy{MaxRetries: cfg.RetryMax, InitialInterval: 500 * time.Millisecond, MaxInterval: 5 * time.Second}
	}

	embedder := embedding.NewCached(
		embedding.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel),
		cache.NewRedisCache(config.RedisClient, "emb:"),
		cfg.EmbeddingTTL,
		log,
	)

	kb, err := knowledge.Load(ctx, kbRepo)
	if err != nil {
		log.WithError(err).Fatal("knowledge base load error")
	}
	log.WithField("examples", kb.Len()).Info("knowledge base loaded")

	var quotaStore quota.Store = quota.NewRedisStore(config.RedisClient)
	if cfg.QuotaStore == "memory" {
		quotaStore = quota.NewMemoryStore()
	}
	quotas := quota.NewManager(quotaStore, cfg.QuotaCapacities, cfg.QuotaRatio)

	completer, err := newLLM(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("LLM provider init error")
	}
	defer completer.Close()

	speech, err := newSTT(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("speech provider init error")
	}
	defer speech.Close()

	uploader, closeUploader, err := newUploader(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("storage init error")
	}
	defer closeUploader.Close()

	channel := newChannel(cfg, log)
	if c, ok := channel.(io.Closer); ok {
		defer c.Close()
	}

	m := metrics.Default
	preprocessor := audio.NewPreprocessor(audio.Config{
		MaxBytes:     cfg.AudioMaxBytes,
		AllowedExts:  cfg.AudioAllowedExts,
		PropDecrease: cfg.NoisePropDecr,
		FFmpegPath:   cfg.FFmpegPath,
	})

	matcher := services.NewSpecialistMatcher(services.SpecialistMatcherConfig{
		Threshold: cfg.SpecialistThreshold,
		Retry:     policy,
	}, specialistRepo, embedder, m, log)
	if err := matcher.Refresh(ctx); err != nil {
		log.WithError(err).Fatal("specialist catalog load error")
	}

	patientSvc := services.NewPatientService(patientRepo)
	voiceSvc := services.NewVoiceService(voiceRepo, uploader, policy, log)
	auditQuery := services.NewAuditQueryService(auditRepo)
	jobSvc := services.NewIntakeJobService(jobRepo, cfg.JobTTL)

	intakeSvc := services.NewIntakeService(services.IntakeDeps{
		Preprocessor: preprocessor,
		Patients:     patientRepo,
		Voices:       voiceSvc,
		Transcriber:  services.NewTranscriber(speech, policy),
		Extractor: services.NewContextExtractor(services.ContextExtractorConfig{
			Model: cfg.ContextModel,
			TopK:  cfg.KBTopK,
			Retry: policy,
		}, completer, quotas, embedder, kb, m, log),
		Analyzer: services.NewRiskAnalyzer(services.RiskAnalyzerConfig{
			Model: cfg.RiskModel,
			Retry: policy,
		}, completer, quotas, m, log),
		Matcher:    matcher,
		Balancer:   services.NewAssignmentBalancer(assignRepo, m),
		Dispatcher: services.NewAlertDispatcher(channel, cfg.AlertRatePerMin, m, log),
		Auditor:    services.NewAuditRecorder(auditRepo),
		Metrics:    m,
		Logger:     log,
	})
	diagnosisSvc := services.NewDiagnosisService(cfg.DiagnosisModel, policy, completer, quotas, matcher, patientRepo, m, log)

	pool := &workers.IntakeWorkerPool{
		Redis:      config.RedisClient,
		Intake:     intakeSvc,
		Jobs:       jobSvc,
		NumWorkers: cfg.Workers,
		Metrics:    m,
		Logger:     log,
		RunTimeout: cfg.RunTimeout,
	}
	if err := pool.Start(ctx); err != nil {
		log.WithError(err).Fatal("intake worker pool error")
	}
	queue := &workers.Queue{Redis: config.RedisClient, MaxLen: 10000}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log, m))
	routes.RegisterRoutes(r, routes.Deps{
		Intake:        handlers.NewIntakeHandler(intakeSvc, jobSvc, queue, preprocessor, cfg.AudioMaxBytes, log),
		Patient:       handlers.NewPatientHandler(patientSvc, voiceSvc, auditQuery),
		Triage:        handlers.NewTriageHandler(diagnosisSvc, patientSvc, matcher, quotas),
		Doctor:        handlers.NewDoctorHandler(auditQuery),
		WS:            handlers.NewWSHandler(jobSvc, config.RedisClient, cfg.WSAllowedOrigins),
		IntakeLimiter: middleware.NewIPRateLimiter(cfg.IntakePerMinute, cfg.IntakePerMinute),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

func newLLM(ctx context.Context, cfg config.Pipeline) (llm.Provider, error) {
	if cfg.LLMProvider == "openai" {
		return llm.NewOpenAIChat(cfg.OpenAIKey, cfg.OpenAIBaseURL), nil
	}
	return llm.NewVertexGemini(ctx, cfg.GCPProject, cfg.GCPLocation)
}

func newSTT(ctx context.Context, cfg config.Pipeline) (stt.Provider, error) {
	if cfg.STTProvider == "whisper" {
		return stt.NewWhisper(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.WhisperModel), nil
	}
	return stt.NewGoogleSpeech(ctx, cfg.SpeechLanguage, cfg.AltLanguages...)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newUploader(ctx context.Context, cfg config.Pipeline) (storage.Uploader, io.Closer, error) {
	if cfg.StorageBackend == "local" {
		return storage.LocalUploader{Dir: cfg.LocalDir}, nopCloser{}, nil
	}
	u, err := storage.NewGCSUploader(ctx, cfg.GCSBucket, cfg.GCSPublic)
	if err != nil {
		return nil, nil, err
	}
	return u, u, nil
}

func newChannel(cfg config.Pipeline, log *logrus.Logger) notify.Channel {
	switch cfg.NotifyChannel {
	case "email":
		return notify.NewEmail(notify.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	case "kafka":
		return notify.NewKafka(notify.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
	default:
		return notify.NewLog(log)
	}
}
