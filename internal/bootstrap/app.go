package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"csreply-backend/internal/generator"
	"csreply-backend/internal/inquiries"
	"csreply-backend/internal/llm"
	openai "csreply-backend/internal/llm/openai"
	"csreply-backend/internal/queue"
	"csreply-backend/internal/responses"
	"csreply-backend/internal/rules"
	"csreply-backend/internal/services/health"
	"csreply-backend/internal/shared/auth"
	"csreply-backend/internal/shared/config"
	"csreply-backend/internal/shared/lock"
	"csreply-backend/internal/shared/server"
	"csreply-backend/internal/shared/storage/db"
	"csreply-backend/internal/shared/storage/object"
	localstore "csreply-backend/internal/shared/storage/object/local"
	s3store "csreply-backend/internal/shared/storage/object/s3"
	"csreply-backend/internal/submitter"
	"csreply-backend/internal/workflow"
)

const lockTTL = 2 * time.Minute

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Redis  *redis.Client
	Store  object.ObjectStore

	Queue    queue.Client
	Consumer queue.Consumer
	Locker   lock.Locker

	Rules *rules.Store
	// Watcher is set when RULES_FILE names a file; callers run and close it.
	Watcher *rules.Watcher

	InquiriesRepo inquiries.Repo
	ResponsesRepo responses.Repo

	InquiriesService *inquiries.Service
	Workflow         *workflow.Service

	InquiryHandler  *inquiries.Handler
	WorkflowHandler *workflow.Handler
}

// Build prepares shared dependencies and the HTTP router.
func Build(cfg config.Config) (*App, error) {
	return build(cfg, db.DefaultServerOptions())
}

// BuildWorker is Build with a connection pool sized for the worker.
func BuildWorker(cfg config.Config) (*App, error) {
	return build(cfg, db.DefaultWorkerOptions(cfg.WorkerConcurrency))
}

func build(cfg config.Config, dbOpts db.Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg, dbOpts)
	if err != nil {
		return nil, err
	}

	ruleStore, err := buildRules(cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Rules:  ruleStore,
	}

	if cfg.RedisAddr != "" {
		app.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	if err := buildQueue(app); err != nil {
		return nil, err
	}
	if err := buildLocker(app); err != nil {
		return nil, err
	}
	if cfg.RulesFile != "" {
		app.Watcher, err = rules.NewWatcher(cfg.RulesFile, ruleStore, thresholdOverrides(cfg))
		if err != nil {
			return nil, fmt.Errorf("rules watcher: %w", err)
		}
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	secret, err := auth.Secret(cfg.Env, cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		JWTSecret:       secret,
		InquiryHandler:  app.InquiryHandler,
		WorkflowHandler: app.WorkflowHandler,
		Health:          app.health(),
	})

	return app, nil
}

// Close releases connections held by the app.
func (a *App) Close() {
	if a.Watcher != nil {
		_ = a.Watcher.Close()
	}
	if closer, ok := a.Queue.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

func (a *App) health() *health.Service {
	svc := health.NewService()
	if a.DB != nil {
		svc.Register("database", a.DB.PingContext)
	}
	if a.Redis != nil {
		svc.Register("redis", func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		})
	}
	return svc
}

func buildDB(ctx context.Context, cfg config.Config, defaults db.Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(defaults))
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

// BuildRules loads the decision rules with env threshold overrides applied.
func BuildRules(cfg config.Config) (*rules.Store, error) {
	return buildRules(cfg)
}

func buildRules(cfg config.Config) (*rules.Store, error) {
	base := rules.Default()
	if cfg.RulesFile != "" {
		loaded, err := rules.LoadFile(cfg.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("load rules: %w", err)
		}
		base = loaded
	}
	adjusted, err := thresholdOverrides(cfg)(base)
	if err != nil {
		return nil, fmt.Errorf("rules thresholds: %w", err)
	}
	log.Printf("bootstrap: rules loaded fingerprint=%s", adjusted.Fingerprint())
	return rules.NewStore(adjusted), nil
}

func thresholdOverrides(cfg config.Config) func(*rules.Rules) (*rules.Rules, error) {
	return func(r *rules.Rules) (*rules.Rules, error) {
		return r.WithThresholds(cfg.ConfidenceThreshold, cfg.AutoApproveThreshold, cfg.MaxResponseLength)
	}
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "none":
		return nil, nil
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(app *App) error {
	switch app.Config.QueueBackend {
	case "redis":
		if app.Redis == nil {
			return errors.New("QUEUE_BACKEND=redis requires REDIS_ADDR")
		}
		q := queue.NewRedisQueue(app.Redis, queue.DefaultRedisKey)
		app.Queue = q
		app.Consumer = q
	default:
		q := queue.NewMemoryQueue()
		app.Queue = q
		app.Consumer = q
	}
	return nil
}

func buildLocker(app *App) error {
	switch app.Config.LockBackend {
	case "redis":
		if app.Redis == nil {
			return errors.New("LOCK_BACKEND=redis requires REDIS_ADDR")
		}
		app.Locker = lock.NewRedisLocker(app.Redis, lockTTL)
	default:
		app.Locker = lock.NewMemoryLocker()
	}
	return nil
}

func buildGenerator(cfg config.Config, maxLength int) (generator.Generator, error) {
	tmpl, err := generator.NewTemplateGenerator()
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}
	if cfg.LLMProvider != "openai" {
		return tmpl, nil
	}
	client, err := openai.NewClient(os.Getenv("OPENAI_API_KEY"), cfg.LLMModel)
	if err != nil {
		return nil, err
	}
	return generator.Chain{
		&generator.LLMGenerator{Client: llm.WithRetry(client), MaxLength: maxLength},
		tmpl,
	}, nil
}

func buildSubmitter(cfg config.Config) submitter.Submitter {
	if strings.TrimSpace(cfg.SubmitURL) == "" {
		return submitter.LogSubmitter{}
	}
	return submitter.NewWebhookSubmitter(cfg.SubmitURL, cfg.SubmitToken)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) error {
	if app.DB != nil {
		app.InquiriesRepo = &inquiries.PGRepo{DB: app.DB}
		app.ResponsesRepo = &responses.PGRepo{DB: app.DB}
	} else {
		app.InquiriesRepo = inquiries.NewMemoryRepo()
		app.ResponsesRepo = responses.NewMemoryRepo()
	}

	gen, err := buildGenerator(app.Config, app.Rules.Current().Thresholds.MaxResponseLength)
	if err != nil {
		return err
	}

	app.InquiriesService = &inquiries.Service{
		Repo:  app.InquiriesRepo,
		Queue: app.Queue,
	}
	app.Workflow = &workflow.Service{
		Inquiries:   app.InquiriesRepo,
		Responses:   app.ResponsesRepo,
		Rules:       app.Rules,
		Generator:   gen,
		Submitter:   buildSubmitter(app.Config),
		Locker:      app.Locker,
		Store:       app.Store,
		AutoSubmit:  app.Config.AutoSubmit,
		BatchSize:   app.Config.BatchSize,
		Concurrency: app.Config.WorkerConcurrency,
		StaleAfter:  app.Config.StaleAfter,
	}
	app.InquiryHandler = inquiries.NewHandler(app.InquiriesService)
	app.WorkflowHandler = workflow.NewHandler(app.Workflow)

	if app.InquiryHandler == nil || app.WorkflowHandler == nil {
		return errors.New("failed to initialize handlers")
	}
	return nil
}
