package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"microblog/internal/auth"
	"microblog/internal/config"
	apphttp "microblog/internal/http"
	"microblog/internal/mail"
	"microblog/internal/repository"
	"microblog/internal/repository/postgres"
	"microblog/internal/repository/sqlite"
	"microblog/internal/service"
	"microblog/internal/storage"
	"microblog/internal/tokenstore"
)

type repositories struct {
	users   repository.UserRepository
	posts   repository.PostRepository
	follows repository.FollowRepository
	close   func()
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	if err := setupLogger(logger, cfg); err != nil {
		logger.Fatalf("setup logger: %v", err)
	}
	if cfg.Auth.SecretKey == "" {
		logger.Warn("no secret key configured, using an insecure development key")
		cfg.Auth.SecretKey = "dev-secret-key"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := openRepositories(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer repos.close()

	consumed, closeTokens, err := buildTokenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup token store: %v", err)
	}
	defer closeTokens()

	tokens := auth.NewTokens(cfg.Auth.SecretKey)
	userService := service.NewUserService(repos.users, tokens, consumed, service.UserServiceConfig{
		ResetTTL: cfg.ResetTTL(),
	})
	socialService := service.NewSocialService(repos.follows)
	timelineService := service.NewTimelineService(repos.posts, cfg.Posts.PerPage)

	dispatcher := mail.NewDispatcher(mail.DispatcherConfig{
		MaxConcurrent: cfg.Mail.MaxConcurrent,
		From:          cfg.Mail.Sender,
		Logger:        logger,
	}, buildSender(cfg, logger))
	if err := dispatcher.Start(ctx); err != nil {
		logger.Fatalf("start mail dispatcher: %v", err)
	}
	if cfg.Mail.Server != "" && len(cfg.Mail.Admins) > 0 && !cfg.Server.Debug {
		logger.AddHook(mail.NewErrorHook(dispatcher, cfg.Mail.Admins, "Microblog Failure"))
	}

	storageSvc, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	handler := apphttp.NewHandler(apphttp.Options{
		Users:        userService,
		Social:       socialService,
		Timeline:     timelineService,
		Tokens:       tokens,
		Mailer:       dispatcher,
		Storage:      storageSvc,
		Logger:       logger,
		PostsPerPage: cfg.Posts.PerPage,
		SessionTTL:   cfg.SessionTTL(),
		RememberTTL:  cfg.RememberTTL(),
		MailSender:   cfg.Mail.Sender,
		BaseURL:      cfg.Server.BaseURL,
		Bucket:       cfg.Storage.Bucket,
		KeyPrefix:    cfg.Storage.KeyPrefix,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	dispatcher.Shutdown()

	logger.Info("bye")
}

func setupLogger(logger *logrus.Logger, cfg config.Config) error {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	if cfg.Server.Debug {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	if cfg.Log.File == "" {
		return nil
	}
	f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	logger.SetOutput(io.MultiWriter(os.Stderr, f))
	return nil
}

func openRepositories(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*repositories, error) {
	switch cfg.Database.Driver {
	case "postgres":
		pool, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		store := postgres.NewStore(pool)
		if err := store.Init(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
		logger.Info("using postgres database")
		return &repositories{users: store.Users, posts: store.Posts, follows: store.Follows, close: pool.Close}, nil
	default:
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		store := sqlite.NewStore(db)
		if err := store.Init(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
		logger.Infof("using sqlite database %s", cfg.Database.Path)
		return &repositories{
			users:   store.Users,
			posts:   store.Posts,
			follows: store.Follows,
			close:   func() { _ = db.Close() },
		}, nil
	}
}

// buildTokenStore shares spent reset tokens through redis when configured so every instance sees them.
func buildTokenStore(ctx context.Context, cfg config.Config, logger *logrus.Logger) (tokenstore.Store, func(), error) {
	if cfg.Redis.Addr == "" {
		return tokenstore.NewMemory(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Infof("using redis token store at %s", cfg.Redis.Addr)
	return tokenstore.NewRedis(client), func() { _ = client.Close() }, nil
}

func buildSender(cfg config.Config, logger *logrus.Logger) mail.Sender {
	if cfg.Mail.Server == "" {
		logger.Info("no mail server configured, outgoing mail is logged")
		return mail.LogSender{Logger: logger}
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.Mail.Server,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		UseTLS:   cfg.Mail.UseTLS,
	})
}

// buildStorage returns nil when no bucket is configured; uploads are then only logged.
func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Storage.Bucket == "" {
		return nil, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client), nil
}
