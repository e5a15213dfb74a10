package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dreschagin/latency-validator/internal/application/port"
	"github.com/dreschagin/latency-validator/internal/application/usecase"
	"github.com/dreschagin/latency-validator/internal/domain/repository"
	redisCache "github.com/dreschagin/latency-validator/internal/infrastructure/cache/redis"
	"github.com/dreschagin/latency-validator/internal/infrastructure/messaging/nats"
	"github.com/dreschagin/latency-validator/internal/infrastructure/observability/cloudwatch"
	"github.com/dreschagin/latency-validator/internal/infrastructure/observability/metrics"
	"github.com/dreschagin/latency-validator/internal/infrastructure/persistence/dynamodb"
	"github.com/dreschagin/latency-validator/internal/infrastructure/persistence/postgres"
	"github.com/dreschagin/latency-validator/internal/infrastructure/storage/s3"
	"github.com/dreschagin/latency-validator/pkg/config"
	"github.com/dreschagin/latency-validator/pkg/logger"
)

const closeTimeout = 5 * time.Second

// resultSinks держит опциональные адаптеры, поднятые по конфигурации.
// Поля остаются nil, если приемник выключен или не смог подключиться.
type resultSinks struct {
	cache      port.Cache
	repository repository.AnalysisRepository
	storage    port.ReportStorage
	metadata   port.ReportMetadataRepository
	metrics    port.MetricsPublisher
	events     port.EventPublisher
	textfile   port.MetricsTextfile

	closers []func()
}

func buildSinks(ctx context.Context, cfg *config.Config, log *logger.Logger) *resultSinks {
	sinks := &resultSinks{}

	// CloudWatch Logs поднимаем первым, чтобы остальная инициализация тоже туда попала
	if cfg.CloudWatch.LogsEnabled {
		logsPublisher, err := cloudwatch.NewLogsPublisher(ctx, cloudwatch.LogsPublisherConfig{
			LogGroupName:      cfg.CloudWatch.LogGroupName,
			StreamPrefix:      cfg.CloudWatch.LogStreamPrefix,
			Region:            cfg.CloudWatch.Region,
			Endpoint:          cfg.CloudWatch.Endpoint,
			AccessKeyID:       cfg.CloudWatch.AccessKeyID,
			SecretAccessKey:   cfg.CloudWatch.SecretAccessKey,
			AutoCreate:        true,
			RequestsPerSecond: cfg.CloudWatch.RequestsPerSecond,
		})
		if err != nil {
			log.Warn("CloudWatch Logs disabled", "error", err.Error())
		} else {
			log.SetLogPublisher(logsPublisher)
			sinks.onClose(func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
				defer cancel()
				log.SetLogPublisher(nil)
				_ = logsPublisher.Close(closeCtx)
			})
			log.Info("CloudWatch Logs enabled", "group", cfg.CloudWatch.LogGroupName, "stream", logsPublisher.Stream())
		}
	}

	if cfg.Redis.Enabled {
		cache, err := redisCache.NewRedisCache(ctx, redisCache.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			TTL:          cfg.Redis.TTL,
			PoolSize:     2,
			MinIdleConns: 0,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
		})
		if err != nil {
			log.Warn("Redis cache disabled", "error", err.Error())
		} else {
			sinks.cache = cache
			sinks.onClose(func() { _ = cache.Close() })
			log.Debug("Redis cache enabled", "addr", cfg.Redis.Host+":"+cfg.Redis.Port)
		}
	}

	if cfg.Database.Enabled {
		if repo, db, err := openPostgres(ctx, cfg.Database); err != nil {
			log.Warn("PostgreSQL history disabled", "error", err.Error())
		} else {
			sinks.repository = repo
			sinks.onClose(func() { _ = db.Close() })
			log.Debug("PostgreSQL history enabled", "database", cfg.Database.Database)
		}
	}

	if cfg.S3.Enabled {
		storage, err := s3.NewReportStorage(ctx, s3.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
			URLMode:         s3.URLMode(cfg.S3.URLMode),
			PresignedTTL:    cfg.S3.PresignedTTL,
		})
		if err != nil {
			log.Warn("S3 report archive disabled", "error", err.Error())
		} else {
			sinks.storage = storage
		}
	}

	if cfg.DynamoDB.Enabled && sinks.storage != nil {
		metadata, err := openReportIndex(ctx, cfg)
		if err != nil {
			log.Warn("DynamoDB report index disabled", "error", err.Error())
		} else {
			sinks.metadata = metadata
		}
	}

	if cfg.CloudWatch.MetricsEnabled {
		publisher, err := cloudwatch.NewMetricsPublisher(ctx, cloudwatch.MetricsPublisherConfig{
			Namespace:         cfg.CloudWatch.Namespace,
			Region:            cfg.CloudWatch.Region,
			Endpoint:          cfg.CloudWatch.Endpoint,
			AccessKeyID:       cfg.CloudWatch.AccessKeyID,
			SecretAccessKey:   cfg.CloudWatch.SecretAccessKey,
			StorageResolution: 60,
			RequestsPerSecond: cfg.CloudWatch.RequestsPerSecond,
		})
		if err != nil {
			log.Warn("CloudWatch metrics disabled", "error", err.Error())
		} else {
			sinks.metrics = publisher
		}
	}

	if cfg.NATS.Enabled {
		publisher, err := nats.NewNATSPublisher(cfg.NATS.URL, log)
		if err != nil {
			log.Warn("NATS events disabled", "error", err.Error())
		} else {
			sinks.events = publisher
			sinks.onClose(func() { _ = publisher.Close() })
		}
	}

	if cfg.Prometheus.TextfilePath != "" {
		sinks.textfile = metrics.New(prometheus.NewRegistry())
	}

	return sinks
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig) (*postgres.PostgresAnalysisRepository, *sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, err
	}

	repo := postgres.NewPostgresAnalysisRepository(db)
	if cfg.AutoMigrate {
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
	}

	return repo, db, nil
}

func openReportIndex(ctx context.Context, cfg *config.Config) (*dynamodb.ReportMetadataRepository, error) {
	return dynamodb.NewReportMetadataRepository(ctx, dynamodb.Config{
		TableName:       cfg.DynamoDB.TableName,
		Region:          cfg.DynamoDB.Region,
		Endpoint:        cfg.DynamoDB.Endpoint,
		AccessKeyID:     cfg.DynamoDB.AccessKeyID,
		SecretAccessKey: cfg.DynamoDB.SecretAccessKey,
		StrongReads:     cfg.DynamoDB.StrongReads,
	})
}

// publishUseCase возвращает nil, если ни один приемник не настроен
func (s *resultSinks) publishUseCase(cfg *config.Config, exporter port.SampleExporter, log *logger.Logger) *usecase.PublishAnalysisUseCase {
	if s.repository == nil && s.storage == nil && s.metrics == nil && s.events == nil && s.textfile == nil {
		return nil
	}

	return usecase.NewPublishAnalysisUseCase(
		usecase.PublishAnalysisSinks{
			Repository: s.repository,
			Storage:    s.storage,
			Metadata:   s.metadata,
			Metrics:    s.metrics,
			Events:     s.events,
			Textfile:   s.textfile,
		},
		exporter,
		usecase.PublishAnalysisConfig{
			KeyPrefix:         cfg.S3.KeyPrefix,
			Subject:           cfg.NATS.Subject,
			TextfilePath:      cfg.Prometheus.TextfilePath,
			ArtifactRetention: cfg.S3.Retention,
		},
		log,
	)
}

func (s *resultSinks) onClose(fn func()) {
	s.closers = append(s.closers, fn)
}

// close освобождает ресурсы в обратном порядке
func (s *resultSinks) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}
