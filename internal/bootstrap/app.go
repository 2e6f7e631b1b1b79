// Package bootstrap 按配置装配依赖；api / admin / ctl 三个入口共用
package bootstrap

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"task-manager/internal/core/auth"
	"task-manager/internal/core/cache"
	"task-manager/internal/core/config"
	"task-manager/internal/core/database"
	"task-manager/internal/core/logger"
	"task-manager/internal/core/notify"
	"task-manager/internal/core/storage"
	"task-manager/internal/feature/task"
	"task-manager/internal/repo"
	"task-manager/internal/service"
	"task-manager/internal/transport/http/router"
)

type App struct {
	Cfg *config.Config
	Log *zap.Logger
	DB  *gorm.DB

	Users   *service.UserService
	Tokens  *service.TokenService
	Authn   *service.Authenticator
	Avatars *service.AvatarService
	Modules *router.Registry

	closers []func() error
}

// New 外部依赖（DB/minio/rabbitmq）连不上直接返回错误；redis 只在用到时才连
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{Cfg: cfg, Log: log}

	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		Logger:             logger.Gorm(log, cfg.DB.LogLevel),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}
	a.DB = db
	a.onClose(func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	log.Info("database connected", zap.String("driver", cfg.DB.Driver), zap.String("dsn", database.MaskDSN(cfg.DB.DSN)))

	if cfg.DB.AutoMigrate {
		if err := repo.AutoMigrate(db); err != nil {
			a.Close()
			return nil, errors.Wrap(err, "automigrate")
		}
		log.Info("automigrate done")
	}

	jwter, err := auth.NewJWTer(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.AccessTokenTTLMin)*time.Minute)
	if err != nil {
		a.Close()
		return nil, err
	}

	store, err := a.objectStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	pub, err := a.publisher()
	if err != nil {
		a.Close()
		return nil, err
	}

	var avatarCache service.AvatarCache
	if cfg.Redis.Addr != "" {
		c := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, "avatar:")
		a.onClose(c.Close)
		avatarCache = c
	}

	users := repo.NewUserRepo(db)
	tasks := repo.NewTaskRepo(db)
	a.Tokens = service.NewTokenService(jwter, repo.NewTokenRepo(db))
	a.Authn = service.NewAuthenticator(users, a.Tokens)
	a.Avatars = service.NewAvatarService(users, store, avatarCache, service.AvatarOpts{
		MaxBytes: cfg.Avatar.MaxBytes,
		Size:     cfg.Avatar.Size,
		CacheTTL: time.Duration(cfg.Redis.AvatarTTLMin) * time.Minute,
	})
	a.Users = service.NewUserService(service.UserDeps{
		Users:    users,
		Hasher:   auth.NewHasher(cfg.Auth.BcryptCost, cfg.Auth.HashConcurrency),
		Tokens:   a.Tokens,
		Cascade:  service.NewOwnershipCascade(repo.NewTxManager(db)),
		Avatars:  a.Avatars,
		Notifier: notify.NewAsync(notify.NewMailer(pub, cfg.RabbitMQ.MailQueue), log, 5*time.Second),
		Log:      log,
	})
	a.Modules = router.NewRegistry(task.Module{DB: db, Tasks: tasks})
	return a, nil
}

func (a *App) objectStore(ctx context.Context) (service.AvatarStore, error) {
	if a.Cfg.Minio.Endpoint == "" {
		a.Log.Warn("minio not configured, avatars kept in memory")
		return storage.NewMemory(), nil
	}
	m, err := storage.NewMinio(a.Cfg.Minio)
	if err != nil {
		return nil, errors.Wrap(err, "minio")
	}
	if err := m.EnsureBucket(ctx); err != nil {
		return nil, errors.Wrap(err, "minio ensure bucket")
	}
	return m, nil
}

func (a *App) publisher() (notify.Publisher, error) {
	if a.Cfg.RabbitMQ.URL == "" {
		a.Log.Warn("rabbitmq not configured, mail jobs only logged")
		return notify.LogPublisher{L: a.Log.Named("mail")}, nil
	}
	mq, err := notify.NewRabbitMQ(a.Cfg.RabbitMQ)
	if err != nil {
		return nil, errors.Wrap(err, "rabbitmq")
	}
	a.onClose(mq.Close)
	return mq, nil
}

func (a *App) onClose(fn func() error) { a.closers = append(a.closers, fn) }

// Close 逆序释放
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
