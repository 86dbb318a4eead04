package app

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/bmbmjmdm/hear-you-out/internal/api"
	"github.com/bmbmjmdm/hear-you-out/internal/config"
	"github.com/bmbmjmdm/hear-you-out/internal/logger"
	"github.com/bmbmjmdm/hear-you-out/internal/store"
)

// services are what every command needs: config, log, local prefs and the API client.
type services struct {
	cfg   *config.AppConfig
	log   *zap.SugaredLogger
	kv    store.KV
	prefs *store.Prefs
	api   *api.Client
}

func buildServices(cCtx *cli.Context) (*services, error) {
	cfg, err := config.Load(cCtx.String(configFlag.Name))
	if err != nil {
		return nil, err
	}
	if cCtx.Bool(debugFlag.Name) {
		cfg.Log.Level = "debug"
	}

	log, err := logger.New(logger.Config{
		File:       cfg.Log.File,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set logger: %w", err)
	}

	kv, err := store.Open(cCtx.Context, store.Config{
		Driver:    cfg.Store.Driver,
		Path:      cfg.Store.Path,
		RedisAddr: cfg.Store.RedisAddr,
		RedisDB:   cfg.Store.RedisDB,
	})
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	client := api.NewClient(api.Config{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout,
		RetryCount: cfg.API.RetryCount,
		RetryWait:  cfg.API.RetryWait,
	}, log.Named("api"))

	return &services{cfg: cfg, log: log, kv: kv, prefs: store.NewPrefs(kv), api: client}, nil
}

func (s *services) Close() {
	if err := s.kv.Close(); err != nil {
		s.log.Warnw("Failed to close store", "error", err)
	}
	_ = s.log.Sync()
}

// login registers this device on first use, then logs in. A device whose
// user was deleted on the server registers again.
func (s *services) login(ctx context.Context) (*api.Session, error) {
	deviceID, err := s.prefs.DeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read device id: %w", err)
	}
	userID, err := s.prefs.UserID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read user id: %w", err)
	}

	if userID == "" {
		if err := s.register(ctx, deviceID); err != nil {
			return nil, err
		}
	}

	sess, err := s.api.Login(ctx, deviceID)
	if api.IsNotFound(err) {
		s.log.Warnw("Device unknown to the server, registering again", "device_id", deviceID)
		if err := s.register(ctx, deviceID); err != nil {
			return nil, err
		}
		sess, err = s.api.Login(ctx, deviceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to login: %w", err)
	}

	if sess.UserID != "" && sess.UserID != userID {
		if err := s.prefs.SetUserID(ctx, sess.UserID); err != nil {
			s.log.Warnw("Failed to save user id", "error", err)
		}
	}
	return sess, nil
}

func (s *services) register(ctx context.Context, deviceID string) error {
	userID, err := s.api.Register(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	s.log.Infow("Registered device", "device_id", deviceID, "user_id", userID)
	return s.prefs.SetUserID(ctx, userID)
}
