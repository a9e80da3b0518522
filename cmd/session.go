package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/thellimist/cozyclient/internal/auth"
	"github.com/thellimist/cozyclient/internal/config"
	"github.com/thellimist/cozyclient/internal/intent"
	"github.com/thellimist/cozyclient/internal/logging"
)

// session bundles what every command needs: configuration, logger,
// storage and an authenticator for the configured instance.
type session struct {
	cfg     *config.Config
	log     *logrus.Logger
	storage auth.Storage
	auth    *auth.Authenticator

	closers []func() error
}

func openSession() (*session, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	logFile := flagLogFile
	if logFile == "" {
		logFile = cfg.LogFile
	}
	log, closeLog, err := logging.New(logging.Options{Verbose: flagVerbose, File: logFile})
	if err != nil {
		return nil, err
	}
	s, err := newSession(cfg, log)
	if err != nil {
		closeLog()
		return nil, err
	}
	s.closers = append(s.closers, closeLog)
	return s, nil
}

func newSession(cfg *config.Config, log *logrus.Logger) (*session, error) {
	s := &session{
		cfg:  cfg,
		log:  log,
		auth: &auth.Authenticator{BaseURL: cfg.URL, Logger: log},
	}

	switch cfg.Storage {
	case config.StorageSQLite:
		db, err := auth.OpenSQLiteStorage(cfg.StoragePath)
		if err != nil {
			return nil, err
		}
		s.storage = db
		s.closers = append(s.closers, db.Close)
	default:
		s.storage = auth.NewFileStorage(cfg.StoragePath)
	}
	log.WithField("storage", cfg.StoragePath).Debug("session opened")
	return s, nil
}

func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

var errNotLoggedIn = errors.New("not logged in: run 'cozyclient login' first")

// provider returns the configured application token, else the stored
// credentials, refreshed and saved back on 401.
func (s *session) provider(ctx context.Context) (auth.Provider, error) {
	if s.cfg.Token != "" {
		return &auth.BearerTokenProvider{Token: s.cfg.Token}, nil
	}
	creds, err := auth.LoadCredentials(ctx, s.storage)
	if errors.Is(err, auth.ErrNotFound) {
		return nil, errNotLoggedIn
	}
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	return auth.NewCredentialsProvider(s.auth, s.storage, creds), nil
}

func (s *session) intents(ctx context.Context) (*intent.Client, error) {
	p, err := s.provider(ctx)
	if err != nil {
		return nil, err
	}
	return &intent.Client{BaseURL: s.cfg.URL, Auth: p, Logger: s.log}, nil
}
