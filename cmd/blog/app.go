package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/auth"
	"github.com/sakif/blog/internal/config"
	"github.com/sakif/blog/internal/media"
	sqliteRepo "github.com/sakif/blog/internal/repository/sqlite"
	"github.com/sakif/blog/internal/server"
	"github.com/sakif/blog/internal/service"
)

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	envFile    string
	logLevel   string
}

// load reads and validates the configuration and builds the logger.
func (o *options) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath, o.envFile, os.LookupEnv)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// admin is what the account maintenance commands need: the database and
// an AccountService over it and the media folder.
type admin struct {
	db       *sqliteRepo.DB
	accounts *service.AccountService
}

func (o *options) open() (*admin, error) {
	cfg, logger, err := o.load()
	if err != nil {
		return nil, err
	}

	db, err := server.OpenDatabase(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenService(cfg.Auth.Secret)
	if err != nil {
		db.Close()
		return nil, err
	}

	store, err := media.New(cfg.Media.Dir, cfg.Media.MaxUploadBytes)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening media store: %w", err)
	}

	accounts := service.NewAccountService(
		db, db, store,
		auth.NewPasswordServiceWithCost(cfg.Auth.BcryptCost),
		tokens,
		cfg.Auth.BrowserSessionTTL,
		logger,
	)
	return &admin{db: db, accounts: accounts}, nil
}

func (a *admin) Close() error {
	return a.db.Close()
}

// describe turns a validation error into one readable line per field.
func describe(err error) error {
	fields := apperror.FieldErrors(err)
	if len(fields) == 0 {
		if errors.Is(err, apperror.ErrNotFound) {
			return fmt.Errorf("no such user")
		}
		return err
	}

	lines := make([]string, 0, len(fields))
	for field, msg := range fields {
		if field == "" {
			lines = append(lines, msg)
			continue
		}
		lines = append(lines, field+": "+msg)
	}
	sort.Strings(lines)
	return errors.New(strings.Join(lines, "\n"))
}
