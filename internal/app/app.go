// Package app implements the platzigram-db command line tool: schema setup
// and account administration on top of the store package.
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/platzigram/platzigram-db/internal/config"
	"github.com/platzigram/platzigram-db/internal/database"
	"github.com/platzigram/platzigram-db/internal/hasher"
	"github.com/platzigram/platzigram-db/internal/logging"
	"github.com/platzigram/platzigram-db/internal/models"
	"github.com/platzigram/platzigram-db/internal/store"
)

var (
	ErrUnknownCommand     = errors.New("unknown command")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Commands lists the subcommands understood by Run.
var Commands = []string{"setup", "useradd", "auth"}

type App struct {
	config *config.Config
	logger logging.Logger
	store  *store.Store
	reader *bufio.Reader
	out    io.Writer
}

// NewApp wires a Store from c. opts are passed to store.New after the
// hasher selected by c.Hasher.
func NewApp(c *config.Config, opts ...store.Option) *App {
	logger := logging.NewJSONLogger(c.LogLevel)

	opts = append([]store.Option{store.WithHasher(newHasher(c.Hasher))}, opts...)

	return &App{
		config: c,
		logger: logger,
		store:  store.New(logger, opts...),
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}
}

func newHasher(name string) hasher.Hasher {
	switch name {
	case "argon2":
		return hasher.NewArgon2()
	default:
		return hasher.Default()
	}
}

// Run executes command until it completes or the process is interrupted.
func (a *App) Run(ctx context.Context, command string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case "setup":
		return a.setup(ctx)
	case "useradd":
		return a.userAdd(ctx)
	case "auth":
		return a.auth(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
}

// withStore connects with cfg, runs fn and disconnects.
func (a *App) withStore(ctx context.Context, cfg database.Config, fn func(ctx context.Context) error) (err error) {
	h, err := a.store.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if derr := a.store.Disconnect(context.WithoutCancel(ctx)); derr != nil {
			a.logger.Warn(ctx, "disconnect failed", "error", derr)
			if err == nil {
				err = derr
			}
		}
	}()

	if _, err := h.Wait(ctx); err != nil {
		return err
	}
	return fn(ctx)
}

func (a *App) setup(ctx context.Context) error {
	cfg := a.config.Database()
	cfg.SetupSchema = true

	return a.withStore(ctx, cfg, func(ctx context.Context) error {
		fmt.Fprintf(a.out, "database %q is ready\n", cfg.DatabaseName)
		return nil
	})
}

func (a *App) userAdd(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	if username == "" {
		return errors.New("username must not be empty")
	}
	name, err := GetSimpleText(a.reader, "Name", a.out)
	if err != nil {
		return err
	}
	email, err := GetSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return err
	}

	return a.withStore(ctx, a.config.Database(), func(ctx context.Context) error {
		user, err := a.store.SaveUser(ctx, &models.User{
			Username: username,
			Password: password,
			Name:     name,
			Email:    email,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "user %q created with id %s\n", user.Username, user.ID)
		return nil
	})
}

func (a *App) auth(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return err
	}

	return a.withStore(ctx, a.config.Database(), func(ctx context.Context) error {
		ok, err := a.store.Authenticate(ctx, username, password)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidCredentials
		}
		fmt.Fprintln(a.out, "authenticated")
		return nil
	})
}
