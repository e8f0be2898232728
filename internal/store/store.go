// Package store is the entry point of the persistence layer. A Store owns one
// database connection and exposes every image and user operation on it.
//
// Typical use:
//
//	s := store.New(logger)
//	if _, err := s.Connect(ctx, database.Config{SetupSchema: true}); err != nil {
//		return err
//	}
//	defer s.Disconnect(ctx)
//
//	img, err := s.SaveImage(ctx, &models.Image{Description: "#sunset", UserID: uid})
//
// Operations may be issued as soon as Connect returns; they wait for the
// connection to finish resolving.
package store

import (
	"context"

	"github.com/platzigram/platzigram-db/internal/database"
	"github.com/platzigram/platzigram-db/internal/hasher"
	"github.com/platzigram/platzigram-db/internal/logging"
	"github.com/platzigram/platzigram-db/internal/models"
	"github.com/platzigram/platzigram-db/internal/repositories/images"
	"github.com/platzigram/platzigram-db/internal/repositories/repomanager"
	"github.com/platzigram/platzigram-db/internal/repositories/users"
)

type Store struct {
	conn   *database.Manager
	repos  repomanager.RepositoryManager
	images images.Repository
	users  users.Repository
	logger logging.Logger
}

type options struct {
	hasher hasher.Hasher
	dbOpts []database.Option
}

// Option configures a Store.
type Option func(*options)

// WithHasher sets the password hasher used for user accounts.
func WithHasher(h hasher.Hasher) Option {
	return func(o *options) {
		o.hasher = h
	}
}

// WithOpenFunc replaces stdlib.OpenDB when connecting.
func WithOpenFunc(fn database.OpenFunc) Option {
	return func(o *options) {
		o.dbOpts = append(o.dbOpts, database.WithOpenFunc(fn))
	}
}

// New returns a disconnected Store.
func New(logger logging.Logger, opts ...Option) *Store {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	conn := database.NewManager(logger, o.dbOpts...)
	repos := repomanager.NewPostgresRepositoryManager(o.hasher, logger.With("module", "schema"))

	return &Store{
		conn:   conn,
		repos:  repos,
		images: repos.Images(conn),
		users:  repos.Users(conn),
		logger: logger,
	}
}

// Connect starts connecting and returns the pending handle.
func (s *Store) Connect(ctx context.Context, cfg database.Config) (*database.Handle, error) {
	return s.conn.Connect(ctx, cfg)
}

// Disconnect closes the connection.
func (s *Store) Disconnect(ctx context.Context) error {
	return s.conn.Disconnect(ctx)
}

// State reports the connection state.
func (s *Store) State() database.State {
	return s.conn.State()
}

// SetupSchema provisions missing tables and indexes on the current
// connection. Unlike Config.SetupSchema it never creates the database.
func (s *Store) SetupSchema(ctx context.Context) error {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return err
	}
	return s.repos.SetupSchema(ctx, s.conn.Config(), db)
}

func (s *Store) SaveImage(ctx context.Context, image *models.Image) (*models.Image, error) {
	return s.images.SaveImage(ctx, image)
}

func (s *Store) GetImage(ctx context.Context, publicID string) (*models.Image, error) {
	return s.images.GetImage(ctx, publicID)
}

func (s *Store) LikeImage(ctx context.Context, publicID string) (*models.Image, error) {
	return s.images.LikeImage(ctx, publicID)
}

func (s *Store) GetImages(ctx context.Context) ([]*models.Image, error) {
	return s.images.GetImages(ctx)
}

func (s *Store) GetImagesByUser(ctx context.Context, userID string) ([]*models.Image, error) {
	return s.images.GetImagesByUser(ctx, userID)
}

func (s *Store) GetImagesByTag(ctx context.Context, tag string) ([]*models.Image, error) {
	return s.images.GetImagesByTag(ctx, tag)
}

func (s *Store) SaveUser(ctx context.Context, user *models.User) (*models.User, error) {
	return s.users.SaveUser(ctx, user)
}

func (s *Store) GetUser(ctx context.Context, username string) (*models.User, error) {
	return s.users.GetUser(ctx, username)
}

// Authenticate reports whether password is valid for username.
func (s *Store) Authenticate(ctx context.Context, username, password string) (bool, error) {
	return s.users.Authenticate(ctx, username, password)
}
