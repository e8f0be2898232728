package users

import (
	"context"

	"github.com/platzigram/platzigram-db/internal/models"
)

type Repository interface {
	SaveUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUser(ctx context.Context, username string) (*models.User, error)
	Authenticate(ctx context.Context, username, password string) (bool, error)
}
