package images

import (
	"context"

	"github.com/platzigram/platzigram-db/internal/models"
)

type Repository interface {
	SaveImage(ctx context.Context, image *models.Image) (*models.Image, error)
	GetImage(ctx context.Context, publicID string) (*models.Image, error)
	LikeImage(ctx context.Context, publicID string) (*models.Image, error)
	GetImages(ctx context.Context) ([]*models.Image, error)
	GetImagesByUser(ctx context.Context, userID string) ([]*models.Image, error)
	GetImagesByTag(ctx context.Context, tag string) ([]*models.Image, error)
}
