// Package images provides the PostgreSQL-backed repository for image posts.
package images

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/platzigram/platzigram-db/internal/common"
	"github.com/platzigram/platzigram-db/internal/database"
	"github.com/platzigram/platzigram-db/internal/dbx"
	"github.com/platzigram/platzigram-db/internal/metrics"
	"github.com/platzigram/platzigram-db/internal/models"
	"github.com/platzigram/platzigram-db/internal/publicid"
	"github.com/platzigram/platzigram-db/internal/tags"
)

const imageColumns = `id, COALESCE(public_id, ''), description, url, tags, user_id, likes, liked, created_at`

// PostgresRepository implements Repository on top of a shared connection.
// Every method awaits the connection first and fails with
// common.ErrNotConnected when there is none.
type PostgresRepository struct {
	conn database.Conn
	now  func() time.Time
}

func NewPostgresRepository(conn database.Conn) *PostgresRepository {
	return &PostgresRepository{conn: conn, now: time.Now}
}

// SaveImage stores a new image. CreatedAt and Tags are computed here; the
// public id is derived from the engine-generated key and back-filled by a
// second write in the same transaction. The stored record is returned.
func (r *PostgresRepository) SaveImage(ctx context.Context, image *models.Image) (result *models.Image, err error) {
	defer observe("save_image", time.Now(), &err)

	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	createdAt := r.now().UTC()
	tagList := tags.Extract(image.Description)
	tagsJSON, err := json.Marshal(tagList)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}

	var id string
	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query :=
			`INSERT INTO images (description, url, tags, user_id, created_at)
			 VALUES ($1, $2, $3::jsonb, $4, $5)
			 RETURNING id
			 `
		if err := tx.QueryRowContext(ctx, query,
			image.Description, image.URL, string(tagsJSON), image.UserID, createdAt).Scan(&id); err != nil {
			return common.NewSchemaError("insert image", err)
		}

		publicID, err := publicid.Encode(id)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `UPDATE images SET public_id = $1 WHERE id = $2`, publicID, id); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return r.getByID(ctx, db, id)
}

// GetImage returns the image with the given public id.
func (r *PostgresRepository) GetImage(ctx context.Context, publicID string) (result *models.Image, err error) {
	defer observe("get_image", time.Now(), &err)

	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	id, err := publicid.Decode(publicID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrNotFound, err)
	}
	return r.getByID(ctx, db, id)
}

// LikeImage increments the like counter and sets the liked flag in a single
// statement, so concurrent likes are never lost.
func (r *PostgresRepository) LikeImage(ctx context.Context, publicID string) (result *models.Image, err error) {
	defer observe("like_image", time.Now(), &err)

	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	id, err := publicid.Decode(publicID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrNotFound, err)
	}

	query :=
		`UPDATE images SET likes = likes + 1, liked = true
		 WHERE id = $1
		 RETURNING ` + imageColumns

	return scanImage(db.QueryRowContext(ctx, query, id))
}

// GetImages returns every image, newest first.
func (r *PostgresRepository) GetImages(ctx context.Context) (result []*models.Image, err error) {
	defer observe("get_images", time.Now(), &err)

	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + imageColumns + ` FROM images ORDER BY created_at DESC`
	return queryImages(ctx, db, query)
}

// GetImagesByUser returns the images owned by userID, newest first.
func (r *PostgresRepository) GetImagesByUser(ctx context.Context, userID string) (result []*models.Image, err error) {
	defer observe("get_images_by_user", time.Now(), &err)

	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.conn.WaitIndex(ctx, db, database.IndexImagesUserID); err != nil {
		return nil, err
	}

	query :=
		`SELECT ` + imageColumns + ` FROM images
		 WHERE user_id = $1
		 ORDER BY created_at DESC`
	return queryImages(ctx, db, query, userID)
}

// GetImagesByTag returns the images whose tags contain tag, newest first.
// tag is normalized the same way tags are extracted from descriptions.
func (r *PostgresRepository) GetImagesByTag(ctx context.Context, tag string) (result []*models.Image, err error) {
	defer observe("get_images_by_tag", time.Now(), &err)

	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	tag = tags.Normalize(tag)
	if tag == "" {
		return []*models.Image{}, nil
	}

	if err := r.conn.WaitIndex(ctx, db, database.IndexImagesTags); err != nil {
		return nil, err
	}

	query :=
		`SELECT ` + imageColumns + ` FROM images
		 WHERE tags @> jsonb_build_array($1::text)
		 ORDER BY created_at DESC`
	return queryImages(ctx, db, query, tag)
}

func (r *PostgresRepository) getByID(ctx context.Context, db dbx.DBTX, id string) (*models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE id = $1`
	return scanImage(db.QueryRowContext(ctx, query, id))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImage(row scanner) (*models.Image, error) {
	var (
		img      models.Image
		tagsJSON []byte
	)
	err := row.Scan(&img.ID, &img.PublicID, &img.Description, &img.URL, &tagsJSON,
		&img.UserID, &img.Likes, &img.Liked, &img.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	img.Tags = []string{}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &img.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	return &img, nil
}

func queryImages(ctx context.Context, db dbx.DBTX, query string, args ...any) ([]*models.Image, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select images: %w", err)
	}
	defer rows.Close()

	result := []*models.Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, img)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func observe(op string, start time.Time, err *error) {
	metrics.ObserveQuery(op, start, *err)
}
