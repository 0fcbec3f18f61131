package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/youssefsiam38/activitypg/driver"
)

const photoColumns = `id, user_id, name, category, object_key, upload_date`

var photoOrderColumns = map[string]bool{
	"name":        true,
	"upload_date": true,
}

func scanPhoto(row scanner) (*driver.Photo, error) {
	var p driver.Photo
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Category, &p.ObjectKey, &p.UploadDate); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePhoto inserts photo metadata. The image must already be in the blob store.
func (s *Store) CreatePhoto(ctx context.Context, params driver.CreatePhotoParams) (*driver.Photo, error) {
	query := `
		INSERT INTO activitypg_photos (id, user_id, name, category, object_key, upload_date)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING ` + photoColumns

	photo, err := scanPhoto(s.getExecutor(ctx).QueryRow(ctx, query,
		uuid.New(), params.UserID, params.Name, params.Category, params.ObjectKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create photo: %w", err)
	}
	return photo, nil
}

// GetPhoto retrieves a photo by ID.
func (s *Store) GetPhoto(ctx context.Context, id uuid.UUID) (*driver.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM activitypg_photos WHERE id = $1`

	photo, err := scanPhoto(s.getExecutor(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "photo", id)
	}
	return photo, nil
}

// ListPhotos returns one page of a user's photos.
// Category filters exactly; Search matches the name case-insensitively.
func (s *Store) ListPhotos(ctx context.Context, params driver.ListParams) ([]*driver.Photo, error) {
	var w whereBuilder
	if params.UserID != uuid.Nil {
		w.add("user_id = ?", params.UserID)
	}
	if params.Category != "" {
		w.add("category = ?", params.Category)
	}
	if params.Search != "" {
		w.add("name ILIKE ?", likePattern(params.Search))
	}
	query := fmt.Sprintf(`SELECT %s FROM activitypg_photos %s %s %s`,
		photoColumns,
		w.String(),
		orderClause(params.OrderBy, params.OrderDir, photoOrderColumns, "upload_date"),
		limitOffset(&w, params.Limit, params.Offset),
	)

	rows, err := s.getExecutor(ctx).Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query photos: %w", err)
	}
	defer rows.Close()

	photos := []*driver.Photo{}
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, photo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating photos: %w", err)
	}
	return photos, nil
}

// UpdatePhoto applies the changed fields.
func (s *Store) UpdatePhoto(ctx context.Context, id uuid.UUID, params driver.UpdatePhotoParams) (*driver.Photo, error) {
	query := `
		UPDATE activitypg_photos
		SET name = COALESCE($2, name),
		    object_key = COALESCE($3, object_key)
		WHERE id = $1
		RETURNING ` + photoColumns

	photo, err := scanPhoto(s.getExecutor(ctx).QueryRow(ctx, query, id, params.Name, params.ObjectKey))
	if err != nil {
		return nil, notFound(err, "photo", id)
	}
	return photo, nil
}

// DeletePhoto removes a photo and, by cascade, its reviews.
func (s *Store) DeletePhoto(ctx context.Context, id uuid.UUID) (bool, error) {
	affected, err := s.getExecutor(ctx).Exec(ctx, `DELETE FROM activitypg_photos WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete photo: %w", err)
	}
	return affected > 0, nil
}
