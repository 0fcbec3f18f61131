package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/youssefsiam38/activitypg/driver"
)

const reviewColumns = `id, photo_id, user_id, content, created_at`

func scanReview(row scanner) (*driver.Review, error) {
	var r driver.Review
	if err := row.Scan(&r.ID, &r.PhotoID, &r.UserID, &r.Content, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateReview inserts a review on a photo.
func (s *Store) CreateReview(ctx context.Context, params driver.CreateReviewParams) (*driver.Review, error) {
	query := `
		INSERT INTO activitypg_reviews (id, photo_id, user_id, content, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING ` + reviewColumns

	review, err := scanReview(s.getExecutor(ctx).QueryRow(ctx, query,
		uuid.New(), params.PhotoID, params.UserID, params.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to create review: %w", err)
	}
	return review, nil
}

// GetReview retrieves a review by ID.
func (s *Store) GetReview(ctx context.Context, id uuid.UUID) (*driver.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM activitypg_reviews WHERE id = $1`

	review, err := scanReview(s.getExecutor(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "review", id)
	}
	return review, nil
}

// ListReviews returns every review of a photo, oldest first.
func (s *Store) ListReviews(ctx context.Context, photoID uuid.UUID) ([]*driver.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM activitypg_reviews
		WHERE photo_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := s.getExecutor(ctx).Query(ctx, query, photoID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	reviews := []*driver.Review{}
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}
	return reviews, nil
}

// UpdateReview replaces a review's content.
func (s *Store) UpdateReview(ctx context.Context, id uuid.UUID, content string) (*driver.Review, error) {
	query := `UPDATE activitypg_reviews SET content = $2 WHERE id = $1 RETURNING ` + reviewColumns

	review, err := scanReview(s.getExecutor(ctx).QueryRow(ctx, query, id, content))
	if err != nil {
		return nil, notFound(err, "review", id)
	}
	return review, nil
}

// DeleteReview removes a review.
func (s *Store) DeleteReview(ctx context.Context, id uuid.UUID) (bool, error) {
	affected, err := s.getExecutor(ctx).Exec(ctx, `DELETE FROM activitypg_reviews WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete review: %w", err)
	}
	return affected > 0, nil
}
