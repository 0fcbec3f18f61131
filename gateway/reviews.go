package gateway

import (
	"context"
	"strings"

	"github.com/youssefsiam38/activitypg/driver"
	"github.com/youssefsiam38/activitypg/notifier"
)

// Reviews is the gateway for comments on the current user's photos.
type Reviews struct {
	g *Gateway
}

// List returns the reviews of a photo, oldest first.
func (r *Reviews) List(ctx context.Context, photoID string) ([]*driver.Review, error) {
	var reviews []*driver.Review
	call := newCall(ctx, EntityReview, OpList, "")
	err := r.g.do(ctx, call, func(ctx context.Context) error {
		photo, err := r.g.Photos.get(ctx, photoID)
		if err != nil {
			return err
		}
		reviews, err = r.g.store.ListReviews(ctx, photo.ID)
		if err != nil {
			return err
		}
		r.g.page(ctx, call, 0, len(reviews), len(reviews))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

// Create adds a review to a photo.
func (r *Reviews) Create(ctx context.Context, photoID, content string) (*driver.Review, error) {
	var review *driver.Review
	call := newCall(ctx, EntityReview, OpCreate, "")
	err := r.g.do(ctx, call, func(ctx context.Context) error {
		photo, err := r.g.Photos.get(ctx, photoID)
		if err != nil {
			return err
		}
		if strings.TrimSpace(content) == "" {
			return invalid("content is required")
		}
		user, err := currentUser(ctx)
		if err != nil {
			return err
		}
		review, err = r.g.store.CreateReview(ctx, driver.CreateReviewParams{
			PhotoID: photo.ID,
			UserID:  user.ID,
			Content: content,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	call.ID = review.Key()
	r.g.changed(ctx, call, notifier.EventReviewChanged)
	return review, nil
}

func (r *Reviews) get(ctx context.Context, id string) (*driver.Review, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	reviewID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	review, err := r.g.store.GetReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if err := owned(review.UserID, user); err != nil {
		return nil, err
	}
	return review, nil
}

// Update replaces the content of the review with id.
func (r *Reviews) Update(ctx context.Context, id, content string) (*driver.Review, error) {
	var review *driver.Review
	call := newCall(ctx, EntityReview, OpUpdate, id)
	err := r.g.do(ctx, call, func(ctx context.Context) error {
		current, err := r.get(ctx, id)
		if err != nil {
			return err
		}
		if strings.TrimSpace(content) == "" {
			return invalid("content is required")
		}
		review, err = r.g.store.UpdateReview(ctx, current.ID, content)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.g.changed(ctx, call, notifier.EventReviewChanged)
	return review, nil
}

// Delete removes the review with id.
func (r *Reviews) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	call := newCall(ctx, EntityReview, OpDelete, id)
	err := r.g.do(ctx, call, func(ctx context.Context) error {
		current, err := r.get(ctx, id)
		if err != nil {
			return err
		}
		deleted, err = r.g.store.DeleteReview(ctx, current.ID)
		return err
	})
	if err != nil {
		return false, err
	}
	if deleted {
		r.g.changed(ctx, call, notifier.EventReviewChanged)
	}
	return deleted, nil
}
