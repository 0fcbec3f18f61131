package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/youssefsiam38/activitypg/blob"
	"github.com/youssefsiam38/activitypg/driver"
	"github.com/youssefsiam38/activitypg/listing"
	"github.com/youssefsiam38/activitypg/notifier"
)

// Image is an uploaded image.
type Image struct {
	// Filename is used only for its extension.
	Filename    string
	ContentType string
	Body        io.Reader
}

// PhotoInput holds the fields of a new photo.
type PhotoInput struct {
	Name     string
	Category string
	Image    Image
}

// PhotoPatch holds changed photo fields. A nil Image keeps the current one.
type PhotoPatch struct {
	Name  *string
	Image *Image
}

// Photos is the gateway for the current user's photos. Image bytes live in
// the blob store; rows keep the object key.
type Photos struct {
	g *Gateway
}

// Fetcher returns a list function scoped to category, for use with
// listing.New. An empty category lists every category.
func (p *Photos) Fetcher(category string) listing.FetchFunc[*driver.Photo] {
	return func(ctx context.Context, q listing.Query) ([]*driver.Photo, error) {
		return p.ListPage(ctx, category, q)
	}
}

// ListPage returns one page of photos in category whose name matches q.
func (p *Photos) ListPage(ctx context.Context, category string, q listing.Query) ([]*driver.Photo, error) {
	var photos []*driver.Photo
	call := newCall(ctx, EntityPhoto, OpList, "")
	err := p.g.do(ctx, call, func(ctx context.Context) error {
		user, err := currentUser(ctx)
		if err != nil {
			return err
		}
		params := listParams(user.ID, q, AllowedPhotoOrderBy)
		params.Category = category
		photos, err = p.g.store.ListPhotos(ctx, params)
		if err != nil {
			return err
		}
		for _, photo := range photos {
			p.resolveURL(ctx, photo)
		}
		p.g.page(ctx, call, params.Offset, params.Limit, len(photos))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return photos, nil
}

// Get returns the photo with id.
func (p *Photos) Get(ctx context.Context, id string) (*driver.Photo, error) {
	var photo *driver.Photo
	err := p.g.do(ctx, newCall(ctx, EntityPhoto, OpGet, id), func(ctx context.Context) (err error) {
		photo, err = p.get(ctx, id)
		if err == nil {
			p.resolveURL(ctx, photo)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return photo, nil
}

func (p *Photos) get(ctx context.Context, id string) (*driver.Photo, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	photoID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	photo, err := p.g.store.GetPhoto(ctx, photoID)
	if err != nil {
		return nil, err
	}
	if err := owned(photo.UserID, user); err != nil {
		return nil, err
	}
	return photo, nil
}

// Create uploads the image and stores the photo row. The object is removed
// again if the row cannot be stored.
func (p *Photos) Create(ctx context.Context, in PhotoInput) (*driver.Photo, error) {
	var photo *driver.Photo
	call := newCall(ctx, EntityPhoto, OpCreate, "")
	err := p.g.do(ctx, call, func(ctx context.Context) error {
		user, err := currentUser(ctx)
		if err != nil {
			return err
		}
		if strings.TrimSpace(in.Name) == "" {
			return invalid("name is required")
		}
		if strings.TrimSpace(in.Category) == "" {
			return invalid("category is required")
		}
		key, err := p.upload(ctx, user.ID, in.Image)
		if err != nil {
			return err
		}
		photo, err = p.g.store.CreatePhoto(ctx, driver.CreatePhotoParams{
			UserID:    user.ID,
			Name:      in.Name,
			Category:  in.Category,
			ObjectKey: key,
		})
		if err != nil {
			p.removeObject(ctx, key)
			return err
		}
		p.resolveURL(ctx, photo)
		return nil
	})
	if err != nil {
		return nil, err
	}
	call.ID = photo.Key()
	p.g.changed(ctx, call, notifier.EventPhotoChanged)
	return photo, nil
}

// Update renames the photo and optionally replaces its image. A replaced
// object is deleted after the row points at the new one.
func (p *Photos) Update(ctx context.Context, id string, patch PhotoPatch) (*driver.Photo, error) {
	var photo *driver.Photo
	call := newCall(ctx, EntityPhoto, OpUpdate, id)
	err := p.g.do(ctx, call, func(ctx context.Context) error {
		current, err := p.get(ctx, id)
		if err != nil {
			return err
		}
		if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
			return invalid("name must not be empty")
		}
		params := driver.UpdatePhotoParams{Name: patch.Name}
		if patch.Image != nil {
			key, err := p.upload(ctx, current.UserID, *patch.Image)
			if err != nil {
				return err
			}
			params.ObjectKey = &key
		}
		photo, err = p.g.store.UpdatePhoto(ctx, current.ID, params)
		if err != nil {
			if params.ObjectKey != nil {
				p.removeObject(ctx, *params.ObjectKey)
			}
			return err
		}
		if params.ObjectKey != nil && current.ObjectKey != "" {
			p.removeObject(ctx, current.ObjectKey)
		}
		p.resolveURL(ctx, photo)
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.g.changed(ctx, call, notifier.EventPhotoChanged)
	return photo, nil
}

// Delete removes the photo row, its reviews and then its image.
func (p *Photos) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	call := newCall(ctx, EntityPhoto, OpDelete, id)
	err := p.g.do(ctx, call, func(ctx context.Context) error {
		current, err := p.get(ctx, id)
		if err != nil {
			return err
		}
		deleted, err = p.g.store.DeletePhoto(ctx, current.ID)
		if err != nil {
			return err
		}
		if deleted && current.ObjectKey != "" {
			p.removeObject(ctx, current.ObjectKey)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if deleted {
		p.g.changed(ctx, call, notifier.EventPhotoChanged)
	}
	return deleted, nil
}

// upload stores img under a fresh key in the user's prefix.
func (p *Photos) upload(ctx context.Context, userID uuid.UUID, img Image) (string, error) {
	if img.Body == nil {
		return "", invalid("image is required")
	}
	// Rewind so a retried upload sends the whole image.
	if s, ok := img.Body.(io.Seeker); ok {
		if _, err := s.Seek(0, io.SeekStart); err != nil {
			return "", err
		}
	}
	ext := strings.ToLower(path.Ext(img.Filename))
	key := fmt.Sprintf("photos/%s/%s%s", userID, uuid.NewString(), ext)
	if _, err := p.g.blobs.Put(ctx, key, img.Body, blob.PutOptions{ContentType: img.ContentType}); err != nil {
		return "", err
	}
	return key, nil
}

func (p *Photos) removeObject(ctx context.Context, key string) {
	if _, err := p.g.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		p.g.logger.Warn("failed to remove photo object", "key", key, "error", err)
	}
}

// resolveURL fills ImageURL from the blob store. Stores without URL support
// leave it empty.
func (p *Photos) resolveURL(ctx context.Context, photo *driver.Photo) {
	if photo.ObjectKey == "" {
		return
	}
	url, err := p.g.blobs.PresignURL(ctx, photo.ObjectKey, blob.SignedURLOptions{Expiry: p.g.urlExpiry})
	if err != nil {
		if !errors.Is(err, blob.ErrUnsupported) {
			p.g.logger.Warn("failed to resolve photo url", "key", photo.ObjectKey, "error", err)
		}
		return
	}
	photo.ImageURL = url
}
