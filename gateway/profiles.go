package gateway

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/youssefsiam38/activitypg/driver"
)

// Profiles is the gateway for user profiles.
type Profiles struct {
	g *Gateway
}

// Get returns the current user's profile.
func (p *Profiles) Get(ctx context.Context) (*driver.Profile, error) {
	var profile *driver.Profile
	err := p.g.do(ctx, newCall(ctx, EntityProfile, OpGet, ""), func(ctx context.Context) error {
		user, err := currentUser(ctx)
		if err != nil {
			return err
		}
		profile, err = p.g.store.GetProfile(ctx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// Upsert sets the current user's full name, creating the profile if needed.
func (p *Profiles) Upsert(ctx context.Context, fullName string) (*driver.Profile, error) {
	var profile *driver.Profile
	call := newCall(ctx, EntityProfile, OpUpsert, "")
	err := p.g.do(ctx, call, func(ctx context.Context) error {
		user, err := currentUser(ctx)
		if err != nil {
			return err
		}
		call.ID = user.ID.String()
		profile, err = p.g.store.UpsertProfile(ctx, user.ID, fullName)
		return err
	})
	if err != nil {
		return nil, err
	}
	p.g.changed(ctx, call, "")
	return profile, nil
}

// Ensure returns the profile of userID, creating it with fullName when it
// does not exist. An existing profile is left unchanged.
func (p *Profiles) Ensure(ctx context.Context, userID uuid.UUID, fullName string) (*driver.Profile, error) {
	var profile *driver.Profile
	call := newCall(ctx, EntityProfile, OpEnsure, userID.String())
	err := p.g.do(ctx, call, func(ctx context.Context) error {
		existing, err := p.g.store.GetProfile(ctx, userID)
		if err == nil {
			profile = existing
			return nil
		}
		if !errors.Is(err, driver.ErrNotFound) {
			return err
		}
		profile, err = p.g.store.UpsertProfile(ctx, userID, fullName)
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}
