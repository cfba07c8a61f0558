// Package store provides the per-user preference store.
package store

import (
	"context"
	"encoding/json"

	apperrors "ecos-terminal/internal/errors"
)

// Preference keys.
const (
	KeyTracked   = "tracked"
	KeyFavorites = "favorites"
	KeyLastUser  = "last_user"

	// GlobalScope holds keys that are not namespaced by a username.
	GlobalScope = ""
)

// KV is a scoped key-value store. Each Put replaces the whole value.
type KV interface {
	Get(ctx context.Context, scope, key string) ([]byte, bool, error)
	Put(ctx context.Context, scope, key string, value []byte) error
	Delete(ctx context.Context, scope, key string) error
	Close() error
}

// Preferences exposes typed preference accessors on top of a KV.
type Preferences struct {
	kv KV
}

// NewPreferences wraps kv.
func NewPreferences(kv KV) *Preferences {
	return &Preferences{kv: kv}
}

// Tracked returns the tracked-symbol list of username, most recent first.
func (p *Preferences) Tracked(ctx context.Context, username string) ([]string, error) {
	return p.getList(ctx, username, KeyTracked)
}

// SaveTracked replaces the tracked-symbol list of username.
func (p *Preferences) SaveTracked(ctx context.Context, username string, symbols []string) error {
	return p.putList(ctx, username, KeyTracked, symbols)
}

// Favorites returns the favorite symbols of username in insertion order.
func (p *Preferences) Favorites(ctx context.Context, username string) ([]string, error) {
	return p.getList(ctx, username, KeyFavorites)
}

// SaveFavorites replaces the favorite symbols of username.
func (p *Preferences) SaveFavorites(ctx context.Context, username string, symbols []string) error {
	return p.putList(ctx, username, KeyFavorites, symbols)
}

// LastUser returns the last logged-in username, or "" if none.
func (p *Preferences) LastUser(ctx context.Context) (string, error) {
	raw, ok, err := p.kv.Get(ctx, GlobalScope, KeyLastUser)
	if err != nil {
		return "", apperrors.NewStoreError(GlobalScope, KeyLastUser, err)
	}
	if !ok {
		return "", nil
	}
	return string(raw), nil
}

// SetLastUser records username as the last logged-in user.
func (p *Preferences) SetLastUser(ctx context.Context, username string) error {
	if err := p.kv.Put(ctx, GlobalScope, KeyLastUser, []byte(username)); err != nil {
		return apperrors.NewStoreError(GlobalScope, KeyLastUser, err)
	}
	return nil
}

// ClearLastUser forgets the last logged-in user.
func (p *Preferences) ClearLastUser(ctx context.Context) error {
	if err := p.kv.Delete(ctx, GlobalScope, KeyLastUser); err != nil {
		return apperrors.NewStoreError(GlobalScope, KeyLastUser, err)
	}
	return nil
}

// Close closes the underlying store.
func (p *Preferences) Close() error {
	return p.kv.Close()
}

// getList decodes a JSON string list. A corrupt value reads as empty.
func (p *Preferences) getList(ctx context.Context, username, key string) ([]string, error) {
	if username == "" {
		return nil, apperrors.NewValidationError("username", username, "must not be empty")
	}

	raw, ok, err := p.kv.Get(ctx, username, key)
	if err != nil {
		return nil, apperrors.NewStoreError(username, key, err)
	}
	if !ok {
		return []string{}, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return []string{}, nil
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

func (p *Preferences) putList(ctx context.Context, username, key string, list []string) error {
	if username == "" {
		return apperrors.NewValidationError("username", username, "must not be empty")
	}
	if list == nil {
		list = []string{}
	}

	raw, err := json.Marshal(list)
	if err != nil {
		return apperrors.NewStoreError(username, key, err)
	}
	if err := p.kv.Put(ctx, username, key, raw); err != nil {
		return apperrors.NewStoreError(username, key, err)
	}
	return nil
}
