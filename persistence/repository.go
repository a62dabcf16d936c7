// Package persistence provides the GORM-backed profile document store
// and a named driver registry.
package persistence

import (
	"context"
	"errors"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/proggaming/authsync/profile"
)

func init() {
	Register("sqlite", sqlite.Open)
	Register("postgres", postgres.Open)
	Register("mysql", mysql.Open)
}

type listener struct {
	onChange func(*profile.Record)
	onError  func(error)
}

// Repository implements profile.Store on a relational database.
// Change subscriptions are satisfied by local fan-out: every write that
// goes through this repository notifies the key's listeners in write
// order.
type Repository struct {
	db *gorm.DB

	mu        sync.Mutex
	listeners map[string]map[int]listener
	nextID    int
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:        db,
		listeners: make(map[string]map[int]listener),
	}
}

// DB exposes the underlying handle for wiring collaborators that share
// the database.
func (r *Repository) DB() *gorm.DB { return r.db }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&profile.Record{})
}

func (r *Repository) Get(ctx context.Context, key string) (*profile.Record, error) {
	var rec profile.Record
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, profile.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *Repository) Set(ctx context.Context, key string, rec *profile.Record, merge bool) error {
	write := rec.Clone()
	write.ID = key

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if merge {
			var existing profile.Record
			err := tx.First(&existing, "id = ?", key).Error
			if err == nil {
				merged := existing.Clone()
				merged.MergeFrom(write)
				return tx.Save(merged).Error
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}
		return tx.Save(write).Error
	})
	if err != nil {
		return err
	}

	r.notify(ctx, key)
	return nil
}

func (r *Repository) Delete(ctx context.Context, key string) error {
	if err := r.db.WithContext(ctx).Delete(&profile.Record{}, "id = ?", key).Error; err != nil {
		return err
	}
	r.notify(ctx, key)
	return nil
}

// Subscribe registers a change listener for key. The current document
// (nil when absent) is delivered before Subscribe returns. Listeners
// run under the repository lock and must not call back into it.
func (r *Repository) Subscribe(key string, onChange func(*profile.Record), onError func(error)) profile.UnsubscribeFunc {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	if r.listeners[key] == nil {
		r.listeners[key] = make(map[int]listener)
	}
	r.listeners[key][id] = listener{onChange: onChange, onError: onError}

	rec, err := r.Get(context.Background(), key)
	switch {
	case err == nil:
		onChange(rec)
	case errors.Is(err, profile.ErrNotFound):
		onChange(nil)
	default:
		onError(err)
	}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.listeners[key], id)
			r.mu.Unlock()
		})
	}
}

func (r *Repository) notify(ctx context.Context, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.listeners[key]) == 0 {
		return
	}

	rec, err := r.Get(ctx, key)
	if err != nil && !errors.Is(err, profile.ErrNotFound) {
		for _, l := range r.listeners[key] {
			l.onError(err)
		}
		return
	}
	for _, l := range r.listeners[key] {
		l.onChange(rec.Clone())
	}
}
