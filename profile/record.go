package profile

import (
	"database/sql/driver"
	"errors"
	"time"

	"github.com/proggaming/authsync/identity"
)

// JSON is a custom type for handling schemaless JSON columns in GORM.
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = []byte(v)
	default:
		return errors.New("invalid type for JSON")
	}
	return nil
}

// Status is the presence state stored on a profile.
type Status string

const (
	StatusAvailable Status = "available"
	StatusBusy      Status = "busy"
	StatusOffline   Status = "offline"
)

// Record is the durable, app-specific user document, keyed by the
// identity-provider account id. It is created once at registration and
// afterwards mutated only by explicit profile edits; the auth
// controller never touches it again.
type Record struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Nickname    string    `json:"nickname"`
	AvatarURL   string    `json:"avatar_url"`
	Level       int       `json:"level"`
	XP          int       `json:"xp"`
	StageFlags  JSON      `gorm:"type:json" json:"stage_flags"`
	StageState  JSON      `gorm:"type:json" json:"stage_state"`
	CurrentCode string    `json:"current_code"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	LastLoginAt time.Time `json:"last_login_at"`
}

func (Record) TableName() string { return "profiles" }

// NewRecord builds the initial document for a freshly registered
// session: level 1, no experience, available, identity fields seeding
// the editable ones.
func NewRecord(sess *identity.Session) *Record {
	now := time.Now()
	return &Record{
		ID:          sess.ID,
		Nickname:    sess.DisplayName,
		AvatarURL:   sess.PhotoURL,
		Level:       1,
		XP:          0,
		StageFlags:  JSON(`{}`),
		Status:      StatusAvailable,
		CreatedAt:   now,
		LastLoginAt: now,
	}
}

// Clone returns a deep copy so subscribers can hold snapshots without
// racing writers.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.StageFlags = append(JSON(nil), r.StageFlags...)
	c.StageState = append(JSON(nil), r.StageState...)
	return &c
}

// MergeFrom overlays the non-zero fields of src onto r. Zero values in
// src leave the existing field untouched, mirroring a document-store
// merge write.
func (r *Record) MergeFrom(src *Record) {
	if src.Nickname != "" {
		r.Nickname = src.Nickname
	}
	if src.AvatarURL != "" {
		r.AvatarURL = src.AvatarURL
	}
	if src.Level != 0 {
		r.Level = src.Level
	}
	if src.XP != 0 {
		r.XP = src.XP
	}
	if len(src.StageFlags) != 0 {
		r.StageFlags = append(JSON(nil), src.StageFlags...)
	}
	if len(src.StageState) != 0 {
		r.StageState = append(JSON(nil), src.StageState...)
	}
	if src.CurrentCode != "" {
		r.CurrentCode = src.CurrentCode
	}
	if src.Status != "" {
		r.Status = src.Status
	}
	if !src.CreatedAt.IsZero() {
		r.CreatedAt = src.CreatedAt
	}
	if !src.LastLoginAt.IsZero() {
		r.LastLoginAt = src.LastLoginAt
	}
}
