package resolve

import (
	"github.com/proggaming/authsync/identity"
	"github.com/proggaming/authsync/profile"
)

// User is the merged, consumer-facing view of an account: identity
// fields from the live session, progression fields from the profile
// document. It exists exactly when a session exists.
type User struct {
	ID          string              `json:"id"`
	Email       string              `json:"email"`
	DisplayName string              `json:"display_name"`
	PhotoURL    string              `json:"photo_url"`
	Verified    bool                `json:"verified"`
	Providers   []identity.Provider `json:"providers"`

	Nickname    string         `json:"nickname"`
	AvatarURL   string         `json:"avatar_url"`
	Level       int            `json:"level"`
	XP          int            `json:"xp"`
	StageFlags  profile.JSON   `json:"stage_flags"`
	StageState  profile.JSON   `json:"stage_state"`
	CurrentCode string         `json:"current_code"`
	Status      profile.Status `json:"status"`

	// HasProfile distinguishes a provisional, identity-only view from
	// one backed by a profile document.
	HasProfile bool `json:"has_profile"`
}

// HasFederatedProvider reports whether any linked provider is
// federated.
func (u *User) HasFederatedProvider() bool {
	for _, p := range u.Providers {
		if p.Federated() {
			return true
		}
	}
	return false
}

// FromSession builds the provisional view available before (or without)
// a profile document: identity fields plus factory defaults.
func FromSession(sess *identity.Session) *User {
	return &User{
		ID:          sess.ID,
		Email:       sess.Email,
		DisplayName: sess.DisplayName,
		PhotoURL:    sess.PhotoURL,
		Verified:    sess.Verified,
		Providers:   sess.Providers,
		Nickname:    sess.DisplayName,
		AvatarURL:   sess.PhotoURL,
		Level:       1,
		XP:          0,
		Status:      profile.StatusAvailable,
	}
}

// Merge combines a session with its profile document. Profile values
// take precedence; identity values fill the gaps.
func Merge(sess *identity.Session, rec *profile.Record) *User {
	u := FromSession(sess)
	u.HasProfile = true
	if rec.Nickname != "" {
		u.Nickname = rec.Nickname
	}
	if rec.AvatarURL != "" {
		u.AvatarURL = rec.AvatarURL
	}
	if rec.Level != 0 {
		u.Level = rec.Level
	}
	u.XP = rec.XP
	u.StageFlags = rec.StageFlags
	u.StageState = rec.StageState
	u.CurrentCode = rec.CurrentCode
	if rec.Status != "" {
		u.Status = rec.Status
	}
	return u
}
