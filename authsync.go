// Package authsync reconciles an identity-provider session with a
// separately stored, eventually consistent user profile, and drives
// navigation from the verification state.
package authsync

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/proggaming/authsync/flow"
	"github.com/proggaming/authsync/idp"
	"github.com/proggaming/authsync/nav"
	"github.com/proggaming/authsync/persistence"
	"github.com/proggaming/authsync/resolve"
)

// Core bundles the default wiring: local identity provider, GORM
// profile store, merge resolver and flow controller sharing one
// database.
type Core struct {
	Client     *idp.LocalClient
	Store      *persistence.Repository
	Resolver   *resolve.Resolver
	Controller *flow.Controller
}

// NewCore wires the default controller stack on db.
func NewCore(db *gorm.DB, log *zap.Logger) (*Core, error) {
	store := persistence.NewRepository(db)
	if err := store.AutoMigrate(); err != nil {
		return nil, err
	}

	client, err := idp.NewLocalClient(db, idp.NewBcryptHasher(14), idp.NewLogMailer(log), log)
	if err != nil {
		return nil, err
	}

	return &Core{
		Client:     client,
		Store:      store,
		Resolver:   resolve.NewResolver(client, store, log),
		Controller: flow.NewController(client, store, log),
	}, nil
}

// NewReactor builds the navigation reactor for the core's session
// stream.
func (c *Core) NewReactor(navigator nav.Navigator, log *zap.Logger) *nav.Reactor {
	return nav.NewReactor(c.Client, navigator, log)
}
