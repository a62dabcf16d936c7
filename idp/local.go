package idp

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/proggaming/authsync/identity"
)

const minSecretLength = 6

// LocalClient is a database-backed identity.Client: password accounts
// with bcrypt credentials, federated account linking, and a broadcast
// session stream.
type LocalClient struct {
	db        *gorm.DB
	hasher    Hasher
	mailer    Mailer
	log       *zap.Logger
	state     *identity.Broadcaster
	lockout   *lockout
	federated map[identity.Provider]Federated
}

func NewLocalClient(db *gorm.DB, hasher Hasher, mailer Mailer, log *zap.Logger) (*LocalClient, error) {
	if err := db.AutoMigrate(&Account{}, &Credential{}); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LocalClient{
		db:        db,
		hasher:    hasher,
		mailer:    mailer,
		log:       log,
		state:     identity.NewBroadcaster(),
		lockout:   newLockout(5, 15*time.Minute),
		federated: make(map[identity.Provider]Federated),
	}, nil
}

// RegisterFederated installs an authenticator for a federated provider
// kind.
func (c *LocalClient) RegisterFederated(p identity.Provider, f Federated) {
	c.federated[p] = f
}

func (c *LocalClient) Sessions(ctx context.Context) <-chan *identity.Session {
	return c.state.Sessions(ctx)
}

func (c *LocalClient) Current() *identity.Session {
	return c.state.Current()
}

func (c *LocalClient) SignUpWithPassword(ctx context.Context, email, secret string) (*identity.Session, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, identity.NewError(identity.CodeInvalidEmail, err)
	}
	if len(secret) < minSecretLength {
		return nil, identity.NewError(identity.CodeWeakSecret, fmt.Errorf("secret shorter than %d characters", minSecretLength))
	}

	hash, err := c.hasher.Hash(secret)
	if err != nil {
		return nil, err
	}

	acct := &Account{
		ID:          uuid.New().String(),
		Email:       email,
		DisplayName: "",
		Verified:    false,
	}
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Account
		if err := tx.First(&existing, "email = ?", email).Error; err == nil {
			return identity.NewError(identity.CodeEmailInUse, nil)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		acct.Credentials = []Credential{{
			ID:         uuid.New().String(),
			AccountID:  acct.ID,
			Provider:   identity.ProviderPassword,
			Identifier: email,
			SecretHash: hash,
		}}
		return tx.Create(acct).Error
	})
	if err != nil {
		return nil, err
	}

	sess := acct.session()
	c.state.Set(sess)
	c.log.Info("password account registered", zap.String("account_id", acct.ID))
	return sess, nil
}

func (c *LocalClient) SignInWithPassword(ctx context.Context, email, secret string) (*identity.Session, error) {
	if c.lockout.locked(email) {
		return nil, identity.NewError(identity.CodeRateLimited, nil)
	}

	var cred Credential
	err := c.db.WithContext(ctx).
		First(&cred, "identifier = ? AND provider = ?", email, identity.ProviderPassword).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, identity.NewError(identity.CodeUserNotFound, nil)
		}
		return nil, identity.NewError(identity.CodeNetworkFailure, err)
	}

	if !c.hasher.Compare(secret, cred.SecretHash) {
		c.lockout.recordFailure(email)
		return nil, identity.NewError(identity.CodeWrongSecret, nil)
	}
	c.lockout.clear(email)

	acct, err := c.loadAccount(ctx, cred.AccountID)
	if err != nil {
		return nil, err
	}

	sess := acct.session()
	c.state.Set(sess)
	return sess, nil
}

func (c *LocalClient) SignInWithProvider(ctx context.Context, provider identity.Provider) (*identity.Session, error) {
	f, ok := c.federated[provider]
	if !ok {
		return nil, fmt.Errorf("idp: no authenticator registered for provider %q", provider)
	}
	fid, err := f.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return c.FinishFederated(ctx, provider, fid)
}

// FinishFederated reconciles a federated assertion into an account:
// an existing credential resolves to its account, a matching email
// links the provider to that account, and anything else creates a new
// account that is trusted without mailbox verification.
func (c *LocalClient) FinishFederated(ctx context.Context, provider identity.Provider, fid *FederatedIdentity) (*identity.Session, error) {
	identifier := fmt.Sprintf("%s:%s", provider, fid.Subject)

	var acct *Account
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cred Credential
		err := tx.First(&cred, "identifier = ? AND provider = ?", identifier, provider).Error
		if err == nil {
			loaded, err := c.loadAccountTx(tx, cred.AccountID)
			if err != nil {
				return err
			}
			acct = loaded
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var existing Account
		err = tx.Preload("Credentials").First(&existing, "email = ?", fid.Email).Error
		switch {
		case err == nil:
			acct = &existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			acct = &Account{
				ID:          uuid.New().String(),
				Email:       fid.Email,
				DisplayName: fid.Name,
				PhotoURL:    fid.PhotoURL,
				Verified:    true,
			}
			if err := tx.Create(acct).Error; err != nil {
				return err
			}
		default:
			return err
		}

		link := Credential{
			ID:         uuid.New().String(),
			AccountID:  acct.ID,
			Provider:   provider,
			Identifier: identifier,
		}
		if err := tx.Create(&link).Error; err != nil {
			return err
		}
		acct.Credentials = append(acct.Credentials, link)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sess := acct.session()
	c.state.Set(sess)
	c.log.Info("federated sign-in", zap.String("account_id", acct.ID), zap.String("provider", string(provider)))
	return sess, nil
}

func (c *LocalClient) SignOut(ctx context.Context) error {
	c.state.Set(nil)
	return nil
}

func (c *LocalClient) SendVerificationEmail(ctx context.Context, returnURL string) error {
	sess := c.state.Current()
	if sess == nil {
		return identity.NewError(identity.CodeNoSession, errors.New("no signed-in session"))
	}
	return c.mailer.SendVerification(ctx, sess.Email, returnURL)
}

func (c *LocalClient) SendPasswordReset(ctx context.Context, email string) error {
	var acct Account
	if err := c.db.WithContext(ctx).First(&acct, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return identity.NewError(identity.CodeUserNotFound, nil)
		}
		return err
	}
	return c.mailer.SendPasswordReset(ctx, email)
}

// CompleteVerification marks the account's mailbox as proven, the way
// the hosted verification link would. If the account is currently
// signed in, the refreshed session is broadcast so the gate re-admits
// it.
func (c *LocalClient) CompleteVerification(ctx context.Context, accountID string) error {
	if err := c.db.WithContext(ctx).Model(&Account{}).
		Where("id = ?", accountID).Update("verified", true).Error; err != nil {
		return err
	}
	if cur := c.state.Current(); cur != nil && cur.ID == accountID {
		acct, err := c.loadAccount(ctx, accountID)
		if err != nil {
			return err
		}
		c.state.Set(acct.session())
	}
	return nil
}

func (c *LocalClient) loadAccount(ctx context.Context, id string) (*Account, error) {
	return c.loadAccountTx(c.db.WithContext(ctx), id)
}

func (c *LocalClient) loadAccountTx(tx *gorm.DB, id string) (*Account, error) {
	var acct Account
	if err := tx.Preload("Credentials").First(&acct, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &acct, nil
}
