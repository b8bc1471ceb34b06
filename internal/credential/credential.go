package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/iurnickita/squaresync/internal/model"
	"github.com/iurnickita/squaresync/internal/store"
)

type Credential interface {
	Latest(ctx context.Context) (model.Credential, error)
	Save(ctx context.Context, credential model.Credential) error
	Configured() bool
}

var (
	ErrNotFound         = errors.New("square_tokens table is empty")
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

type credential struct {
	store store.Store
}

// NewCredential принимает nil, если хранилище не настроено
func NewCredential(store store.Store) Credential {
	credential := credential{store: store}
	return &credential
}

func (credential *credential) Configured() bool {
	return credential.store != nil
}

func (credential *credential) Latest(ctx context.Context) (model.Credential, error) {
	if credential.store == nil {
		return model.Credential{}, ErrStoreUnavailable
	}

	row, err := credential.store.CredentialGetLatest(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return model.Credential{}, ErrNotFound
		}
		return model.Credential{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if row.AccessToken == "" {
		return model.Credential{}, ErrNotFound
	}
	return row, nil
}

func (credential *credential) Save(ctx context.Context, row model.Credential) error {
	if credential.store == nil {
		return ErrStoreUnavailable
	}
	if row.MerchantID == "" {
		return errors.New("credential without merchant id")
	}

	return credential.store.CredentialUpsert(ctx, row)
}
