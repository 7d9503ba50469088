package admin

import (
	"context"
	"errors"
	"fmt"

	"undertone/internal/credential"
	"undertone/pkg/domain"
	"undertone/pkg/platform/sentinel"
)

// SeedResult reports what EnsureSeedAdmin did. Secret is only populated when
// the admin was created in this call; an existing admin's secret is never
// read back out.
type SeedResult struct {
	ID      domain.AdminID
	Secret  []byte
	Created bool
}

// EnsureSeedAdmin guarantees a root administrator with the full wildcard
// grant exists. It is safe to run on every boot and from multiple replicas
// at once: the insert is keyed on the store's name uniqueness, so whoever
// loses the race simply adopts the winner's row.
func EnsureSeedAdmin(ctx context.Context, store Store, creds credential.Params, name string, secret []byte) (SeedResult, error) {
	if existing, err := store.FindByName(ctx, name); err == nil {
		return SeedResult{ID: existing.ID}, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return SeedResult{}, fmt.Errorf("look up seed admin: %w", err)
	}

	if len(secret) == 0 {
		fresh, err := creds.NewSecret()
		if err != nil {
			return SeedResult{}, fmt.Errorf("generate seed secret: %w", err)
		}
		secret = fresh
	}
	challenge, err := creds.NewChallenge()
	if err != nil {
		return SeedResult{}, fmt.Errorf("generate seed challenge: %w", err)
	}

	a := &Admin{
		ID:        domain.NewAdminID(),
		Name:      name,
		Secret:    secret,
		Challenge: challenge,
		Grants:    []string{"*"},
	}
	err = store.Create(ctx, a)
	if errors.Is(err, sentinel.ErrConflict) {
		// Another replica seeded first; adopt its row.
		existing, findErr := store.FindByName(ctx, name)
		if findErr != nil {
			return SeedResult{}, fmt.Errorf("look up seed admin after conflict: %w", findErr)
		}
		return SeedResult{ID: existing.ID}, nil
	}
	if err != nil {
		return SeedResult{}, fmt.Errorf("create seed admin: %w", err)
	}
	return SeedResult{ID: a.ID, Secret: secret, Created: true}, nil
}
