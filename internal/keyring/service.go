package keyring

import (
	"context"
	"errors"
	"log/slog"

	"undertone/pkg/domain"
	dErrors "undertone/pkg/domain-errors"
	"undertone/pkg/platform/sentinel"
	"undertone/pkg/requestcontext"
)

// Service publishes and serves public keys.
type Service struct {
	store    Store
	pageSize int
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithPageSize(n int) Option {
	return func(s *Service) { s.pageSize = n }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		pageSize: 500,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add publishes a key for its owner and returns the new key's ID.
func (s *Service) Add(ctx context.Context, ownerID domain.UserID, keyData []byte) (domain.KeyID, error) {
	if len(keyData) == 0 {
		return domain.KeyID{}, dErrors.New(dErrors.CodeInvalidInput, "InvalidRequest")
	}
	key := &Key{
		ID:          domain.NewKeyID(),
		OwnerID:     ownerID,
		Data:        keyData,
		PublishTime: requestcontext.Now(ctx),
	}
	if err := s.store.Create(ctx, key); err != nil {
		return domain.KeyID{}, s.translate(err)
	}
	s.logger.InfoContext(ctx, "public key published",
		"key_id", key.ID.String(), "owner_id", ownerID.String())
	return key.ID, nil
}

// Get returns the full key, material included. Key material is public;
// no session is required to fetch it.
func (s *Service) Get(ctx context.Context, id domain.KeyID) (*Key, error) {
	key, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, s.translate(err)
	}
	return key, nil
}

// List returns the owner's keys, newest first.
func (s *Service) List(ctx context.Context, ownerID domain.UserID, start, count int) ([]Info, error) {
	if start < 0 {
		start = 0
	}
	if count <= 0 || count > s.pageSize {
		count = s.pageSize
	}
	infos, err := s.store.ListForOwner(ctx, ownerID, start, count)
	return infos, s.translate(err)
}

func (s *Service) translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "NoObjectWithId")
	}
	var dErr *dErrors.Error
	if errors.As(err, &dErr) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "key store")
}
