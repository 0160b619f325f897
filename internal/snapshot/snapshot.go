package snapshot

import (
	"context"
	"errors"

	"github.com/hkiendev/cartstore/internal/domain"
)

// Sink persists the store's last known cart so a restart restores it without
// a network round-trip. The store reconciles with the server on the next
// fetch regardless.
type Sink interface {
	Save(ctx context.Context, cart *domain.Cart) error
	Load(ctx context.Context) (*domain.Cart, error)
	Clear(ctx context.Context) error
}

var ErrNoSnapshot = errors.New("no snapshot")
