package store

import (
	"context"
	"errors"
	"log"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/hkiendev/cartstore/internal/api"
	"github.com/hkiendev/cartstore/internal/domain"
	"github.com/hkiendev/cartstore/internal/snapshot"
)

// Notifier receives the user-facing outcome of mutating operations. UI
// consumers plug in a toast layer; the default is a no-op.
type Notifier interface {
	Success(msg string)
	Failure(msg string)
}

type noopNotifier struct{}

func (noopNotifier) Success(string) {}
func (noopNotifier) Failure(string) {}

// MutationPhase tracks the lifecycle of the most recent optimistic mutation,
// making the rollback contract observable.
type MutationPhase int

const (
	MutationIdle MutationPhase = iota
	MutationPendingOptimistic
	MutationConfirmed
	MutationRolledBack
)

func (p MutationPhase) String() string {
	switch p {
	case MutationPendingOptimistic:
		return "pending-optimistic"
	case MutationConfirmed:
		return "confirmed"
	case MutationRolledBack:
		return "rolled-back"
	default:
		return "idle"
	}
}

// Store holds the authoritative local view of one shopping cart. It applies
// optimistic mutations immediately, confirms them against the remote cart
// API, and reconciles back to the server's state when a call fails.
//
// Overlapping operations are not serialized; the shared loading/error flags
// are last-write-wins, and whichever network response lands last overwrites
// the cart.
type Store struct {
	client api.CartAPI
	sink   snapshot.Sink
	notify Notifier
	sfg    singleflight.Group // dedupes concurrent fetches

	mu       sync.Mutex
	cart     *domain.Cart
	loading  bool
	errMsg   string
	mutation MutationPhase
}

// New builds a Store and rehydrates the last persisted cart snapshot, so a
// restart shows the previous cart before the first fetch completes. sink and
// notify may be nil.
func New(client api.CartAPI, sink snapshot.Sink, notify Notifier) *Store {
	if notify == nil {
		notify = noopNotifier{}
	}
	s := &Store{
		client: client,
		sink:   sink,
		notify: notify,
	}
	if sink != nil {
		cart, err := sink.Load(context.Background())
		switch {
		case err == nil:
			s.cart = cart
		case errors.Is(err, snapshot.ErrNoSnapshot):
			// first run, nothing to restore
		default:
			log.Printf("snapshot load error: %v", err)
		}
	}
	return s
}

// Cart returns a deep copy of the current cart, or nil. Consumers must not
// mutate store state directly; all mutation goes through the operations.
func (s *Store) Cart() *domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// Loading reports whether an operation is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the user-visible message of the most recent failed operation,
// or "" when there is nothing the user should see.
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// LastMutation reports the phase the most recent mutating operation ended in.
func (s *Store) LastMutation() MutationPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutation
}

// ItemByID returns a copy of the line item with the given ID.
func (s *Store) ItemByID(id string) (domain.CartItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item := s.cart.FindByID(id); item != nil {
		return *item, true
	}
	return domain.CartItem{}, false
}

// ItemBySKU returns a copy of the line item matching (sku, color, size).
func (s *Store) ItemBySKU(sku, color, size string) (domain.CartItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item := s.cart.FindBySKU(sku, color, size); item != nil {
		return *item, true
	}
	return domain.CartItem{}, false
}

// Totals derives aggregate figures from the current item list.
func (s *Store) Totals() domain.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.ComputeTotals()
}

// Fetch loads the cart from the server and replaces local state wholesale.
// An unauthorized response means guest/expired session: the cart is cleared
// quietly. A conflict response means two near-simultaneous cart writes raced
// on the server; the next fetch self-heals, so it stays quiet too.
func (s *Store) Fetch(ctx context.Context) error {
	s.begin()

	v, err, _ := s.sfg.Do("fetch", func() (interface{}, error) {
		return s.client.GetCart(ctx)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false

	switch {
	case err == nil:
		s.cart = v.(*domain.Cart)
		s.persistLocked(ctx)
		return nil
	case errors.Is(err, api.ErrUnauthorized):
		s.cart = nil
		s.errMsg = ""
		s.persistLocked(ctx)
		return nil
	case errors.Is(err, api.ErrConflict):
		return nil
	default:
		s.errMsg = err.Error()
		return err
	}
}

// Add puts quantity units of (sku, color, size) into the cart. An existing
// line for the same triple is merged; otherwise a placeholder item with a
// temporary ID is appended until the server's payload replaces it. Empty
// color/size resolve to the default variant label.
func (s *Store) Add(ctx context.Context, sku, color, size string, quantity int) error {
	color, size = resolveVariant(color), resolveVariant(size)

	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	s.mutation = MutationIdle
	if s.cart != nil {
		if item := s.cart.FindBySKU(sku, color, size); item != nil {
			item.Quantity += quantity
			item.Recompute()
		} else {
			s.cart.Items = append(s.cart.Items, domain.NewOptimisticItem(sku, color, size, quantity))
		}
		s.mutation = MutationPendingOptimistic
		s.persistLocked(ctx)
	}
	s.mu.Unlock()

	cart, err := s.client.AddItem(ctx, api.AddItemRequest{
		SKU:      sku,
		Color:    color,
		Size:     size,
		Quantity: quantity,
	})
	if err != nil {
		s.resync(ctx)
		s.fail(err)
		return err
	}

	s.confirm(ctx, cart, "added to cart")
	return nil
}

// UpdateQuantity sets the absolute quantity of an existing line item.
func (s *Store) UpdateQuantity(ctx context.Context, sku, color, size string, quantity int) error {
	color, size = resolveVariant(color), resolveVariant(size)

	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	s.mutation = MutationIdle
	if item := s.cart.FindBySKU(sku, color, size); item != nil {
		item.Quantity = quantity
		item.Recompute()
		s.mutation = MutationPendingOptimistic
		s.persistLocked(ctx)
	}
	s.mu.Unlock()

	cart, err := s.client.UpdateItem(ctx, api.UpdateItemRequest{
		SKU:      sku,
		Color:    color,
		Size:     size,
		Quantity: quantity,
	})
	if err != nil {
		s.resync(ctx)
		s.fail(err)
		return err
	}

	s.confirm(ctx, cart, "cart updated")
	return nil
}

// Remove deletes the line item matching (sku, color, size). The removal is
// pure, so a failed remote call rolls back by reinserting the exact item at
// its original position instead of refetching.
func (s *Store) Remove(ctx context.Context, sku, color, size string) error {
	color, size = resolveVariant(color), resolveVariant(size)

	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	s.mutation = MutationIdle

	var removed *domain.CartItem
	removedAt := -1
	if s.cart != nil {
		for idx := range s.cart.Items {
			if s.cart.Items[idx].Matches(sku, color, size) {
				item := s.cart.Items[idx]
				removed = &item
				removedAt = idx
				s.cart.Items = append(s.cart.Items[:idx], s.cart.Items[idx+1:]...)
				break
			}
		}
	}
	if removed != nil {
		s.mutation = MutationPendingOptimistic
		s.persistLocked(ctx)
	}
	s.mu.Unlock()

	cart, err := s.client.RemoveItem(ctx, api.RemoveItemRequest{
		SKU:   sku,
		Color: color,
		Size:  size,
	})
	if err != nil {
		if removed != nil {
			s.mu.Lock()
			if s.cart != nil {
				items := s.cart.Items
				if removedAt > len(items) {
					removedAt = len(items)
				}
				s.cart.Items = append(items[:removedAt], append([]domain.CartItem{*removed}, items[removedAt:]...)...)
				s.persistLocked(ctx)
			}
			s.mu.Unlock()
		}
		s.fail(err)
		return err
	}

	s.confirm(ctx, cart, "item removed")
	return nil
}

// Clear empties the cart on the server. Clearing has no cheap undo, so there
// is no optimistic step; local state changes only after the server confirms.
func (s *Store) Clear(ctx context.Context) error {
	s.begin()

	if err := s.client.ClearCart(ctx); err != nil {
		s.mu.Lock()
		s.loading = false
		s.errMsg = err.Error()
		s.mu.Unlock()
		s.notify.Failure(err.Error())
		return err
	}

	s.mu.Lock()
	s.cart = nil
	s.loading = false
	s.persistLocked(ctx)
	s.mu.Unlock()
	s.notify.Success("cart cleared")
	return nil
}

func (s *Store) begin() {
	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()
}

// confirm replaces local state wholesale with the server's payload. Any
// temporary-ID placeholder disappears here, superseded by the real item.
func (s *Store) confirm(ctx context.Context, cart *domain.Cart, msg string) {
	s.mu.Lock()
	s.cart = cart
	s.loading = false
	s.mutation = MutationConfirmed
	s.persistLocked(ctx)
	s.mu.Unlock()
	s.notify.Success(msg)
}

// fail records the user-visible error after the optimistic change has been
// undone. The caller still propagates err to UI consumers.
func (s *Store) fail(err error) {
	s.mu.Lock()
	s.loading = false
	s.errMsg = err.Error()
	if s.mutation == MutationPendingOptimistic {
		s.mutation = MutationRolledBack
	}
	s.mu.Unlock()
	s.notify.Failure(err.Error())
}

// resync discards an optimistic add/update by re-reading the server's actual
// cart, which never contained the unconfirmed change. It leaves the
// loading/error flags for the caller.
func (s *Store) resync(ctx context.Context) {
	v, err, _ := s.sfg.Do("fetch", func() (interface{}, error) {
		return s.client.GetCart(ctx)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err == nil:
		s.cart = v.(*domain.Cart)
		s.persistLocked(ctx)
	case errors.Is(err, api.ErrUnauthorized):
		s.cart = nil
		s.persistLocked(ctx)
	default:
		log.Printf("cart resync error: %v", err)
	}
}

// persistLocked pushes the current cart to the snapshot sink. Persistence is
// best-effort; a sink failure is logged and never fails the operation.
// Caller holds s.mu.
func (s *Store) persistLocked(ctx context.Context) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Save(ctx, s.cart.Clone()); err != nil {
		log.Printf("snapshot save error: %v", err)
	}
}

func resolveVariant(v string) string {
	if v == "" {
		return domain.DefaultVariant
	}
	return v
}
