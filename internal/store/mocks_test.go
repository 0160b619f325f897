package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/hkiendev/cartstore/internal/api"
	"github.com/hkiendev/cartstore/internal/domain"
	"github.com/hkiendev/cartstore/internal/snapshot"
)

// mockAPI behaves like the real backend: it owns a server-side cart, merges
// added items and assigns real item IDs. Per-method errors are injectable,
// and beforeRespond lets a test observe store state while the "network call"
// is in flight.
type mockAPI struct {
	m        sync.Mutex
	cart     *domain.Cart
	products map[string]domain.Product
	seq      int

	getErr    error
	addErr    error
	updateErr error
	removeErr error
	clearErr  error

	getCalls int

	beforeRespond func(method string)
}

func newMockAPI() *mockAPI {
	return &mockAPI{
		cart:     &domain.Cart{ID: "cart-1"},
		products: map[string]domain.Product{},
	}
}

func (m *mockAPI) observe(method string) {
	if m.beforeRespond != nil {
		m.beforeRespond(method)
	}
}

func (m *mockAPI) GetCart(context.Context) (*domain.Cart, error) {
	m.observe("get")
	m.m.Lock()
	defer m.m.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.cart.Clone(), nil
}

func (m *mockAPI) AddItem(_ context.Context, req api.AddItemRequest) (*domain.Cart, error) {
	m.observe("add")
	m.m.Lock()
	defer m.m.Unlock()
	if m.addErr != nil {
		return nil, m.addErr
	}

	if item := m.cart.FindBySKU(req.SKU, req.Color, req.Size); item != nil {
		item.Quantity += req.Quantity
		item.Recompute()
		return m.cart.Clone(), nil
	}

	m.seq++
	item := domain.CartItem{
		ID:       fmt.Sprintf("cart-item-%d", m.seq),
		Product:  m.products[req.SKU],
		Color:    req.Color,
		Size:     req.Size,
		Quantity: req.Quantity,
	}
	item.Recompute()
	m.cart.Items = append(m.cart.Items, item)
	return m.cart.Clone(), nil
}

func (m *mockAPI) UpdateItem(_ context.Context, req api.UpdateItemRequest) (*domain.Cart, error) {
	m.observe("update")
	m.m.Lock()
	defer m.m.Unlock()
	if m.updateErr != nil {
		return nil, m.updateErr
	}

	item := m.cart.FindBySKU(req.SKU, req.Color, req.Size)
	if item == nil {
		return nil, &api.APIError{Status: 404, Message: "item not found"}
	}
	item.Quantity = req.Quantity
	item.Recompute()
	return m.cart.Clone(), nil
}

func (m *mockAPI) RemoveItem(_ context.Context, req api.RemoveItemRequest) (*domain.Cart, error) {
	m.observe("remove")
	m.m.Lock()
	defer m.m.Unlock()
	if m.removeErr != nil {
		return nil, m.removeErr
	}

	for idx, item := range m.cart.Items {
		if item.Matches(req.SKU, req.Color, req.Size) {
			m.cart.Items = append(m.cart.Items[:idx], m.cart.Items[idx+1:]...)
			return m.cart.Clone(), nil
		}
	}
	return nil, &api.APIError{Status: 404, Message: "item not found"}
}

func (m *mockAPI) ClearCart(context.Context) error {
	m.observe("clear")
	m.m.Lock()
	defer m.m.Unlock()
	if m.clearErr != nil {
		return m.clearErr
	}
	m.cart = &domain.Cart{ID: m.cart.ID}
	return nil
}

// serverItem seeds a persisted line item directly into the fake backend.
func (m *mockAPI) serverItem(sku, color, size string, quantity int) {
	m.m.Lock()
	defer m.m.Unlock()
	m.seq++
	item := domain.CartItem{
		ID:       fmt.Sprintf("cart-item-%d", m.seq),
		Product:  m.products[sku],
		Color:    color,
		Size:     size,
		Quantity: quantity,
	}
	item.Recompute()
	m.cart.Items = append(m.cart.Items, item)
}

type mockSink struct {
	m         sync.Mutex
	cart      *domain.Cart
	saveCalls int
	saveErr   error
}

func (s *mockSink) Save(_ context.Context, cart *domain.Cart) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.saveCalls++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.cart = cart
	return nil
}

func (s *mockSink) Load(context.Context) (*domain.Cart, error) {
	s.m.Lock()
	defer s.m.Unlock()
	if s.cart == nil {
		return nil, snapshot.ErrNoSnapshot
	}
	return s.cart.Clone(), nil
}

func (s *mockSink) Clear(context.Context) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.cart = nil
	return nil
}

func (s *mockSink) saved() *domain.Cart {
	s.m.Lock()
	defer s.m.Unlock()
	return s.cart.Clone()
}

type recordingNotifier struct {
	m         sync.Mutex
	successes []string
	failures  []string
}

func (n *recordingNotifier) Success(msg string) {
	n.m.Lock()
	defer n.m.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) Failure(msg string) {
	n.m.Lock()
	defer n.m.Unlock()
	n.failures = append(n.failures, msg)
}
