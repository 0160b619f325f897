// Package stubserver is an in-process stand-in for the remote cart API, used
// by the demo binary and integration-style client tests. It implements the
// same envelope contract the real backend speaks.
package stubserver

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/hkiendev/cartstore/internal/domain"
)

type envelope struct {
	Success bool         `json:"success"`
	Data    *domain.Cart `json:"data,omitempty"`
	Code    string       `json:"code,omitempty"`
	Message string       `json:"message,omitempty"`
}

type addItemRequest struct {
	SKU      string `json:"sku"`
	Color    string `json:"color"`
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

type removeItemRequest struct {
	SKU   string `json:"sku"`
	Color string `json:"color"`
	Size  string `json:"size"`
}

// Server keeps one cart per bearer token, with a shared product catalog.
type Server struct {
	mu       sync.Mutex
	carts    map[string]*domain.Cart
	products map[string]domain.Product
}

func New() *Server {
	return &Server{
		carts:    make(map[string]*domain.Cart),
		products: make(map[string]domain.Product),
	}
}

// SetProduct seeds the catalog. Unknown SKUs are rejected on add.
func (s *Server) SetProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.SKU] = p
}

// Router wires the cart endpoint group with the standard middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Get("/", s.getCart)
		r.Delete("/", s.clearCart)
		r.Post("/items", s.addItem)
		r.Put("/items", s.updateItem)
		r.Delete("/items", s.removeItem)
	})

	return r
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	s.mu.Lock()
	cart := s.cartFor(token).Clone()
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, envelope{Success: true, Data: cart})
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.SKU == "" {
		respondError(w, http.StatusBadRequest, "invalid_sku", "sku is required")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}
	color, size := defaultVariant(req.Color), defaultVariant(req.Size)

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[req.SKU]
	if !exists {
		respondError(w, http.StatusNotFound, "not_found", fmt.Sprintf("unknown sku %q", req.SKU))
		return
	}

	cart := s.cartFor(token)
	if item := cart.FindBySKU(req.SKU, color, size); item != nil {
		item.Quantity += req.Quantity
		item.Recompute()
	} else {
		item := domain.CartItem{
			ID:       "cart-item-" + uuid.NewString(),
			Product:  product,
			Color:    color,
			Size:     size,
			Quantity: req.Quantity,
		}
		item.Recompute()
		cart.Items = append(cart.Items, item)
	}
	cart.UpdatedAt = time.Now()

	respondJSON(w, http.StatusCreated, envelope{Success: true, Data: cart.Clone()})
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.cartFor(token)
	item := cart.FindBySKU(req.SKU, req.Color, req.Size)
	if item == nil {
		respondError(w, http.StatusNotFound, "not_found", "item not in cart")
		return
	}
	item.Quantity = req.Quantity
	item.Recompute()
	cart.UpdatedAt = time.Now()

	respondJSON(w, http.StatusOK, envelope{Success: true, Data: cart.Clone()})
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	var req removeItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.cartFor(token)
	for idx := range cart.Items {
		if cart.Items[idx].Matches(req.SKU, req.Color, req.Size) {
			cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
			cart.UpdatedAt = time.Now()
			respondJSON(w, http.StatusOK, envelope{Success: true, Data: cart.Clone()})
			return
		}
	}

	respondError(w, http.StatusNotFound, "not_found", "item not in cart")
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	s.mu.Lock()
	delete(s.carts, token)
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, envelope{Success: true})
}

// cartFor returns the cart bound to a token, creating it on first use.
// Caller holds s.mu.
func (s *Server) cartFor(token string) *domain.Cart {
	cart, exists := s.carts[token]
	if !exists {
		cart = &domain.Cart{ID: "cart-" + uuid.NewString()}
		s.carts[token] = cart
	}
	return cart
}

func defaultVariant(v string) string {
	if v == "" {
		return domain.DefaultVariant
	}
	return v
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, envelope{
		Success: false,
		Code:    code,
		Message: message,
	})
}
