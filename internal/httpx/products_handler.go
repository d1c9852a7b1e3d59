package httpx

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/go-chi/chi/v5"
)

type ProductsHandler struct {
	Store orders.Store
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
}

func (h *ProductsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Store.ListActiveProducts(ctx)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Products retrieved successfully", map[string]any{"products": ps})
}

func (h *ProductsHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		fail(w, http.StatusNotFound, "Product not found", nil)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Store.ActiveProduct(ctx, id)
	if errors.Is(err, orders.ErrProductNotFound) {
		fail(w, http.StatusNotFound, "Product not found", nil)
		return
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Product retrieved successfully", map[string]any{"product": p})
}
