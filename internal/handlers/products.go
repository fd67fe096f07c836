package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/BradenHooton/stockroom/internal/models"
	"github.com/BradenHooton/stockroom/internal/services"
	pkghttp "github.com/BradenHooton/stockroom/pkg/http"
)

// ProductService defines the interface for inventory business logic
type ProductService interface {
	ListProducts(ctx context.Context, tag string) ([]*models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, in services.ProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, id int64, in services.ProductInput) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

// ProductHandler handles inventory HTTP requests
type ProductHandler struct {
	service ProductService
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(service ProductService) *ProductHandler {
	return &ProductHandler{service: service}
}

// ProductRequest is the body for creating or replacing a product
type ProductRequest struct {
	Name        string   `json:"name" validate:"required,max=255"`
	Description *string  `json:"description" validate:"omitempty,max=2000"`
	Price       float64  `json:"price" validate:"gte=0"`
	Quantity    int      `json:"quantity" validate:"gte=0"`
	Tags        []string `json:"tags" validate:"omitempty,max=20,dive,max=50"`
}

func (req ProductRequest) input() services.ProductInput {
	return services.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Tags:        req.Tags,
	}
}

// ListProductsResponse represents a list of products
type ListProductsResponse struct {
	Products []*models.Product `json:"products"`
	Count    int               `json:"count"`
}

// ListProducts handles GET /products, optionally filtered by ?tag=
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to retrieve products")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, ListProductsResponse{Products: products, Count: len(products)})
}

// GetProduct handles GET /products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		writeProductError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, product)
}

// CreateProduct handles POST /products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	product, err := h.service.CreateProduct(r.Context(), req.input())
	if err != nil {
		writeProductError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, product)
}

// UpdateProduct handles PUT /products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	product, err := h.service.UpdateProduct(r.Context(), id, req.input())
	if err != nil {
		writeProductError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /products/{id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		writeProductError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeProductError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Product not found")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, badRequestMessage(err))
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
