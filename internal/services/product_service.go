package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/stockroom/internal/models"
)

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	List(ctx context.Context, tag string) ([]*models.Product, error)
	GetByID(ctx context.Context, id int64) (*models.Product, error)
	Create(ctx context.Context, p *models.Product) (*models.Product, error)
	Update(ctx context.Context, id int64, p *models.Product) (*models.Product, error)
	Delete(ctx context.Context, id int64) error
}

// ProductInput is the writable part of a product
type ProductInput struct {
	Name        string
	Description *string
	Price       float64
	Quantity    int
	Tags        []string
}

// ProductService handles inventory business logic
type ProductService struct {
	repo   ProductRepository
	logger *slog.Logger
}

// NewProductService creates a new ProductService
func NewProductService(repo ProductRepository, logger *slog.Logger) *ProductService {
	return &ProductService{repo: repo, logger: logger}
}

func (in ProductInput) toModel() (*models.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("name is required: %w", models.ErrBadRequest)
	}
	if in.Price < 0 {
		return nil, fmt.Errorf("price must be non-negative: %w", models.ErrBadRequest)
	}
	if in.Quantity < 0 {
		return nil, fmt.Errorf("quantity must be non-negative: %w", models.ErrBadRequest)
	}

	tags := make([]string, 0, len(in.Tags))
	seen := make(map[string]bool, len(in.Tags))
	for _, tag := range in.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	return &models.Product{
		Name:        name,
		Description: in.Description,
		Price:       in.Price,
		Quantity:    in.Quantity,
		Tags:        tags,
	}, nil
}

// ListProducts returns all products, optionally filtered by tag
func (s *ProductService) ListProducts(ctx context.Context, tag string) ([]*models.Product, error) {
	products, err := s.repo.List(ctx, strings.ToLower(strings.TrimSpace(tag)))
	if err != nil {
		s.logger.Error("failed to list products", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return products, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get product", slog.Int64("product_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return p, nil
}

func (s *ProductService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	p, err := in.toModel()
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, p)
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			return nil, err
		}
		s.logger.Error("failed to create product", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("product created", slog.Int64("product_id", created.ID))
	return created, nil
}

func (s *ProductService) UpdateProduct(ctx context.Context, id int64, in ProductInput) (*models.Product, error) {
	p, err := in.toModel()
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, p)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrBadRequest) {
			return nil, err
		}
		s.logger.Error("failed to update product", slog.Int64("product_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("product updated", slog.Int64("product_id", id))
	return updated, nil
}

func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete product", slog.Int64("product_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("product deleted", slog.Int64("product_id", id))
	return nil
}
