package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/stockroom/internal/database"
	"github.com/BradenHooton/stockroom/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type ProductRepository struct {
	pool *pgxpool.Pool
}

func NewProductRepository(db *database.DB) *ProductRepository {
	return &ProductRepository{pool: db.Pool}
}

const productColumns = `id, name, description, price::float8, quantity, tags, created_at, updated_at`

func scanProductRow(scanner rowScanner) (*models.Product, error) {
	var p models.Product
	err := scanner.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Quantity,
		pq.Array(&p.Tags), &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return &p, nil
}

// List returns products ordered by id. A non-empty tag restricts the result to
// products carrying that tag.
func (r *ProductRepository) List(ctx context.Context, tag string) ([]*models.Product, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if tag == "" {
		rows, err = r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	} else {
		rows, err = r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE tags @> $1 ORDER BY id`,
			pq.Array([]string{tag}))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]*models.Product, 0)
	for rows.Next() {
		p, err := scanProductRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return products, nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	return scanProductRow(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

func (r *ProductRepository) Create(ctx context.Context, p *models.Product) (*models.Product, error) {
	query := `
		INSERT INTO products (name, description, price, quantity, tags)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + productColumns

	return scanProductRow(r.pool.QueryRow(ctx, query,
		p.Name, p.Description, p.Price, p.Quantity, pq.Array(normalizeTags(p.Tags)),
	))
}

func (r *ProductRepository) Update(ctx context.Context, id int64, p *models.Product) (*models.Product, error) {
	query := `
		UPDATE products SET name = $1, description = $2, price = $3, quantity = $4, tags = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING ` + productColumns

	return scanProductRow(r.pool.QueryRow(ctx, query,
		p.Name, p.Description, p.Price, p.Quantity, pq.Array(normalizeTags(p.Tags)), id,
	))
}

func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func normalizeTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
