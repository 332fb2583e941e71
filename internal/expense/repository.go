package expense

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("expense category not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, name string) (Category, error) {
	now := time.Now().UTC()

	var c Category
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO expense_categories (name, created_at, updated_at)
		VALUES ($1, $2, $2)
		RETURNING id, name, created_at, updated_at
	`, name, now).Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Category{}, fmt.Errorf("insert expense category: %w", err)
	}

	return c, nil
}

// List returns one page of categories, newest first, and the total number of
// rows matching the search.
func (r *Repository) List(ctx context.Context, params ListParams) (Page, error) {
	pattern := "%" + escapeLike(params.Search) + "%"

	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT count(*)
		FROM expense_categories
		WHERE name ILIKE $1
	`, pattern).Scan(&total)
	if err != nil {
		return Page{}, fmt.Errorf("count expense categories: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name
		FROM expense_categories
		WHERE name ILIKE $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, pattern, params.Limit, params.Offset)
	if err != nil {
		return Page{}, fmt.Errorf("query expense categories: %w", err)
	}
	defer rows.Close()

	items := make([]CategorySummary, 0)
	for rows.Next() {
		var c CategorySummary
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return Page{}, fmt.Errorf("scan expense category: %w", err)
		}
		items = append(items, c)
	}

	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("iterate expense categories: %w", err)
	}

	return Page{Total: total, Items: items}, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (Category, error) {
	var c Category
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at
		FROM expense_categories
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Category{}, ErrNotFound
		}
		return Category{}, fmt.Errorf("get expense category: %w", err)
	}

	return c, nil
}

func (r *Repository) Update(ctx context.Context, id int64, name string) (Category, error) {
	var c Category
	err := r.db.QueryRowContext(ctx, `
		UPDATE expense_categories
		SET name = $2, updated_at = $3
		WHERE id = $1
		RETURNING id, name, created_at, updated_at
	`, id, name, time.Now().UTC()).Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Category{}, ErrNotFound
		}
		return Category{}, fmt.Errorf("update expense category: %w", err)
	}

	return c, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expense_categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete expense category: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// escapeLike makes LIKE wildcards in user input match literally; Postgres uses
// backslash as the default escape character.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
