// Package sqlite provides a core.Catalog backed by a SQLite database holding
// products, popularity scores and the association rule table.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hupe1980/ordermesh/catalog"
	"github.com/hupe1980/ordermesh/core"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	price TEXT NOT NULL DEFAULT '0',
	popularity REAL NOT NULL DEFAULT 0,
	embedding_handle TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);
CREATE INDEX IF NOT EXISTS idx_products_popularity ON products(popularity DESC, id);

CREATE TABLE IF NOT EXISTS association_rules (
	antecedent TEXT NOT NULL,
	consequent TEXT NOT NULL,
	confidence REAL NOT NULL CHECK (confidence > 0 AND confidence <= 1),
	PRIMARY KEY (antecedent, consequent)
);
`

const productColumns = `id, name, description, category, price, popularity, embedding_handle`

// Catalog implements core.Catalog over SQLite.
type Catalog struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the schema.
func Open(path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create database directory")
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	db.SetMaxOpenConns(8)
	db.SetConnMaxLifetime(5 * time.Minute)

	c, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// New wraps an existing database handle and ensures the schema.
func New(db *sql.DB) (*Catalog, error) {
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "ping database")
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "initialize schema")
	}
	return &Catalog{db: db}, nil
}

// Close releases the database handle.
func (c *Catalog) Close() error { return c.db.Close() }

// Seed upserts the fixture's products and rules in one transaction.
func (c *Catalog) Seed(ctx context.Context, f *catalog.Fixture) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin seed")
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range f.Products {
		_, err := tx.ExecContext(ctx, `INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name=excluded.name, description=excluded.description,
			category=excluded.category, price=excluded.price, popularity=excluded.popularity,
			embedding_handle=excluded.embedding_handle`,
			p.ID, p.Name, p.Description, strings.ToLower(p.Category), p.Price.String(), p.Popularity, p.EmbeddingHandle)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
	}
	for _, r := range f.Rules {
		_, err := tx.ExecContext(ctx, `INSERT INTO association_rules (antecedent, consequent, confidence) VALUES (?, ?, ?)
			ON CONFLICT(antecedent, consequent) DO UPDATE SET confidence=excluded.confidence`,
			r.Antecedent, r.Consequent, r.Confidence)
		if err != nil {
			return errors.Wrapf(err, "upsert rule %s->%s", r.Antecedent, r.Consequent)
		}
	}

	return errors.Wrap(tx.Commit(), "commit seed")
}

// GetProduct implements core.Catalog.
func (c *Catalog) GetProduct(ctx context.Context, id string) (core.Product, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Product{}, fmt.Errorf("%w: %s", core.ErrProductNotFound, id)
	}
	if err != nil {
		return core.Product{}, unavailable(err, "get product")
	}
	return p, nil
}

// ListByCategory implements core.Catalog.
func (c *Catalog) ListByCategory(ctx context.Context, category string) ([]core.Product, error) {
	return c.query(ctx, "list by category",
		`SELECT `+productColumns+` FROM products WHERE category = ? ORDER BY popularity DESC, id`,
		strings.ToLower(category))
}

// ListPopular implements core.Catalog.
func (c *Catalog) ListPopular(ctx context.Context, n int) ([]core.Product, error) {
	if n <= 0 {
		n = -1
	}
	return c.query(ctx, "list popular",
		`SELECT `+productColumns+` FROM products ORDER BY popularity DESC, id LIMIT ?`, n)
}

// ListProducts implements core.Catalog.
func (c *Catalog) ListProducts(ctx context.Context) ([]core.Product, error) {
	return c.query(ctx, "list products",
		`SELECT `+productColumns+` FROM products ORDER BY popularity DESC, id`)
}

// ListCategories implements core.Catalog.
func (c *Catalog) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT DISTINCT category FROM products WHERE category != '' ORDER BY category`)
	if err != nil {
		return nil, unavailable(err, "list categories")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var cat string
		if err := rows.Scan(&cat); err != nil {
			return nil, unavailable(err, "scan category")
		}
		out = append(out, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err, "list categories")
	}
	return out, nil
}

// LoadRules reads the association rule table into memory.
func (c *Catalog) LoadRules(ctx context.Context) (*catalog.RuleSet, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT antecedent, consequent, confidence FROM association_rules ORDER BY antecedent, consequent`)
	if err != nil {
		return nil, errors.Wrap(err, "load rules")
	}
	defer rows.Close()

	var rules []core.AssociationRule
	for rows.Next() {
		var r core.AssociationRule
		if err := rows.Scan(&r.Antecedent, &r.Consequent, &r.Confidence); err != nil {
			return nil, errors.Wrap(err, "scan rule")
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "load rules")
	}
	return catalog.NewRuleSet(rules)
}

func (c *Catalog) query(ctx context.Context, op, q string, args ...any) ([]core.Product, error) {
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, unavailable(err, op)
	}
	defer rows.Close()

	var out []core.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, unavailable(err, op)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err, op)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(s scanner) (core.Product, error) {
	var (
		p     core.Product
		price string
	)
	if err := s.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &price, &p.Popularity, &p.EmbeddingHandle); err != nil {
		return core.Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return core.Product{}, errors.Wrapf(err, "product %s: invalid price", p.ID)
	}
	p.Price = d
	return p, nil
}

func unavailable(err error, op string) error {
	return errors.Wrap(fmt.Errorf("%w: %w", core.ErrCatalogUnavailable, err), op)
}
