package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // cgo-free driver registered as "sqlite"

	"reciperag/internal/adapter/analyzer"
	"reciperag/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS ingredients (
	id             INTEGER PRIMARY KEY,
	name           TEXT NOT NULL,
	canonical_name TEXT NOT NULL,
	category       TEXT NOT NULL DEFAULT '',
	data_source    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_ingredients_canonical ON ingredients(canonical_name);

CREATE TABLE IF NOT EXISTS recipes (
	id        INTEGER PRIMARY KEY,
	source_id TEXT,
	title     TEXT NOT NULL DEFAULT '',
	text      TEXT NOT NULL DEFAULT '',
	tags      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS recipe_ingredients (
	recipe_id            INTEGER NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
	raw_ingredient       TEXT NOT NULL,
	canonical_ingredient TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_recipe_ingredients_canonical ON recipe_ingredients(canonical_ingredient);
CREATE INDEX IF NOT EXISTS idx_recipe_ingredients_recipe ON recipe_ingredients(recipe_id);
`

// maxParams bounds the number of ids bound into one IN clause.
const maxParams = 500

// SQLiteCatalog is the relational store of ingredients and recipes.
type SQLiteCatalog struct {
	db   *sql.DB
	path string
}

// Open opens the catalog at path and applies the schema.
// Pragmas go in the DSN so that every pooled connection gets them.
func Open(path string) (*SQLiteCatalog, error) {
	pragmas := []string{
		"journal_mode(WAL)",
		"synchronous(NORMAL)",
		"foreign_keys(1)",
		"busy_timeout(5000)",
	}
	dsn := "file:" + path + "?_pragma=" + strings.Join(pragmas, "&_pragma=")

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog schema failed: %w", err)
	}

	return &SQLiteCatalog{db: db, path: path}, nil
}

func (c *SQLiteCatalog) Close() error { return c.db.Close() }
func (c *SQLiteCatalog) Path() string { return c.path }

func (c *SQLiteCatalog) ListIngredients(ctx context.Context) ([]domain.Ingredient, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, name, canonical_name, category, data_source FROM ingredients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	return scanIngredients(rows)
}

func (c *SQLiteCatalog) ListRecipes(ctx context.Context) ([]domain.Recipe, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, title, text, tags FROM recipes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	return scanRecipes(rows)
}

func (c *SQLiteCatalog) Count(ctx context.Context, kind domain.Kind) (int, error) {
	var table string
	switch kind {
	case domain.KindIngredient:
		table = "ingredients"
	case domain.KindRecipe:
		table = "recipes"
	default:
		return 0, fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
	}

	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func (c *SQLiteCatalog) IngredientsByIDs(ctx context.Context, ids []int64) ([]domain.Ingredient, error) {
	var out []domain.Ingredient
	err := inChunks(ids, func(chunk []int64) error {
		rows, err := c.db.QueryContext(ctx,
			`SELECT id, name, canonical_name, category, data_source FROM ingredients WHERE id IN (`+placeholders(len(chunk))+`)`,
			args(chunk)...)
		if err != nil {
			return err
		}
		found, err := scanIngredients(rows)
		out = append(out, found...)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ingredients by ids: %w", err)
	}
	return out, nil
}

func (c *SQLiteCatalog) RecipesByIDs(ctx context.Context, ids []int64) ([]domain.Recipe, error) {
	var out []domain.Recipe
	err := inChunks(ids, func(chunk []int64) error {
		rows, err := c.db.QueryContext(ctx,
			`SELECT id, title, text, tags FROM recipes WHERE id IN (`+placeholders(len(chunk))+`)`,
			args(chunk)...)
		if err != nil {
			return err
		}
		found, err := scanRecipes(rows)
		out = append(out, found...)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("recipes by ids: %w", err)
	}
	return out, nil
}

// RecipeIDsForIngredients joins ingredients to recipe lines on the
// canonical name. Ingredients with an empty canonical name match nothing.
func (c *SQLiteCatalog) RecipeIDsForIngredients(ctx context.Context, ingredientIDs []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64)
	err := inChunks(ingredientIDs, func(chunk []int64) error {
		rows, err := c.db.QueryContext(ctx, `
			SELECT DISTINCT i.id, ri.recipe_id
			FROM ingredients i
			JOIN recipe_ingredients ri ON ri.canonical_ingredient = i.canonical_name
			WHERE i.canonical_name <> '' AND i.id IN (`+placeholders(len(chunk))+`)
			ORDER BY i.id, ri.recipe_id`,
			args(chunk)...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var ingID, recipeID int64
			if err := rows.Scan(&ingID, &recipeID); err != nil {
				return err
			}
			out[ingID] = append(out[ingID], recipeID)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("recipe ids for ingredients: %w", err)
	}
	return out, nil
}

// InsertIngredient stores ing, deriving its canonical name when empty.
// A zero ID lets the database assign one.
func (c *SQLiteCatalog) InsertIngredient(ctx context.Context, ing domain.Ingredient) (int64, error) {
	if ing.CanonicalName == "" {
		ing.CanonicalName = analyzer.CanonicalizeName(ing.Name)
	}

	res, err := c.db.ExecContext(ctx,
		`INSERT INTO ingredients (id, name, canonical_name, category, data_source) VALUES (?, ?, ?, ?, ?)`,
		nullID(ing.ID), ing.Name, ing.CanonicalName, ing.Category, ing.Source)
	if err != nil {
		return 0, fmt.Errorf("insert ingredient %q: %w", ing.Name, err)
	}
	return res.LastInsertId()
}

// InsertRecipe stores recipe and its ingredient lines in one transaction.
func (c *SQLiteCatalog) InsertRecipe(ctx context.Context, recipe domain.Recipe, lines []domain.RecipeIngredient) (int64, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO recipes (id, title, text, tags) VALUES (?, ?, ?, ?)`,
		nullID(recipe.ID), recipe.Title, recipe.Body, recipe.Tags)
	if err != nil {
		return 0, fmt.Errorf("insert recipe %q: %w", recipe.Title, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO recipe_ingredients (recipe_id, raw_ingredient, canonical_ingredient) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, line := range lines {
		canonical := line.Canonical
		if canonical == "" {
			canonical = analyzer.CanonicalizeName(line.Raw)
		}
		if _, err := stmt.ExecContext(ctx, id, line.Raw, canonical); err != nil {
			return 0, fmt.Errorf("insert ingredient line %q: %w", line.Raw, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// DeleteRecipe removes a recipe and its ingredient lines. Stored embeddings
// are left behind as orphans.
func (c *SQLiteCatalog) DeleteRecipe(ctx context.Context, id int64) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM recipe_ingredients WHERE recipe_id = ?`, id); err != nil {
		return fmt.Errorf("delete recipe %d lines: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM recipes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete recipe %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Kind: domain.KindRecipe, ID: id}
	}
	return tx.Commit()
}

func scanIngredients(rows *sql.Rows) ([]domain.Ingredient, error) {
	defer rows.Close()

	var out []domain.Ingredient
	for rows.Next() {
		var ing domain.Ingredient
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.CanonicalName, &ing.Category, &ing.Source); err != nil {
			return nil, err
		}
		out = append(out, ing)
	}
	return out, rows.Err()
}

func scanRecipes(rows *sql.Rows) ([]domain.Recipe, error) {
	defer rows.Close()

	var out []domain.Recipe
	for rows.Next() {
		var r domain.Recipe
		if err := rows.Scan(&r.ID, &r.Title, &r.Body, &r.Tags); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func inChunks(ids []int64, fn func([]int64) error) error {
	for start := 0; start < len(ids); start += maxParams {
		end := min(start+maxParams, len(ids))
		if err := fn(ids[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func args(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
