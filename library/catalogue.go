package library

import (
	"fmt"
	"strings"
)

// Catalogue expresses the domain rules on top of the Engine. The engine
// knows nothing about books, loans, or copies; every invariant the raw
// statements cannot enforce lives here.
type Catalogue struct {
	e *Engine
}

// NewCatalogue wraps an opened engine.
func NewCatalogue(e *Engine) *Catalogue {
	return &Catalogue{e: e}
}

// Engine exposes the underlying engine for snapshot export/restore.
func (c *Catalogue) Engine() *Engine { return c.e }

// normalize folds case and trims whitespace for comparisons. The SQL-side
// equivalent is LOWER(TRIM(x)); the two must agree.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rowInt(row Row, col string) int64 {
	v, _ := row[col].(int64)
	return v
}

func rowString(row Row, col string) string {
	v, _ := row[col].(string)
	return v
}

// count runs a single-value COUNT-style query aliased as n.
func (c *Catalogue) count(query string, args ...any) (int64, error) {
	rows, err := c.e.Query(query, args...)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rowInt(rows[0], "n"), nil
}

// ------------------ Books ------------------

// AddBook inserts a new book, or merges into an existing one when the
// normalized (title, isbn) pair already exists, by incrementing its copies.
// Title/category emptiness and copies >= 1 are validated upstream.
func (c *Catalogue) AddBook(title, author, isbn, category string, copies int) (AddOutcome, error) {
	rows, err := c.e.Query(
		`SELECT id FROM books WHERE LOWER(TRIM(title)) = ? AND LOWER(TRIM(isbn)) = ?`,
		normalize(title), normalize(isbn),
	)
	if err != nil {
		return AddOutcome{}, err
	}

	if len(rows) > 0 {
		id := rowInt(rows[0], "id")
		if _, err := c.e.Execute(`UPDATE books SET copies = copies + ? WHERE id = ?`, copies, id); err != nil {
			return AddOutcome{}, err
		}
		return AddOutcome{BookID: id, Merged: true}, nil
	}

	res, err := c.e.Execute(
		`INSERT INTO books (title, author, isbn, category, copies) VALUES (?, ?, ?, ?, ?)`,
		strings.TrimSpace(title), strings.TrimSpace(author),
		strings.TrimSpace(isbn), strings.TrimSpace(category), copies,
	)
	if err != nil {
		return AddOutcome{}, err
	}
	return AddOutcome{BookID: res.InsertedID}, nil
}

// UpdateBook overwrites title, author, and category only; copies mutate
// solely through borrow/return. Returns the number of rows affected; zero
// means the id did not exist.
func (c *Catalogue) UpdateBook(id int64, title, author, category string) (int64, error) {
	res, err := c.e.Execute(
		`UPDATE books SET title = ?, author = ?, category = ? WHERE id = ?`,
		strings.TrimSpace(title), strings.TrimSpace(author), strings.TrimSpace(category), id,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// DeleteBook removes a book unless an open loan still references it.
// Closed loans referencing the id are kept as history.
func (c *Catalogue) DeleteBook(id int64) error {
	open, err := c.count(
		`SELECT COUNT(*) AS n FROM borrows WHERE book_id = ? AND return_date IS NULL`, id,
	)
	if err != nil {
		return err
	}
	if open > 0 {
		return fmt.Errorf("delete book %d: %w", id, ErrHasActiveLoans)
	}

	res, err := c.e.Execute(`DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete book %d: %w", id, ErrNotFound)
	}
	return nil
}

// GetBook fetches a single book by id.
func (c *Catalogue) GetBook(id int64) (*Book, error) {
	rows, err := c.e.Query(
		`SELECT id, title, author, isbn, category, copies FROM books WHERE id = ?`, id,
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("book %d: %w", id, ErrNotFound)
	}
	b := bookFromRow(rows[0])
	return &b, nil
}

// ListFilter narrows ListBooks. Category matches normalized; Search is a
// case-insensitive substring over title, author, and isbn.
type ListFilter struct {
	Category string
	Search   string
}

// ListBooks returns books ordered by title, optionally filtered.
func (c *Catalogue) ListBooks(filter ListFilter) ([]Book, error) {
	query := `SELECT id, title, author, isbn, category, copies FROM books`
	var clauses []string
	var args []any
	if filter.Category != "" {
		clauses = append(clauses, `LOWER(TRIM(category)) = ?`)
		args = append(args, normalize(filter.Category))
	}
	if filter.Search != "" {
		needle := "%" + normalize(filter.Search) + "%"
		clauses = append(clauses, `(LOWER(title) LIKE ? OR LOWER(author) LIKE ? OR LOWER(isbn) LIKE ?)`)
		args = append(args, needle, needle, needle)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY title COLLATE NOCASE, id`

	rows, err := c.e.Query(query, args...)
	if err != nil {
		return nil, err
	}
	books := make([]Book, 0, len(rows))
	for _, row := range rows {
		books = append(books, bookFromRow(row))
	}
	return books, nil
}

func bookFromRow(row Row) Book {
	return Book{
		ID:       rowInt(row, "id"),
		Title:    rowString(row, "title"),
		Author:   rowString(row, "author"),
		ISBN:     rowString(row, "isbn"),
		Category: rowString(row, "category"),
		Copies:   rowInt(row, "copies"),
	}
}

// ------------------ Categories ------------------

// AddCategory creates a category, rejecting names that collide under
// normalized comparison.
func (c *Catalogue) AddCategory(name string) (int64, error) {
	dup, err := c.count(
		`SELECT COUNT(*) AS n FROM categories WHERE LOWER(TRIM(name)) = ?`, normalize(name),
	)
	if err != nil {
		return 0, err
	}
	if dup > 0 {
		return 0, fmt.Errorf("category %q: %w", name, ErrDuplicateName)
	}

	res, err := c.e.Execute(`INSERT INTO categories (name) VALUES (?)`, strings.TrimSpace(name))
	if err != nil {
		return 0, err
	}
	return res.InsertedID, nil
}

// RenameCategory renames the category and, in the same transaction, every
// book whose category string matches the old name. Books reference
// categories by name, so the fan-out is what keeps the linkage intact.
func (c *Catalogue) RenameCategory(id int64, newName string) error {
	rows, err := c.e.Query(`SELECT name FROM categories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	oldName := rowString(rows[0], "name")

	dup, err := c.count(
		`SELECT COUNT(*) AS n FROM categories WHERE LOWER(TRIM(name)) = ? AND id != ?`,
		normalize(newName), id,
	)
	if err != nil {
		return err
	}
	if dup > 0 {
		return fmt.Errorf("category %q: %w", newName, ErrDuplicateName)
	}

	newName = strings.TrimSpace(newName)
	return c.e.Transaction(func(tx *Tx) error {
		if _, err := tx.Execute(`UPDATE categories SET name = ? WHERE id = ?`, newName, id); err != nil {
			return err
		}
		_, err := tx.Execute(
			`UPDATE books SET category = ? WHERE LOWER(TRIM(category)) = ?`,
			newName, normalize(oldName),
		)
		return err
	})
}

// DeleteCategory removes a category unless a book still carries its name.
func (c *Catalogue) DeleteCategory(id int64) error {
	rows, err := c.e.Query(`SELECT name FROM categories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	name := rowString(rows[0], "name")

	inUse, err := c.count(
		`SELECT COUNT(*) AS n FROM books WHERE LOWER(TRIM(category)) = ?`, normalize(name),
	)
	if err != nil {
		return err
	}
	if inUse > 0 {
		return fmt.Errorf("category %q: %w", name, ErrCategoryInUse)
	}

	_, err = c.e.Execute(`DELETE FROM categories WHERE id = ?`, id)
	return err
}

// ListCategories returns all categories with the number of books currently
// carrying each name.
func (c *Catalogue) ListCategories() ([]Category, error) {
	rows, err := c.e.Query(`
        SELECT c.id, c.name,
               (SELECT COUNT(*) FROM books b WHERE LOWER(TRIM(b.category)) = LOWER(TRIM(c.name))) AS books
        FROM categories c ORDER BY c.name COLLATE NOCASE`)
	if err != nil {
		return nil, err
	}
	cats := make([]Category, 0, len(rows))
	for _, row := range rows {
		cats = append(cats, Category{
			ID:    rowInt(row, "id"),
			Name:  rowString(row, "name"),
			Books: rowInt(row, "books"),
		})
	}
	return cats, nil
}

// ------------------ Settings ------------------

// GetSetting returns the value for key and whether it was present.
func (c *Catalogue) GetSetting(key string) (string, bool, error) {
	rows, err := c.e.Query(`SELECT value FROM settings WHERE key = ?`, key)
	if err != nil {
		return "", false, err
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rowString(rows[0], "value"), true, nil
}

// SetSetting inserts or overwrites a setting.
func (c *Catalogue) SetSetting(key, value string) error {
	_, err := c.e.Execute(`
        INSERT INTO settings (key, value) VALUES (?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}
