package library

import (
	"fmt"
	"io/fs"

	"github.com/ncruces/go-sqlite3"
	"github.com/ncruces/go-sqlite3/ext/serdes"
)

// SeedSource fetches the bundled seed database blob. It is consulted on
// first run and whenever a loaded database fails the schema-currency check.
type SeedSource func() ([]byte, error)

// requiredTables is the schema-currency check list: a loaded database
// missing any of these is treated as stale and replaced by reseeding.
var requiredTables = []string{"books", "categories", "borrows", "settings"}

const schema = `
CREATE TABLE IF NOT EXISTS books (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    author TEXT NOT NULL,
    isbn TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    copies INTEGER NOT NULL DEFAULT 0 CHECK (copies >= 0)
);

CREATE TABLE IF NOT EXISTS categories (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL
);

-- No foreign key on book_id: closed loans are append-only history and
-- outlive the books they reference.
CREATE TABLE IF NOT EXISTS borrows (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    book_id INTEGER NOT NULL,
    borrower TEXT NOT NULL,
    date_out TEXT NOT NULL,
    due_date TEXT NOT NULL,
    return_date TEXT
);

CREATE INDEX IF NOT EXISTS idx_borrows_book ON borrows(book_id);
CREATE INDEX IF NOT EXISTS idx_borrows_open ON borrows(book_id) WHERE return_date IS NULL;

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// BuildSeed creates an empty database with the current schema and returns
// its serialized form. This is the default SeedSource.
func BuildSeed() ([]byte, error) {
	conn, err := sqlite3.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open seed database: %w", err)
	}
	defer conn.Close()

	if err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply seed schema: %w", err)
	}
	blob, err := serdes.Serialize(conn, "main")
	if err != nil {
		return nil, fmt.Errorf("serialize seed: %w", err)
	}
	return blob, nil
}

// FileSeed returns a SeedSource that reads a bundled database file, e.g.
// from an embed.FS or os.DirFS.
func FileSeed(fsys fs.FS, path string) SeedSource {
	return func() ([]byte, error) {
		blob, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("fetch seed %s: %w", path, err)
		}
		return blob, nil
	}
}
