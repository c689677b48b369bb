// Command importbooks bulk-loads catalogue entries from a CSV file with
// columns: title, author, isbn, category, copies. Duplicate titles merge
// into the existing entry, so re-running an import is safe.
package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"shelfkeeper/config"
	"shelfkeeper/library"
	"shelfkeeper/storage"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: importbooks <books.csv>")
		os.Exit(1)
	}
	if err := run(os.Args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var store storage.BlobStore
	switch cfg.Storage.Backend {
	case "fs":
		store, err = storage.NewDirStore(cfg.Storage.DataDir)
	default:
		store, err = storage.OpenBadger(filepath.Join(cfg.Storage.DataDir, "blobs"))
	}
	if err != nil {
		return err
	}
	defer store.Close()

	engine, err := library.Open(library.Config{Store: store, Logger: slog.Default()})
	if err != nil {
		return err
	}
	defer engine.Close()
	cat := library.NewCatalogue(engine)

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	imported, merged, skipped := 0, 0, 0
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		line++

		// Tolerate a header row.
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "title") {
			continue
		}
		if len(record) < 2 {
			fmt.Printf("line %d: need at least title and author, skipping\n", line)
			skipped++
			continue
		}

		title := strings.TrimSpace(record[0])
		author := strings.TrimSpace(record[1])
		isbn, category := "", ""
		copies := 1
		if len(record) > 2 {
			isbn = strings.TrimSpace(record[2])
		}
		if len(record) > 3 {
			category = strings.TrimSpace(record[3])
		}
		if len(record) > 4 && strings.TrimSpace(record[4]) != "" {
			copies, err = strconv.Atoi(strings.TrimSpace(record[4]))
			if err != nil || copies < 1 {
				fmt.Printf("line %d: bad copies %q, skipping\n", line, record[4])
				skipped++
				continue
			}
		}
		if title == "" {
			fmt.Printf("line %d: empty title, skipping\n", line)
			skipped++
			continue
		}

		out, err := cat.AddBook(title, author, isbn, category, copies)
		if err != nil {
			return fmt.Errorf("line %d (%s): %w", line, title, err)
		}
		if out.Merged {
			merged++
		} else {
			imported++
		}
	}

	fmt.Printf("Import complete: %d added, %d merged, %d skipped\n", imported, merged, skipped)
	return nil
}
