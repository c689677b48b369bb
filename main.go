// Command shelfkeeper is the CLI bootstrap for the offline-first library
// catalogue. It wires config, the blob store, and the database engine
// together and exposes the repository operations as subcommands.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"shelfkeeper/config"
	"shelfkeeper/library"
	"shelfkeeper/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app carries the wired collaborators for the duration of one command.
type app struct {
	cfg   *config.Config
	store storage.BlobStore
	cat   *library.Catalogue
}

func (a *app) open() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	switch cfg.Storage.Backend {
	case "fs":
		a.store, err = storage.NewDirStore(cfg.Storage.DataDir)
	default:
		a.store, err = storage.OpenBadger(filepath.Join(cfg.Storage.DataDir, "blobs"))
	}
	if err != nil {
		return err
	}

	var seed library.SeedSource
	if path := cfg.Storage.SeedPath; path != "" {
		dir, file := filepath.Split(path)
		if dir == "" {
			dir = "."
		}
		seed = library.FileSeed(os.DirFS(dir), file)
	}

	engine, err := library.Open(library.Config{
		Store:  a.store,
		Seed:   seed,
		Logger: slog.Default(),
	})
	if err != nil {
		a.store.Close()
		return err
	}
	a.cat = library.NewCatalogue(engine)
	return nil
}

func (a *app) close() {
	if a.cat != nil {
		a.cat.Engine().Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var verbose bool

	root := &cobra.Command{
		Use:           "shelfkeeper",
		Short:         "Offline-first library catalogue manager",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return a.open()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log engine activity")

	root.AddCommand(
		newBookCmd(a),
		newCategoryCmd(a),
		newBorrowCmd(a),
		newReturnCmd(a),
		newLoansCmd(a),
		newStatsCmd(a),
		newBackupCmd(a),
		newRestoreCmd(a),
		newResetCmd(a),
		newSettingCmd(a),
	)
	return root
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// ------------------ book ------------------

func newBookCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "book", Short: "Manage catalogue entries"}

	var title, author, isbn, category string
	var copies int
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a book, merging copies into a matching title",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" {
				return fmt.Errorf("--title is required")
			}
			if copies < 1 {
				return fmt.Errorf("--copies must be at least 1")
			}
			out, err := a.cat.AddBook(title, author, isbn, category, copies)
			if err != nil {
				return err
			}
			if out.Merged {
				fmt.Printf("Merged %d copies into existing book %d\n", copies, out.BookID)
			} else {
				fmt.Printf("Added book %d\n", out.BookID)
			}
			return nil
		},
	}
	add.Flags().StringVar(&title, "title", "", "book title")
	add.Flags().StringVar(&author, "author", "", "author")
	add.Flags().StringVar(&isbn, "isbn", "", "ISBN (optional)")
	add.Flags().StringVar(&category, "category", "", "category name")
	add.Flags().IntVar(&copies, "copies", 1, "number of copies")

	var filterCategory, search string
	list := &cobra.Command{
		Use:   "list",
		Short: "List books",
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := a.cat.ListBooks(library.ListFilter{Category: filterCategory, Search: search})
			if err != nil {
				return err
			}
			fmt.Printf("%-5s %-35s %-25s %-15s %-20s %s\n", "ID", "Title", "Author", "ISBN", "Category", "Copies")
			for _, b := range books {
				fmt.Printf("%-5d %-35s %-25s %-15s %-20s %d\n", b.ID, b.Title, b.Author, b.ISBN, b.Category, b.Copies)
			}
			return nil
		},
	}
	list.Flags().StringVar(&filterCategory, "category", "", "filter by category")
	list.Flags().StringVar(&search, "search", "", "substring match on title/author/isbn")

	var uTitle, uAuthor, uCategory string
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update title, author, and category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			affected, err := a.cat.UpdateBook(id, uTitle, uAuthor, uCategory)
			if err != nil {
				return err
			}
			if affected == 0 {
				return fmt.Errorf("book %d not found", id)
			}
			fmt.Printf("Updated book %d\n", id)
			return nil
		},
	}
	update.Flags().StringVar(&uTitle, "title", "", "new title")
	update.Flags().StringVar(&uAuthor, "author", "", "new author")
	update.Flags().StringVar(&uCategory, "category", "", "new category")

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a book (blocked while loans are open)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.cat.DeleteBook(id); err != nil {
				return err
			}
			fmt.Printf("Deleted book %d\n", id)
			return nil
		},
	}

	cmd.AddCommand(add, list, update, remove)
	return cmd
}

// ------------------ category ------------------

func newCategoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "category", Short: "Manage categories"}

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.cat.AddCategory(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Added category %d\n", id)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List categories with book counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cats, err := a.cat.ListCategories()
			if err != nil {
				return err
			}
			fmt.Printf("%-5s %-30s %s\n", "ID", "Name", "Books")
			for _, c := range cats {
				fmt.Printf("%-5d %-30s %d\n", c.ID, c.Name, c.Books)
			}
			return nil
		},
	}

	rename := &cobra.Command{
		Use:   "rename <id> <new-name>",
		Short: "Rename a category and every book carrying it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.cat.RenameCategory(id, args[1]); err != nil {
				return err
			}
			fmt.Printf("Renamed category %d to %q\n", id, args[1])
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a category (blocked while books reference it)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.cat.DeleteCategory(id); err != nil {
				return err
			}
			fmt.Printf("Deleted category %d\n", id)
			return nil
		},
	}

	cmd.AddCommand(add, list, rename, remove)
	return cmd
}

// ------------------ circulation ------------------

func newBorrowCmd(a *app) *cobra.Command {
	var out, due string
	cmd := &cobra.Command{
		Use:   "borrow <book-id> <borrower>",
		Short: "Record a borrow and take one copy off the shelf",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if out == "" {
				out = time.Now().Format(library.DateFormat)
			}
			if due == "" {
				dateOut, err := time.Parse(library.DateFormat, out)
				if err != nil {
					return fmt.Errorf("invalid --out date %q", out)
				}
				due = dateOut.AddDate(0, 0, a.cfg.Loans.PeriodDays).Format(library.DateFormat)
			}
			loanID, err := a.cat.RecordBorrow(id, args[1], out, due)
			if err != nil {
				return err
			}
			fmt.Printf("Loan %d recorded, due %s\n", loanID, due)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "borrow date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&due, "due", "", "due date (default borrow date + loan period)")
	return cmd
}

func newReturnCmd(a *app) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "return <loan-id>",
		Short: "Close a loan and put the copy back on the shelf",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if date == "" {
				date = time.Now().Format(library.DateFormat)
			}
			if err := a.cat.RecordReturn(id, date); err != nil {
				return err
			}
			fmt.Printf("Loan %d returned on %s\n", id, date)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "return date (YYYY-MM-DD, default today)")
	return cmd
}

func newLoansCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "List loans (open by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			loans, err := a.cat.ListLoans(!all)
			if err != nil {
				return err
			}
			fmt.Printf("%-5s %-35s %-20s %-12s %-12s %s\n", "ID", "Title", "Borrower", "Out", "Due", "Returned")
			for _, l := range loans {
				returned := l.ReturnDate
				if returned == "" {
					returned = "-"
				}
				fmt.Printf("%-5d %-35s %-20s %-12s %-12s %s\n", l.ID, l.BookTitle, l.Borrower, l.DateOut, l.DueDate, returned)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include closed loans")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalogue and circulation summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.cat.Stats(time.Now())
			if err != nil {
				return err
			}
			fmt.Printf("Titles: %d  Copies: %d\n", s.TotalTitles, s.TotalCopies)
			fmt.Printf("Loans: %d open, %d closed, %d overdue\n", s.OpenLoans, s.ClosedLoans, s.Overdue)
			if len(s.TopBorrowed) > 0 {
				fmt.Println("Most borrowed:")
				for _, tc := range s.TopBorrowed {
					fmt.Printf("  %3d  %s\n", tc.Count, tc.Title)
				}
			}
			if len(s.DueToday) > 0 {
				fmt.Println("Due today:")
				for _, l := range s.DueToday {
					fmt.Printf("  %s (%s)\n", l.BookTitle, l.Borrower)
				}
			}
			return nil
		},
	}
}

// ------------------ backup / restore / reset ------------------

func newBackupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backup <file>",
		Short: "Write a snapshot of the database to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := a.cat.Engine().ExportSnapshot()
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], blob, 0o644); err != nil {
				return fmt.Errorf("write backup: %w", err)
			}
			fmt.Printf("Wrote %d bytes to %s\n", len(blob), args[0])
			return nil
		},
	}
}

func newRestoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <file>",
		Short: "Replace the database with a snapshot file (destructive)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read backup: %w", err)
			}
			if err := a.cat.Engine().RestoreSnapshot(blob); err != nil {
				return err
			}
			fmt.Println("Database restored")
			return nil
		},
	}
}

func newResetCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Wipe all books, categories, loans, and settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to wipe without --yes")
			}
			if err := a.cat.ResetToFresh(); err != nil {
				return err
			}
			fmt.Println("Catalogue reset")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the wipe")
	return cmd
}

// ------------------ settings ------------------

func newSettingCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "setting", Short: "Read and write settings"}

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, ok, err := a.cat.GetSetting(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("setting %q not set", args[0])
			}
			fmt.Println(value)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cat.SetSetting(args[0], args[1])
		},
	}

	cmd.AddCommand(get, set)
	return cmd
}
