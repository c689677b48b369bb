package library

import (
	"fmt"
	"time"
)

// resetMarkerKey is the persisted flag recorded by ResetToFresh.
const resetMarkerKey = "data_cleared"

// RecordBorrow opens a loan for the book and decrements its copies by one.
// Both effects commit together or not at all. Fails with ErrNotFound for an
// unknown book and ErrNoCopiesAvailable when nothing is on the shelf.
func (c *Catalogue) RecordBorrow(bookID int64, borrower, dateOut, dueDate string) (int64, error) {
	rows, err := c.e.Query(`SELECT copies FROM books WHERE id = ?`, bookID)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("borrow book %d: %w", bookID, ErrNotFound)
	}
	if rowInt(rows[0], "copies") < 1 {
		return 0, fmt.Errorf("borrow book %d: %w", bookID, ErrNoCopiesAvailable)
	}

	var loanID int64
	err = c.e.Transaction(func(tx *Tx) error {
		res, err := tx.Execute(
			`INSERT INTO borrows (book_id, borrower, date_out, due_date, return_date)
             VALUES (?, ?, ?, ?, NULL)`,
			bookID, borrower, dateOut, dueDate,
		)
		if err != nil {
			return err
		}
		loanID = res.InsertedID
		_, err = tx.Execute(`UPDATE books SET copies = copies - 1 WHERE id = ?`, bookID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return loanID, nil
}

// RecordReturn closes an open loan and increments the book's copies by one,
// atomically. The loan must exist and still be open: returning a closed
// loan fails with ErrAlreadyReturned, so copies can never be incremented
// twice for one borrow. The book id is taken from the loan row itself; a
// loan whose book was since deleted closes without touching any book.
func (c *Catalogue) RecordReturn(loanID int64, returnDate string) error {
	rows, err := c.e.Query(`SELECT book_id, return_date FROM borrows WHERE id = ?`, loanID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("return loan %d: %w", loanID, ErrNotFound)
	}
	if rows[0]["return_date"] != nil {
		return fmt.Errorf("return loan %d: %w", loanID, ErrAlreadyReturned)
	}
	bookID := rowInt(rows[0], "book_id")

	return c.e.Transaction(func(tx *Tx) error {
		if _, err := tx.Execute(`UPDATE borrows SET return_date = ? WHERE id = ?`, returnDate, loanID); err != nil {
			return err
		}
		_, err := tx.Execute(`UPDATE books SET copies = copies + 1 WHERE id = ?`, bookID)
		return err
	})
}

// ListLoans returns loans newest first, joined with book titles. Titles of
// deleted books come back empty. With openOnly set, closed loans are
// filtered out.
func (c *Catalogue) ListLoans(openOnly bool) ([]Loan, error) {
	query := `
        SELECT l.id, l.book_id, COALESCE(b.title, '') AS book_title,
               l.borrower, l.date_out, l.due_date, COALESCE(l.return_date, '') AS return_date
        FROM borrows l LEFT JOIN books b ON b.id = l.book_id`
	if openOnly {
		query += ` WHERE l.return_date IS NULL`
	}
	query += ` ORDER BY l.id DESC`

	rows, err := c.e.Query(query)
	if err != nil {
		return nil, err
	}
	loans := make([]Loan, 0, len(rows))
	for _, row := range rows {
		loans = append(loans, loanFromRow(row))
	}
	return loans, nil
}

func loanFromRow(row Row) Loan {
	return Loan{
		ID:         rowInt(row, "id"),
		BookID:     rowInt(row, "book_id"),
		BookTitle:  rowString(row, "book_title"),
		Borrower:   rowString(row, "borrower"),
		DateOut:    rowString(row, "date_out"),
		DueDate:    rowString(row, "due_date"),
		ReturnDate: rowString(row, "return_date"),
	}
}

// Stats aggregates the dashboard summary as of today. Everything is
// computed fresh; the dataset is single-library scale.
func (c *Catalogue) Stats(today time.Time) (*Stats, error) {
	day := today.Format(DateFormat)
	s := &Stats{}

	var err error
	if s.TotalTitles, err = c.count(`SELECT COUNT(*) AS n FROM books`); err != nil {
		return nil, err
	}
	if s.TotalCopies, err = c.count(`SELECT COALESCE(SUM(copies), 0) AS n FROM books`); err != nil {
		return nil, err
	}
	if s.OpenLoans, err = c.count(`SELECT COUNT(*) AS n FROM borrows WHERE return_date IS NULL`); err != nil {
		return nil, err
	}
	if s.ClosedLoans, err = c.count(`SELECT COUNT(*) AS n FROM borrows WHERE return_date IS NOT NULL`); err != nil {
		return nil, err
	}
	if s.Overdue, err = c.count(
		`SELECT COUNT(*) AS n FROM borrows WHERE return_date IS NULL AND due_date < ?`, day,
	); err != nil {
		return nil, err
	}

	rows, err := c.e.Query(`
        SELECT COALESCE(b.title, '') AS title, COUNT(*) AS n
        FROM borrows l LEFT JOIN books b ON b.id = l.book_id
        GROUP BY l.book_id
        ORDER BY n DESC, title COLLATE NOCASE
        LIMIT 5`)
	if err != nil {
		return nil, err
	}
	s.TopBorrowed = make([]TitleCount, 0, len(rows))
	for _, row := range rows {
		s.TopBorrowed = append(s.TopBorrowed, TitleCount{
			Title: rowString(row, "title"),
			Count: rowInt(row, "n"),
		})
	}

	rows, err = c.e.Query(`
        SELECT l.id, l.book_id, COALESCE(b.title, '') AS book_title,
               l.borrower, l.date_out, l.due_date, '' AS return_date
        FROM borrows l LEFT JOIN books b ON b.id = l.book_id
        WHERE l.return_date IS NULL AND l.due_date = ?
        ORDER BY l.id`, day)
	if err != nil {
		return nil, err
	}
	s.DueToday = make([]Loan, 0, len(rows))
	for _, row := range rows {
		s.DueToday = append(s.DueToday, loanFromRow(row))
	}
	return s, nil
}

// ResetToFresh wipes every loan, book, category, and setting in one
// transaction, then records a persisted marker that the reset happened.
// Irreversible and all-or-nothing.
func (c *Catalogue) ResetToFresh() error {
	return c.e.Transaction(func(tx *Tx) error {
		for _, stmt := range []string{
			`DELETE FROM borrows`,
			`DELETE FROM books`,
			`DELETE FROM categories`,
			`DELETE FROM settings`,
		} {
			if _, err := tx.Execute(stmt); err != nil {
				return err
			}
		}
		_, err := tx.Execute(`INSERT INTO settings (key, value) VALUES (?, ?)`, resetMarkerKey, "true")
		return err
	})
}
