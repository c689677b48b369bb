package library

import "errors"

// Domain errors. Callers test these with errors.Is; lower layers wrap them
// with context via fmt.Errorf("...: %w", err).
var (
	// ErrNotInitialized is returned when the engine is used after Close
	// (or otherwise without a live database instance).
	ErrNotInitialized = errors.New("library: engine not initialized")

	// ErrNotFound is returned when a referenced book, loan, or category
	// id does not resolve to a row.
	ErrNotFound = errors.New("library: not found")

	// ErrDuplicateName is returned when a category add/rename collides
	// with an existing name under normalized comparison.
	ErrDuplicateName = errors.New("library: duplicate category name")

	// ErrNoCopiesAvailable is returned by RecordBorrow when the book has
	// no copies left on the shelf.
	ErrNoCopiesAvailable = errors.New("library: no copies available")

	// ErrHasActiveLoans blocks deleting a book while an open loan
	// references it.
	ErrHasActiveLoans = errors.New("library: book has active loans")

	// ErrCategoryInUse blocks deleting a category while a book still
	// carries its name.
	ErrCategoryInUse = errors.New("library: category in use")

	// ErrAlreadyReturned is returned by RecordReturn for a loan that is
	// already closed.
	ErrAlreadyReturned = errors.New("library: loan already returned")

	// ErrSnapshotParse is returned when an uploaded backup blob cannot be
	// parsed as a database.
	ErrSnapshotParse = errors.New("library: snapshot not a valid database")
)
