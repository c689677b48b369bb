package library

// DateFormat is the ISO day format used for every date column. Dates are
// stored as TEXT, so chronological order equals lexicographic order.
const DateFormat = "2006-01-02"

// Book represents one title in the catalogue. Copies counts the physical
// units currently on the shelf; it is mutated only through borrow/return.
type Book struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	ISBN     string `json:"isbn"`
	Category string `json:"category"`
	Copies   int64  `json:"copies"`
}

// Category is a free-text label books reference by name, not by id. The
// rename cascade and delete guard in Catalogue keep the linkage coherent.
type Category struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Books int64  `json:"books"` // books currently carrying this name
}

// Loan is one borrow record. ReturnDate is empty while the loan is open;
// once set it is never cleared. Loans are append-only history and survive
// deletion of the book they reference.
type Loan struct {
	ID         int64  `json:"id"`
	BookID     int64  `json:"book_id"`
	BookTitle  string `json:"book_title"`
	Borrower   string `json:"borrower"`
	DateOut    string `json:"date_out"`
	DueDate    string `json:"due_date"`
	ReturnDate string `json:"return_date,omitempty"`
}

// AddOutcome reports whether AddBook created a new row or merged into an
// existing title.
type AddOutcome struct {
	BookID int64
	Merged bool
}

// TitleCount pairs a title with its historical borrow count.
type TitleCount struct {
	Title string `json:"title"`
	Count int64  `json:"count"`
}

// Stats is the summary surfaced on the dashboard. All counts are computed
// fresh on each call.
type Stats struct {
	TotalTitles int64        `json:"total_titles"`
	TotalCopies int64        `json:"total_copies"`
	OpenLoans   int64        `json:"open_loans"`
	ClosedLoans int64        `json:"closed_loans"`
	Overdue     int64        `json:"overdue"`
	TopBorrowed []TitleCount `json:"top_borrowed"`
	DueToday    []Loan       `json:"due_today"`
}
