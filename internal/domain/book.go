package domain

type Book struct {
	ID              int64  `db:"id" json:"id"`
	Title           string `db:"title" json:"title"`
	Author          string `db:"author" json:"author"`
	ISBN            string `db:"isbn" json:"isbn"`
	PublicationYear int    `db:"publication_year" json:"publication_year"`
	// Available is false exactly while an open borrow exists for this book.
	// Only the borrow workflow flips it; catalog edits leave it alone.
	Available bool `db:"available" json:"available"`
}
