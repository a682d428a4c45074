package services

import (
	"database/sql"
	"errors"

	"librarium/internal/domain"
	"librarium/internal/repos"
)

// CatalogService covers book management. It never touches the available
// flag; that belongs to the borrow workflow.
type CatalogService struct {
	Books *repos.BookRepo
}

func NewCatalogService(books *repos.BookRepo) *CatalogService {
	return &CatalogService{Books: books}
}

type BookPage struct {
	Items   []domain.Book
	Total   int
	Page    int
	PerPage int
}

// List searches and paginates the catalog, ordered by title.
func (s *CatalogService) List(term string, page, perPage int) (BookPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 10
	}
	total, err := s.Books.Count(term)
	if err != nil {
		return BookPage{}, err
	}
	items, err := s.Books.Search(term, perPage, (page-1)*perPage)
	if err != nil {
		return BookPage{}, err
	}
	if items == nil {
		items = []domain.Book{}
	}
	return BookPage{Items: items, Total: total, Page: page, PerPage: perPage}, nil
}

func (s *CatalogService) Get(id int64) (domain.Book, error) {
	b, err := s.Books.Get(id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Book{}, ErrBookNotFound
	}
	return b, err
}

type BookInput struct {
	Title           string
	Author          string
	ISBN            string
	PublicationYear int
}

func (s *CatalogService) Create(in BookInput) (domain.Book, error) {
	b := domain.Book{Title: in.Title, Author: in.Author, ISBN: in.ISBN, PublicationYear: in.PublicationYear}
	if err := s.Books.Create(&b); err != nil {
		return domain.Book{}, err
	}
	return b, nil
}

func (s *CatalogService) Update(id int64, in BookInput) (domain.Book, error) {
	b, err := s.Get(id)
	if err != nil {
		return domain.Book{}, err
	}
	b.Title, b.Author, b.ISBN, b.PublicationYear = in.Title, in.Author, in.ISBN, in.PublicationYear
	if err := s.Books.Update(b); err != nil {
		return domain.Book{}, err
	}
	return b, nil
}

func (s *CatalogService) Delete(id int64) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	return s.Books.Delete(id)
}
