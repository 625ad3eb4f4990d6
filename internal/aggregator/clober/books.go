package clober

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"swapquote/internal/currency"
	"swapquote/internal/subgraph"
)

// Book is one order book; market orders spend Base to receive Quote.
type Book struct {
	ID       *big.Int
	Base     currency.Currency
	Quote    currency.Currency
	UnitSize *big.Int
}

// BookSource lists the order books of a deployment.
type BookSource interface {
	Books(ctx context.Context) ([]Book, error)
}

const booksQuery = `query getBooks($first: Int!) {
  books(first: $first, orderBy: id) {
    id
    unitSize
    base { id name symbol decimals }
    quote { id name symbol decimals }
  }
}`

type subgraphToken struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals string `json:"decimals"`
}

type subgraphBook struct {
	ID       string        `json:"id"`
	UnitSize string        `json:"unitSize"`
	Base     subgraphToken `json:"base"`
	Quote    subgraphToken `json:"quote"`
}

// SubgraphBooks reads the book catalog from the protocol subgraph and keeps
// it for TTL.
type SubgraphBooks struct {
	client *subgraph.Client
	ttl    time.Duration
	limit  int

	mu        sync.Mutex
	books     []Book
	fetchedAt time.Time
	now       func() time.Time
}

func NewSubgraphBooks(client *subgraph.Client, ttl time.Duration) *SubgraphBooks {
	return &SubgraphBooks{client: client, ttl: ttl, limit: 1000, now: time.Now}
}

func (s *SubgraphBooks) Books(ctx context.Context) ([]Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.books != nil && s.now().Sub(s.fetchedAt) < s.ttl {
		return s.books, nil
	}

	var out struct {
		Books []subgraphBook `json:"books"`
	}
	if err := s.client.Query(ctx, booksQuery, map[string]any{"first": s.limit}, &out); err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	books := make([]Book, 0, len(out.Books))
	for _, b := range out.Books {
		book, err := b.toBook()
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	s.books, s.fetchedAt = books, s.now()
	return books, nil
}

func (b subgraphBook) toBook() (Book, error) {
	id, ok := new(big.Int).SetString(b.ID, 10)
	if !ok {
		return Book{}, fmt.Errorf("book id %q", b.ID)
	}
	unit, ok := new(big.Int).SetString(b.UnitSize, 10)
	if !ok {
		unit = big.NewInt(1)
	}
	base, err := b.Base.toCurrency()
	if err != nil {
		return Book{}, fmt.Errorf("book %s base: %w", b.ID, err)
	}
	quote, err := b.Quote.toCurrency()
	if err != nil {
		return Book{}, fmt.Errorf("book %s quote: %w", b.ID, err)
	}
	return Book{ID: id, Base: base, Quote: quote, UnitSize: unit}, nil
}

func (t subgraphToken) toCurrency() (currency.Currency, error) {
	if !common.IsHexAddress(t.ID) {
		return currency.Currency{}, fmt.Errorf("address %q", t.ID)
	}
	dec, err := strconv.ParseUint(t.Decimals, 10, 8)
	if err != nil {
		return currency.Currency{}, fmt.Errorf("decimals %q: %w", t.Decimals, err)
	}
	return currency.New(t.ID, t.Name, t.Symbol, uint8(dec)), nil
}
