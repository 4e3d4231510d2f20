package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/ec-checkout/internal/apperr"
	"github.com/example/ec-checkout/internal/catalog"
	"github.com/shopspring/decimal"
)

// Guest is the identity used for requests without a verified user.
const Guest = "guest"

var (
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	ErrInvalidProduct  = errors.New("product ID is required")
)

type Line struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Quantity  int             `json:"quantity"`
}

// Store keeps one cart per identity.
type Store interface {
	Get(ctx context.Context, identity string) ([]Line, error)
	Save(ctx context.Context, identity string, lines []Line) error
	Clear(ctx context.Context, identity string) error
}

// ProductLookup resolves catalog entries when items are added.
type ProductLookup interface {
	Get(id string) (catalog.Product, bool)
}

type Summary struct {
	Items       []Line `json:"items"`
	TotalItems  int    `json:"totalItems"`
	TotalAmount string `json:"totalAmount"`
}

type Service struct {
	store    Store
	products ProductLookup
}

func NewService(store Store, products ProductLookup) *Service {
	return &Service{store: store, products: products}
}

func (s *Service) load(ctx context.Context, identity string) ([]Line, error) {
	lines, err := s.store.Get(ctx, identity)
	if err != nil {
		return nil, apperr.Persistence("failed to load cart", err)
	}
	return lines, nil
}

func (s *Service) save(ctx context.Context, identity string, lines []Line) error {
	if err := s.store.Save(ctx, identity, lines); err != nil {
		return apperr.Persistence("failed to save cart", err)
	}
	return nil
}

// Add puts quantity units of productID in the cart, merging with an existing line.
func (s *Service) Add(ctx context.Context, identity, productID string, quantity int) ([]Line, error) {
	if productID == "" {
		return nil, apperr.Wrap(apperr.KindValidation, ErrInvalidProduct)
	}
	if quantity <= 0 {
		return nil, apperr.Wrap(apperr.KindValidation, ErrInvalidQuantity)
	}
	product, ok := s.products.Get(productID)
	if !ok {
		return nil, apperr.Wrap(apperr.KindNotFound, catalog.ErrProductNotFound)
	}

	lines, err := s.load(ctx, identity)
	if err != nil {
		return nil, err
	}

	merged := false
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		lines = append(lines, Line{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Image:     product.Image,
			Quantity:  quantity,
		})
	}

	if err := s.save(ctx, identity, lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// Remove drops the line for productID. Removing an absent line is a no-op.
func (s *Service) Remove(ctx context.Context, identity, productID string) ([]Line, error) {
	lines, err := s.load(ctx, identity)
	if err != nil {
		return nil, err
	}

	kept := make([]Line, 0, len(lines))
	for _, line := range lines {
		if line.ProductID != productID {
			kept = append(kept, line)
		}
	}
	if len(kept) == len(lines) {
		return lines, nil
	}

	if err := s.save(ctx, identity, kept); err != nil {
		return nil, err
	}
	return kept, nil
}

// Update sets the quantity of an existing line. Unknown lines are left alone.
func (s *Service) Update(ctx context.Context, identity, productID string, quantity int) ([]Line, error) {
	if quantity <= 0 {
		return nil, apperr.Wrap(apperr.KindValidation, ErrInvalidQuantity)
	}

	lines, err := s.load(ctx, identity)
	if err != nil {
		return nil, err
	}

	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity = quantity
			if err := s.save(ctx, identity, lines); err != nil {
				return nil, err
			}
			return lines, nil
		}
	}
	return lines, nil
}

func (s *Service) Get(ctx context.Context, identity string) (*Summary, error) {
	lines, err := s.load(ctx, identity)
	if err != nil {
		return nil, err
	}
	if lines == nil {
		lines = []Line{}
	}
	return Summarize(lines), nil
}

func (s *Service) Clear(ctx context.Context, identity string) error {
	if err := s.store.Clear(ctx, identity); err != nil {
		return apperr.Persistence(fmt.Sprintf("failed to clear cart for %s", identity), err)
	}
	return nil
}

// Summarize totals item count and amount, the amount fixed to two decimals.
func Summarize(lines []Line) *Summary {
	total := decimal.Zero
	count := 0
	for _, line := range lines {
		count += line.Quantity
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return &Summary{
		Items:       lines,
		TotalItems:  count,
		TotalAmount: total.StringFixed(2),
	}
}
