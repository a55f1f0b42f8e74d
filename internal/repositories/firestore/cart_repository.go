package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/hometech/api/internal/domain"
	pfirestore "github.com/hometech/api/internal/platform/firestore"
)

const (
	cartCollection     = "carts"
	cartLineCollection = "cartLines"
)

// CartRepository persists cart headers keyed by owner and cart lines as a flat collection.
type CartRepository struct {
	carts *pfirestore.BaseRepository[cartDocument]
	lines *pfirestore.BaseRepository[cartLineDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		carts: pfirestore.NewBaseRepository[cartDocument](provider, cartCollection),
		lines: pfirestore.NewBaseRepository[cartLineDocument](provider, cartLineCollection),
	}, nil
}

// FindByUser loads the cart owned by userID. The user ID doubles as the document identifier.
func (r *CartRepository) FindByUser(ctx context.Context, userID string) (domain.Cart, error) {
	doc, err := r.carts.Get(ctx, strings.TrimSpace(userID))
	if err != nil {
		return domain.Cart{}, err
	}
	return domain.Cart{
		ID:        doc.Data.CartID,
		UserID:    doc.ID,
		CreatedAt: doc.Data.CreatedAt.UTC(),
		UpdatedAt: doc.Data.UpdatedAt.UTC(),
	}, nil
}

// Create stores a new cart header and reports a conflict when the user already owns one.
func (r *CartRepository) Create(ctx context.Context, cart domain.Cart) error {
	return r.carts.Create(ctx, strings.TrimSpace(cart.UserID), cartDocument{
		CartID:    cart.ID,
		CreatedAt: cart.CreatedAt.UTC(),
		UpdatedAt: cart.UpdatedAt.UTC(),
	})
}

// ListLines returns the lines of a cart in insertion order.
func (r *CartRepository) ListLines(ctx context.Context, cartID string) ([]domain.CartLine, error) {
	docs, err := r.lines.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("cartId", "==", cartID).OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	lines := make([]domain.CartLine, 0, len(docs))
	for _, doc := range docs {
		lines = append(lines, toDomainCartLine(doc))
	}
	return lines, nil
}

// FindLine loads a single cart line.
func (r *CartRepository) FindLine(ctx context.Context, lineID string) (domain.CartLine, error) {
	doc, err := r.lines.Get(ctx, lineID)
	if err != nil {
		return domain.CartLine{}, err
	}
	return toDomainCartLine(doc), nil
}

// FindLineByProduct loads the line holding productID inside cartID.
func (r *CartRepository) FindLineByProduct(ctx context.Context, cartID string, productID string) (domain.CartLine, error) {
	docs, err := r.lines.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("cartId", "==", cartID).Where("productId", "==", productID).Limit(1)
	})
	if err != nil {
		return domain.CartLine{}, err
	}
	if len(docs) == 0 {
		return domain.CartLine{}, notFoundError("cart_lines.find_by_product")
	}
	return toDomainCartLine(docs[0]), nil
}

// InsertLine creates a new cart line.
func (r *CartRepository) InsertLine(ctx context.Context, line domain.CartLine) error {
	return r.lines.Create(ctx, line.ID, fromDomainCartLine(line))
}

// UpdateLine overwrites an existing cart line.
func (r *CartRepository) UpdateLine(ctx context.Context, line domain.CartLine) error {
	return r.lines.Update(ctx, line.ID, []firestore.Update{
		{Path: "quantity", Value: line.Quantity},
		{Path: "updatedAt", Value: line.UpdatedAt.UTC()},
	}, firestore.Exists)
}

// DeleteLine removes a cart line.
func (r *CartRepository) DeleteLine(ctx context.Context, lineID string) error {
	return r.lines.Delete(ctx, lineID, firestore.Exists)
}

// ClearLines deletes every listed line with an existence precondition. Inside a transaction a
// missing line aborts the commit.
func (r *CartRepository) ClearLines(ctx context.Context, _ string, lineIDs []string) error {
	for _, id := range lineIDs {
		if err := r.lines.Delete(ctx, id, firestore.Exists); err != nil {
			return err
		}
	}
	return nil
}

type cartDocument struct {
	CartID    string    `firestore:"cartId"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type cartLineDocument struct {
	CartID    string    `firestore:"cartId"`
	ProductID string    `firestore:"productId"`
	Quantity  int       `firestore:"quantity"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func fromDomainCartLine(line domain.CartLine) cartLineDocument {
	return cartLineDocument{
		CartID:    line.CartID,
		ProductID: line.ProductID,
		Quantity:  line.Quantity,
		CreatedAt: line.CreatedAt.UTC(),
		UpdatedAt: line.UpdatedAt.UTC(),
	}
}

func toDomainCartLine(doc pfirestore.Document[cartLineDocument]) domain.CartLine {
	return domain.CartLine{
		ID:        doc.ID,
		CartID:    doc.Data.CartID,
		ProductID: doc.Data.ProductID,
		Quantity:  doc.Data.Quantity,
		CreatedAt: doc.Data.CreatedAt.UTC(),
		UpdatedAt: doc.Data.UpdatedAt.UTC(),
	}
}
