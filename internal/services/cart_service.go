package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/hometech/api/internal/domain"
	"github.com/hometech/api/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: cart repository is required")
	errCartCatalogRequired    = errors.New("cart service: catalog repository is required")
	errCartUsersRequired      = errors.New("cart service: user repository is required")
)

// CartServiceDeps wires the repositories used by cart operations.
type CartServiceDeps struct {
	Carts       repositories.CartRepository
	Catalog     repositories.CatalogRepository
	Users       repositories.UserRepository
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type cartService struct {
	carts   repositories.CartRepository
	catalog repositories.CatalogRepository
	users   repositories.UserRepository
	unit    repositories.UnitOfWork
	now     func() time.Time
	newID   func() string
	logger  func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Catalog == nil {
		return nil, errCartCatalogRequired
	}
	if deps.Users == nil {
		return nil, errCartUsersRequired
	}
	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &cartService{
		carts:   deps.Carts,
		catalog: deps.Catalog,
		users:   deps.Users,
		unit:    unit,
		now:     func() time.Time { return clock().UTC() },
		newID:   idGen,
		logger:  logger,
	}, nil
}

// MaxLineQuantity caps a single cart line.
const MaxLineQuantity = 999

func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (CartItem, error) {
	userID := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if userID == "" || productID == "" {
		return CartItem{}, ErrInvalidInput
	}
	if cmd.Quantity < 1 {
		return CartItem{}, ErrInvalidQuantity
	}
	if cmd.Quantity > MaxLineQuantity {
		return CartItem{}, ErrQuantityLimit
	}

	var item CartItem
	err := s.unit.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.users.FindByID(txCtx, userID); err != nil {
			return mapRepositoryError(err, ErrCustomerNotFound, nil)
		}
		product, err := s.catalog.FindProduct(txCtx, productID)
		if err != nil {
			return mapRepositoryError(err, ErrProductNotFound, nil)
		}
		if product.Hidden {
			return ErrProductNotFound
		}

		now := s.now()
		cart, err := s.carts.FindByUser(txCtx, userID)
		created := false
		switch {
		case isRepoNotFound(err):
			cart = domain.Cart{ID: s.newID(), UserID: userID, CreatedAt: now, UpdatedAt: now}
			if err := s.carts.Create(txCtx, cart); err != nil {
				return mapRepositoryError(err, nil, ErrCartConflict)
			}
			created = true
		case err != nil:
			return mapRepositoryError(err, nil, nil)
		}

		// A freshly created cart has no lines, so the lookup is skipped to keep reads ahead of writes.
		line := domain.CartLine{}
		found := false
		if !created {
			line, err = s.carts.FindLineByProduct(txCtx, cart.ID, productID)
			switch {
			case err == nil:
				found = true
			case !isRepoNotFound(err):
				return mapRepositoryError(err, nil, nil)
			}
		}

		if found {
			if line.Quantity > MaxLineQuantity-cmd.Quantity {
				return ErrQuantityLimit
			}
			line.Quantity += cmd.Quantity
			line.UpdatedAt = now
			if err := s.carts.UpdateLine(txCtx, line); err != nil {
				return mapRepositoryError(err, ErrCartLineNotFound, ErrCartConflict)
			}
		} else {
			line = domain.CartLine{
				ID:        s.newID(),
				CartID:    cart.ID,
				ProductID: productID,
				Quantity:  cmd.Quantity,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.carts.InsertLine(txCtx, line); err != nil {
				return mapRepositoryError(err, nil, ErrCartConflict)
			}
		}
		item = CartItem{Line: line, Product: product}
		return nil
	})
	if err != nil {
		return CartItem{}, err
	}

	s.logger(ctx, "cart.item.added", map[string]any{
		"userID":    userID,
		"productID": productID,
		"quantity":  item.Line.Quantity,
	})
	return item, nil
}

func (s *cartService) IncreaseQuantity(ctx context.Context, userID string, lineID string) (CartItem, error) {
	var item CartItem
	err := s.unit.RunInTx(ctx, func(txCtx context.Context) error {
		line, err := s.ownedLine(txCtx, userID, lineID)
		if err != nil {
			return err
		}
		product, err := s.catalog.FindProduct(txCtx, line.ProductID)
		if err != nil {
			return mapRepositoryError(err, ErrProductNotFound, nil)
		}
		if line.Quantity >= MaxLineQuantity {
			return ErrQuantityLimit
		}
		line.Quantity++
		line.UpdatedAt = s.now()
		if err := s.carts.UpdateLine(txCtx, line); err != nil {
			return mapRepositoryError(err, ErrCartLineNotFound, ErrCartConflict)
		}
		item = CartItem{Line: line, Product: product}
		return nil
	})
	if err != nil {
		return CartItem{}, err
	}
	return item, nil
}

func (s *cartService) DecreaseQuantity(ctx context.Context, userID string, lineID string) (*CartItem, error) {
	var item *CartItem
	err := s.unit.RunInTx(ctx, func(txCtx context.Context) error {
		line, err := s.ownedLine(txCtx, userID, lineID)
		if err != nil {
			return err
		}
		if line.Quantity <= 1 {
			if err := s.carts.DeleteLine(txCtx, line.ID); err != nil {
				return mapRepositoryError(err, ErrCartLineNotFound, ErrCartConflict)
			}
			return nil
		}
		product, err := s.catalog.FindProduct(txCtx, line.ProductID)
		if err != nil {
			return mapRepositoryError(err, ErrProductNotFound, nil)
		}
		line.Quantity--
		line.UpdatedAt = s.now()
		if err := s.carts.UpdateLine(txCtx, line); err != nil {
			return mapRepositoryError(err, ErrCartLineNotFound, ErrCartConflict)
		}
		item = &CartItem{Line: line, Product: product}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if item == nil {
		s.logger(ctx, "cart.item.removed", map[string]any{"userID": userID, "lineID": lineID})
	}
	return item, nil
}

func (s *cartService) RemoveItem(ctx context.Context, userID string, lineID string) error {
	err := s.unit.RunInTx(ctx, func(txCtx context.Context) error {
		line, err := s.ownedLine(txCtx, userID, lineID)
		if err != nil {
			return err
		}
		if err := s.carts.DeleteLine(txCtx, line.ID); err != nil {
			return mapRepositoryError(err, ErrCartLineNotFound, ErrCartConflict)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger(ctx, "cart.item.removed", map[string]any{"userID": userID, "lineID": lineID})
	return nil
}

func (s *cartService) ListItems(ctx context.Context, userID string) ([]CartItem, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, ErrInvalidInput
	}
	cart, err := s.carts.FindByUser(ctx, uid)
	if err != nil {
		if isRepoNotFound(err) {
			return []CartItem{}, nil
		}
		return nil, mapRepositoryError(err, nil, nil)
	}
	lines, err := s.carts.ListLines(ctx, cart.ID)
	if err != nil {
		return nil, mapRepositoryError(err, nil, nil)
	}
	products, err := s.catalog.FindProducts(ctx, productIDs(lines))
	if err != nil {
		return nil, mapRepositoryError(err, nil, nil)
	}

	items := make([]CartItem, 0, len(lines))
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			s.logger(ctx, "cart.item.product_missing", map[string]any{
				"userID":    uid,
				"lineID":    line.ID,
				"productID": line.ProductID,
			})
			continue
		}
		items = append(items, CartItem{Line: line, Product: product})
	}
	return items, nil
}

// ownedLine loads the line and verifies it sits in the customer's cart.
func (s *cartService) ownedLine(ctx context.Context, userID string, lineID string) (domain.CartLine, error) {
	uid := strings.TrimSpace(userID)
	lid := strings.TrimSpace(lineID)
	if uid == "" || lid == "" {
		return domain.CartLine{}, ErrInvalidInput
	}
	line, err := s.carts.FindLine(ctx, lid)
	if err != nil {
		return domain.CartLine{}, mapRepositoryError(err, ErrCartLineNotFound, nil)
	}
	cart, err := s.carts.FindByUser(ctx, uid)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.CartLine{}, ErrCartLineNotOwned
		}
		return domain.CartLine{}, mapRepositoryError(err, nil, nil)
	}
	if line.CartID != cart.ID {
		return domain.CartLine{}, ErrCartLineNotOwned
	}
	return line, nil
}

func productIDs(lines []domain.CartLine) []string {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
