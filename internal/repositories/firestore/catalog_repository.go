package firestore

import (
	"context"
	"errors"
	"time"

	domain "github.com/hometech/api/internal/domain"
	pfirestore "github.com/hometech/api/internal/platform/firestore"
)

const (
	productCollection  = "products"
	categoryCollection = "categories"
)

// CatalogRepository reads products and categories. The catalog is managed elsewhere.
type CatalogRepository struct {
	products   *pfirestore.BaseRepository[productDocument]
	categories *pfirestore.BaseRepository[categoryDocument]
}

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{
		products:   pfirestore.NewBaseRepository[productDocument](provider, productCollection),
		categories: pfirestore.NewBaseRepository[categoryDocument](provider, categoryCollection),
	}, nil
}

// FindProduct loads a product by ID.
func (r *CatalogRepository) FindProduct(ctx context.Context, productID string) (domain.Product, error) {
	doc, err := r.products.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return toDomainProduct(doc), nil
}

// FindProducts loads the existing products among productIDs.
func (r *CatalogRepository) FindProducts(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	docs, err := r.products.GetMany(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	products := make(map[string]domain.Product, len(docs))
	for _, doc := range docs {
		products[doc.ID] = toDomainProduct(doc)
	}
	return products, nil
}

// FindCategory loads a category by ID.
func (r *CatalogRepository) FindCategory(ctx context.Context, categoryID string) (domain.Category, error) {
	doc, err := r.categories.Get(ctx, categoryID)
	if err != nil {
		return domain.Category{}, err
	}
	return domain.Category{ID: doc.ID, Name: doc.Data.Name}, nil
}

type productDocument struct {
	CategoryID  string    `firestore:"categoryId"`
	Name        string    `firestore:"name"`
	Description string    `firestore:"description"`
	Price       int64     `firestore:"price"`
	Stock       int       `firestore:"stock"`
	Hidden      bool      `firestore:"hidden"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

type categoryDocument struct {
	Name string `firestore:"name"`
}

func toDomainProduct(doc pfirestore.Document[productDocument]) domain.Product {
	return domain.Product{
		ID:          doc.ID,
		CategoryID:  doc.Data.CategoryID,
		Name:        doc.Data.Name,
		Description: doc.Data.Description,
		Price:       doc.Data.Price,
		Stock:       doc.Data.Stock,
		Hidden:      doc.Data.Hidden,
		CreatedAt:   doc.Data.CreatedAt.UTC(),
		UpdatedAt:   doc.Data.UpdatedAt.UTC(),
	}
}
