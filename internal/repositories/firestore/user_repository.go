package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/hometech/api/internal/domain"
	pfirestore "github.com/hometech/api/internal/platform/firestore"
)

const (
	userCollection           = "users"
	addressCollectionPattern = "users/%s/addresses"
)

// UserRepository reads user accounts maintained by the identity service.
type UserRepository struct {
	base *pfirestore.BaseRepository[userDocument]
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[userDocument](provider, userCollection)
	return &UserRepository{base: base}, nil
}

// FindByID loads the user by UID.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.User{}, errors.New("user id is required")
	}
	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	return toDomainUser(doc), nil
}

// ListByRole returns active users carrying the role.
func (r *UserRepository) ListByRole(ctx context.Context, role domain.UserRole) ([]domain.User, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("role", "==", string(role)).Where("isActive", "==", true)
	})
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, toDomainUser(doc))
	}
	return users, nil
}

type userDocument struct {
	Role        string    `firestore:"role"`
	DisplayName string    `firestore:"displayName"`
	Email       string    `firestore:"email"`
	Phone       string    `firestore:"phoneNumber"`
	IsActive    bool      `firestore:"isActive"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func toDomainUser(doc pfirestore.Document[userDocument]) domain.User {
	user := domain.User{
		ID:          doc.ID,
		Role:        domain.UserRole(strings.ToLower(strings.TrimSpace(doc.Data.Role))),
		DisplayName: doc.Data.DisplayName,
		Email:       doc.Data.Email,
		Phone:       doc.Data.Phone,
		Active:      doc.Data.IsActive,
		CreatedAt:   doc.Data.CreatedAt.UTC(),
		UpdatedAt:   doc.Data.UpdatedAt.UTC(),
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = doc.CreateTime.UTC()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = doc.UpdateTime.UTC()
	}
	return user
}

// AddressRepository reads delivery addresses stored under each user document.
type AddressRepository struct {
	provider *pfirestore.Provider
}

// NewAddressRepository constructs a Firestore-backed address repository.
func NewAddressRepository(provider *pfirestore.Provider) (*AddressRepository, error) {
	if provider == nil {
		return nil, errors.New("address repository requires firestore provider")
	}
	return &AddressRepository{provider: provider}, nil
}

// ListByUser returns addresses in registration order.
func (r *AddressRepository) ListByUser(ctx context.Context, userID string) ([]domain.Address, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	base := pfirestore.NewBaseRepository[addressDocument](r.provider, fmt.Sprintf(addressCollectionPattern, userID))
	docs, err := base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	addresses := make([]domain.Address, 0, len(docs))
	for _, doc := range docs {
		addresses = append(addresses, domain.Address{
			ID:            doc.ID,
			UserID:        userID,
			RecipientName: doc.Data.RecipientName,
			Phone:         doc.Data.Phone,
			Street:        doc.Data.Street,
			Ward:          doc.Data.Ward,
			District:      doc.Data.District,
			City:          doc.Data.City,
			CreatedAt:     doc.Data.CreatedAt.UTC(),
			UpdatedAt:     doc.Data.UpdatedAt.UTC(),
		})
	}
	sort.SliceStable(addresses, func(i, j int) bool {
		return addresses[i].CreatedAt.Before(addresses[j].CreatedAt)
	})
	return addresses, nil
}

type addressDocument struct {
	RecipientName string    `firestore:"recipientName"`
	Phone         string    `firestore:"phone"`
	Street        string    `firestore:"street"`
	Ward          string    `firestore:"ward"`
	District      string    `firestore:"district"`
	City          string    `firestore:"city"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}
