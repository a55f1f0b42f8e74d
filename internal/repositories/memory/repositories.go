package memory

import (
	"context"
	"sort"
	"strings"

	domain "github.com/hometech/api/internal/domain"
	"github.com/hometech/api/internal/repositories"
)

type userRepository struct{ s *Store }

func (r userRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	var user domain.User
	err := r.s.with(ctx, func(st *state) error {
		found, ok := st.users[userID]
		if !ok {
			return notFound("users.get", "user %s not found", userID)
		}
		user = found
		return nil
	})
	return user, err
}

func (r userRepository) ListByRole(ctx context.Context, role domain.UserRole) ([]domain.User, error) {
	var users []domain.User
	err := r.s.with(ctx, func(st *state) error {
		for _, user := range st.users {
			if user.Role == role && user.Active {
				users = append(users, user)
			}
		}
		return nil
	})
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, err
}

type addressRepository struct{ s *Store }

func (r addressRepository) ListByUser(ctx context.Context, userID string) ([]domain.Address, error) {
	var addresses []domain.Address
	err := r.s.with(ctx, func(st *state) error {
		for _, addr := range st.addresses {
			if addr.UserID == userID {
				addresses = append(addresses, addr)
			}
		}
		return nil
	})
	sort.Slice(addresses, func(i, j int) bool {
		if addresses[i].CreatedAt.Equal(addresses[j].CreatedAt) {
			return addresses[i].ID < addresses[j].ID
		}
		return addresses[i].CreatedAt.Before(addresses[j].CreatedAt)
	})
	return addresses, err
}

type catalogRepository struct{ s *Store }

func (r catalogRepository) FindProduct(ctx context.Context, productID string) (domain.Product, error) {
	var product domain.Product
	err := r.s.with(ctx, func(st *state) error {
		found, ok := st.products[productID]
		if !ok {
			return notFound("products.get", "product %s not found", productID)
		}
		product = found
		return nil
	})
	return product, err
}

func (r catalogRepository) FindProducts(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	products := make(map[string]domain.Product, len(productIDs))
	err := r.s.with(ctx, func(st *state) error {
		for _, id := range productIDs {
			if product, ok := st.products[id]; ok {
				products[id] = product
			}
		}
		return nil
	})
	return products, err
}

func (r catalogRepository) FindCategory(ctx context.Context, categoryID string) (domain.Category, error) {
	var category domain.Category
	err := r.s.with(ctx, func(st *state) error {
		found, ok := st.categories[categoryID]
		if !ok {
			return notFound("categories.get", "category %s not found", categoryID)
		}
		category = found
		return nil
	})
	return category, err
}

type cartRepository struct{ s *Store }

func (r cartRepository) FindByUser(ctx context.Context, userID string) (domain.Cart, error) {
	var cart domain.Cart
	err := r.s.with(ctx, func(st *state) error {
		for _, candidate := range st.carts {
			if candidate.UserID == userID {
				cart = candidate
				return nil
			}
		}
		return notFound("carts.find_by_user", "cart for user %s not found", userID)
	})
	return cart, err
}

func (r cartRepository) Create(ctx context.Context, cart domain.Cart) error {
	return r.s.with(ctx, func(st *state) error {
		if _, ok := st.carts[cart.ID]; ok {
			return conflict("carts.create", "cart %s already exists", cart.ID)
		}
		for _, existing := range st.carts {
			if existing.UserID == cart.UserID {
				return conflict("carts.create", "user %s already owns cart %s", cart.UserID, existing.ID)
			}
		}
		st.carts[cart.ID] = cart
		return nil
	})
}

func (r cartRepository) ListLines(ctx context.Context, cartID string) ([]domain.CartLine, error) {
	var lines []domain.CartLine
	err := r.s.with(ctx, func(st *state) error {
		for _, line := range st.lines {
			if line.CartID == cartID {
				lines = append(lines, line)
			}
		}
		return nil
	})
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].CreatedAt.Equal(lines[j].CreatedAt) {
			return lines[i].ID < lines[j].ID
		}
		return lines[i].CreatedAt.Before(lines[j].CreatedAt)
	})
	return lines, err
}

func (r cartRepository) FindLine(ctx context.Context, lineID string) (domain.CartLine, error) {
	var line domain.CartLine
	err := r.s.with(ctx, func(st *state) error {
		found, ok := st.lines[lineID]
		if !ok {
			return notFound("cart_lines.get", "cart line %s not found", lineID)
		}
		line = found
		return nil
	})
	return line, err
}

func (r cartRepository) FindLineByProduct(ctx context.Context, cartID string, productID string) (domain.CartLine, error) {
	var line domain.CartLine
	err := r.s.with(ctx, func(st *state) error {
		for _, candidate := range st.lines {
			if candidate.CartID == cartID && candidate.ProductID == productID {
				line = candidate
				return nil
			}
		}
		return notFound("cart_lines.find_by_product", "product %s not in cart %s", productID, cartID)
	})
	return line, err
}

func (r cartRepository) InsertLine(ctx context.Context, line domain.CartLine) error {
	return r.s.with(ctx, func(st *state) error {
		if _, ok := st.lines[line.ID]; ok {
			return conflict("cart_lines.insert", "cart line %s already exists", line.ID)
		}
		for _, existing := range st.lines {
			if existing.CartID == line.CartID && existing.ProductID == line.ProductID {
				return conflict("cart_lines.insert", "product %s already in cart %s", line.ProductID, line.CartID)
			}
		}
		st.lines[line.ID] = line
		return nil
	})
}

func (r cartRepository) UpdateLine(ctx context.Context, line domain.CartLine) error {
	return r.s.with(ctx, func(st *state) error {
		if _, ok := st.lines[line.ID]; !ok {
			return notFound("cart_lines.update", "cart line %s not found", line.ID)
		}
		st.lines[line.ID] = line
		return nil
	})
}

func (r cartRepository) DeleteLine(ctx context.Context, lineID string) error {
	return r.s.with(ctx, func(st *state) error {
		if _, ok := st.lines[lineID]; !ok {
			return notFound("cart_lines.delete", "cart line %s not found", lineID)
		}
		delete(st.lines, lineID)
		return nil
	})
}

func (r cartRepository) ClearLines(ctx context.Context, cartID string, lineIDs []string) error {
	return r.s.with(ctx, func(st *state) error {
		for _, id := range lineIDs {
			line, ok := st.lines[id]
			if !ok || line.CartID != cartID {
				return conflict("cart_lines.clear", "cart line %s changed concurrently", id)
			}
		}
		for _, id := range lineIDs {
			delete(st.lines, id)
		}
		return nil
	})
}

type voucherRepository struct{ s *Store }

func (r voucherRepository) Insert(ctx context.Context, voucher domain.Voucher) error {
	return r.s.with(ctx, func(st *state) error {
		if _, ok := st.vouchers[voucher.ID]; ok {
			return conflict("vouchers.insert", "voucher %s already exists", voucher.ID)
		}
		for _, existing := range st.vouchers {
			if strings.EqualFold(existing.Code, voucher.Code) {
				return conflict("vouchers.insert", "voucher code %s already exists", voucher.Code)
			}
		}
		st.vouchers[voucher.ID] = voucher
		return nil
	})
}

func (r voucherRepository) Update(ctx context.Context, voucher domain.Voucher) error {
	return r.s.with(ctx, func(st *state) error {
		if _, ok := st.vouchers[voucher.ID]; !ok {
			return notFound("vouchers.update", "voucher %s not found", voucher.ID)
		}
		for _, existing := range st.vouchers {
			if existing.ID != voucher.ID && strings.EqualFold(existing.Code, voucher.Code) {
				return conflict("vouchers.update", "voucher code %s already exists", voucher.Code)
			}
		}
		st.vouchers[voucher.ID] = voucher
		return nil
	})
}

func (r voucherRepository) Delete(ctx context.Context, voucherID string) error {
	return r.s.with(ctx, func(st *state) error {
		if _, ok := st.vouchers[voucherID]; !ok {
			return notFound("vouchers.delete", "voucher %s not found", voucherID)
		}
		delete(st.vouchers, voucherID)
		return nil
	})
}

func (r voucherRepository) FindByID(ctx context.Context, voucherID string) (domain.Voucher, error) {
	var voucher domain.Voucher
	err := r.s.with(ctx, func(st *state) error {
		found, ok := st.vouchers[voucherID]
		if !ok {
			return notFound("vouchers.get", "voucher %s not found", voucherID)
		}
		voucher = found
		return nil
	})
	return voucher, err
}

func (r voucherRepository) FindByCode(ctx context.Context, code string) (domain.Voucher, error) {
	var voucher domain.Voucher
	err := r.s.with(ctx, func(st *state) error {
		for _, candidate := range st.vouchers {
			if strings.EqualFold(candidate.Code, code) {
				voucher = candidate
				return nil
			}
		}
		return notFound("vouchers.find_by_code", "voucher %s not found", code)
	})
	return voucher, err
}

func (r voucherRepository) List(ctx context.Context) ([]domain.Voucher, error) {
	var vouchers []domain.Voucher
	err := r.s.with(ctx, func(st *state) error {
		for _, voucher := range st.vouchers {
			vouchers = append(vouchers, voucher)
		}
		return nil
	})
	sort.Slice(vouchers, func(i, j int) bool { return vouchers[i].Code < vouchers[j].Code })
	return vouchers, err
}

func (r voucherRepository) IncrementUsage(ctx context.Context, voucherID string) (domain.Voucher, error) {
	if strings.TrimSpace(voucherID) == "" {
		return domain.Voucher{}, repositories.NewVoucherUsageError(repositories.VoucherUsageInvalidInput, "", "voucher id is required")
	}
	var voucher domain.Voucher
	err := r.s.with(ctx, func(st *state) error {
		current, ok := st.vouchers[voucherID]
		if !ok {
			return notFound("vouchers.increment_usage", "voucher %s not found", voucherID)
		}
		if current.UsedCount >= current.UsageLimit {
			return repositories.NewVoucherUsageError(repositories.VoucherUsageExhausted, voucherID, "usage limit reached")
		}
		current.UsedCount++
		st.vouchers[voucherID] = current
		voucher = current
		return nil
	})
	return voucher, err
}

type orderRepository struct{ s *Store }

func (r orderRepository) Insert(ctx context.Context, order domain.Order) error {
	return r.s.with(ctx, func(st *state) error {
		if _, ok := st.orders[order.ID]; ok {
			return conflict("orders.insert", "order %s already exists", order.ID)
		}
		st.orders[order.ID] = cloneOrder(order)
		return nil
	})
}

func (r orderRepository) Update(ctx context.Context, order domain.Order) error {
	return r.s.with(ctx, func(st *state) error {
		if _, ok := st.orders[order.ID]; !ok {
			return notFound("orders.update", "order %s not found", order.ID)
		}
		st.orders[order.ID] = cloneOrder(order)
		return nil
	})
}

func (r orderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	var order domain.Order
	err := r.s.with(ctx, func(st *state) error {
		found, ok := st.orders[orderID]
		if !ok {
			return notFound("orders.get", "order %s not found", orderID)
		}
		order = cloneOrder(found)
		return nil
	})
	return order, err
}

func (r orderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	var orders []domain.Order
	err := r.s.with(ctx, func(st *state) error {
		for _, order := range st.orders {
			if matchesOrder(order, filter) {
				orders = append(orders, cloneOrder(order))
			}
		}
		return nil
	})
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	if filter.Limit > 0 && len(orders) > filter.Limit {
		orders = orders[:filter.Limit]
	}
	return orders, err
}

func (r orderRepository) Count(ctx context.Context, filter repositories.OrderListFilter) (int64, error) {
	var count int64
	err := r.s.with(ctx, func(st *state) error {
		for _, order := range st.orders {
			if matchesOrder(order, filter) {
				count++
			}
		}
		return nil
	})
	return count, err
}

func matchesOrder(order domain.Order, filter repositories.OrderListFilter) bool {
	if filter.UserID != "" && order.UserID != filter.UserID {
		return false
	}
	if filter.Status != nil && order.Status != *filter.Status {
		return false
	}
	return true
}

type paymentRepository struct{ s *Store }

func (r paymentRepository) Insert(ctx context.Context, payment domain.Payment) error {
	return r.s.with(ctx, func(st *state) error {
		if _, ok := st.payments[payment.ID]; ok {
			return conflict("payments.insert", "payment %s already exists", payment.ID)
		}
		for _, existing := range st.payments {
			if existing.OrderID == payment.OrderID {
				return conflict("payments.insert", "order %s already has payment %s", payment.OrderID, existing.ID)
			}
		}
		st.payments[payment.ID] = payment
		return nil
	})
}

func (r paymentRepository) Update(ctx context.Context, payment domain.Payment) error {
	return r.s.with(ctx, func(st *state) error {
		if _, ok := st.payments[payment.ID]; !ok {
			return notFound("payments.update", "payment %s not found", payment.ID)
		}
		st.payments[payment.ID] = payment
		return nil
	})
}

func (r paymentRepository) FindByOrder(ctx context.Context, orderID string) (domain.Payment, error) {
	var payment domain.Payment
	err := r.s.with(ctx, func(st *state) error {
		for _, candidate := range st.payments {
			if candidate.OrderID == orderID {
				payment = candidate
				return nil
			}
		}
		return notFound("payments.find_by_order", "payment for order %s not found", orderID)
	})
	return payment, err
}

func (r paymentRepository) FindByTxnRef(ctx context.Context, txnRef string) (domain.Payment, error) {
	var payment domain.Payment
	err := r.s.with(ctx, func(st *state) error {
		if strings.TrimSpace(txnRef) == "" {
			return notFound("payments.find_by_txn_ref", "empty transaction reference")
		}
		for _, candidate := range st.payments {
			if candidate.TxnRef == txnRef {
				payment = candidate
				return nil
			}
		}
		return notFound("payments.find_by_txn_ref", "payment with txn ref %s not found", txnRef)
	})
	return payment, err
}

type counterRepository struct{ s *Store }

func (r counterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if step <= 0 {
		step = 1
	}
	var next int64
	err := r.s.with(ctx, func(st *state) error {
		st.counters[counterID] += step
		next = st.counters[counterID]
		return nil
	})
	return next, err
}
