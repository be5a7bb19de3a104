package repository

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tair/pos-ledger/internal/pos/domain"
)

// MemoryStore implements domain.Store in process memory. Each transaction
// works on a private copy of the state and swaps it in on success, so a
// failing operation leaves nothing behind. Transactions are serialized by one
// mutex.
type MemoryStore struct {
	mu      sync.Mutex
	state   *memState
	counter sync.Mutex
	seq     int64
}

type memState struct {
	ids map[string]uint

	products       map[uint]domain.Product
	skus           map[string]uint
	stock          map[uint]domain.StockRecord
	movements      []domain.StockMovement
	productLedger  []domain.ProductLedgerEntry
	customers      map[uint]domain.Customer
	customerLedger []domain.CustomerLedgerEntry
	sales          map[uint]domain.Sale
	invoices       map[int64]uint
	clientRefs     map[string]uint
	returns        []domain.Return
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			ids:        make(map[string]uint),
			products:   make(map[uint]domain.Product),
			skus:       make(map[string]uint),
			stock:      make(map[uint]domain.StockRecord),
			customers:  make(map[uint]domain.Customer),
			sales:      make(map[uint]domain.Sale),
			invoices:   make(map[int64]uint),
			clientRefs: make(map[string]uint),
		},
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		ids:            make(map[string]uint, len(s.ids)),
		products:       make(map[uint]domain.Product, len(s.products)),
		skus:           make(map[string]uint, len(s.skus)),
		stock:          make(map[uint]domain.StockRecord, len(s.stock)),
		movements:      append([]domain.StockMovement(nil), s.movements...),
		productLedger:  append([]domain.ProductLedgerEntry(nil), s.productLedger...),
		customers:      make(map[uint]domain.Customer, len(s.customers)),
		customerLedger: append([]domain.CustomerLedgerEntry(nil), s.customerLedger...),
		sales:          make(map[uint]domain.Sale, len(s.sales)),
		invoices:       make(map[int64]uint, len(s.invoices)),
		clientRefs:     make(map[string]uint, len(s.clientRefs)),
		returns:        append([]domain.Return(nil), s.returns...),
	}
	for k, v := range s.ids {
		c.ids[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.skus {
		c.skus[k] = v
	}
	for k, v := range s.stock {
		c.stock[k] = v
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	// Sale items are never modified after insert, sharing them is safe.
	for k, v := range s.sales {
		c.sales[k] = v
	}
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	for k, v := range s.clientRefs {
		c.clientRefs[k] = v
	}
	return c
}

func (s *memState) nextID(table string) uint {
	s.ids[table]++
	return s.ids[table]
}

// WithinTransaction runs fn against a copy of the state and commits it only
// when fn succeeds.
func (m *MemoryStore) WithinTransaction(ctx context.Context, fn func(tx domain.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := m.state.clone()
	if err := fn(&memTx{state: working}); err != nil {
		return err
	}
	m.state = working
	return nil
}

// Read runs fn against a throwaway copy of the state
func (m *MemoryStore) Read(ctx context.Context, fn func(tx domain.Tx) error) error {
	m.mu.Lock()
	snapshot := m.state.clone()
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&memTx{state: snapshot})
}

// NextInvoiceNumber increments a counter that is never rolled back
func (m *MemoryStore) NextInvoiceNumber(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.counter.Lock()
	defer m.counter.Unlock()
	m.seq++
	return m.seq, nil
}

type memTx struct {
	state *memState
}

func copySale(sale domain.Sale) *domain.Sale {
	sale.Items = append([]domain.SaleLineItem(nil), sale.Items...)
	return &sale
}

func (t *memTx) CreateProduct(product *domain.Product) error {
	if _, exists := t.state.skus[product.SKU]; exists {
		return domain.ValidationError("sku %q already exists", product.SKU)
	}
	now := time.Now()
	product.ID = t.state.nextID("products")
	product.CreatedAt, product.UpdatedAt = now, now
	t.state.products[product.ID] = *product
	t.state.skus[product.SKU] = product.ID
	return nil
}

func (t *memTx) FindProduct(id uint) (*domain.Product, error) {
	product, ok := t.state.products[id]
	if !ok {
		return nil, domain.NotFoundError("product", id)
	}
	return &product, nil
}

func (t *memTx) CreateStockRecord(record *domain.StockRecord) error {
	if _, exists := t.state.stock[record.ProductID]; exists {
		return domain.ValidationError("stock record for product %d already exists", record.ProductID)
	}
	now := time.Now()
	record.ID = t.state.nextID("stock_records")
	record.CreatedAt, record.UpdatedAt = now, now
	t.state.stock[record.ProductID] = *record
	return nil
}

func (t *memTx) FindStockRecord(productID uint) (*domain.StockRecord, error) {
	record, ok := t.state.stock[productID]
	if !ok {
		return nil, domain.NotFoundError("stock record for product", productID)
	}
	return &record, nil
}

func (t *memTx) DecrementStock(productID uint, quantity int64, reference string) (int64, error) {
	record, ok := t.state.stock[productID]
	if !ok {
		return 0, domain.NotFoundError("stock record for product", productID)
	}
	if record.Quantity < quantity {
		return 0, &domain.InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: record.Quantity,
		}
	}
	record.Quantity -= quantity
	record.LastReference = reference
	record.UpdatedAt = time.Now()
	t.state.stock[productID] = record
	return record.Quantity, nil
}

func (t *memTx) IncrementStock(productID uint, quantity int64, reference string) (int64, error) {
	record, ok := t.state.stock[productID]
	if !ok {
		record = domain.StockRecord{
			ID:        t.state.nextID("stock_records"),
			ProductID: productID,
			CreatedAt: time.Now(),
		}
	}
	if quantity > math.MaxInt64-record.Quantity {
		return 0, domain.StockOverflowError(productID, record.Quantity, quantity)
	}
	record.Quantity += quantity
	record.LastReference = reference
	record.UpdatedAt = time.Now()
	t.state.stock[productID] = record
	return record.Quantity, nil
}

func (t *memTx) AppendStockMovement(movement *domain.StockMovement) error {
	movement.ID = t.state.nextID("stock_movements")
	movement.CreatedAt = time.Now()
	t.state.movements = append(t.state.movements, *movement)
	return nil
}

func (t *memTx) ListStockMovements(productID uint) ([]domain.StockMovement, error) {
	var out []domain.StockMovement
	for _, m := range t.state.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (t *memTx) AppendProductLedger(entry *domain.ProductLedgerEntry) error {
	entry.ID = t.state.nextID("product_ledger_entries")
	entry.CreatedAt = time.Now()
	t.state.productLedger = append(t.state.productLedger, *entry)
	return nil
}

func (t *memTx) ListProductLedger(productID uint) ([]domain.ProductLedgerEntry, error) {
	var out []domain.ProductLedgerEntry
	for _, e := range t.state.productLedger {
		if e.ProductID == productID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (t *memTx) CreateSale(sale *domain.Sale) error {
	if _, exists := t.state.invoices[sale.InvoiceNumber]; exists {
		return &domain.DuplicateInvoiceError{InvoiceNumber: sale.InvoiceNumber}
	}
	if sale.ClientReference != nil {
		if _, exists := t.state.clientRefs[*sale.ClientReference]; exists {
			return &domain.DuplicateClientReferenceError{Reference: *sale.ClientReference}
		}
	}

	now := time.Now()
	sale.ID = t.state.nextID("sales")
	sale.CreatedAt, sale.UpdatedAt = now, now
	for i := range sale.Items {
		sale.Items[i].ID = t.state.nextID("sale_line_items")
		sale.Items[i].SaleID = sale.ID
	}

	t.state.sales[sale.ID] = *copySale(*sale)
	t.state.invoices[sale.InvoiceNumber] = sale.ID
	if sale.ClientReference != nil {
		t.state.clientRefs[*sale.ClientReference] = sale.ID
	}
	return nil
}

func (t *memTx) FindSale(id uint) (*domain.Sale, error) {
	sale, ok := t.state.sales[id]
	if !ok {
		return nil, domain.NotFoundError("sale", id)
	}
	return copySale(sale), nil
}

// LockSale needs no row lock here; the store mutex already serializes work.
func (t *memTx) LockSale(id uint) (*domain.Sale, error) {
	return t.FindSale(id)
}

func (t *memTx) FindSaleByInvoice(invoiceNumber int64) (*domain.Sale, error) {
	id, ok := t.state.invoices[invoiceNumber]
	if !ok {
		return nil, domain.NotFoundError("sale with invoice", invoiceNumber)
	}
	return t.FindSale(id)
}

func (t *memTx) FindSaleByClientReference(reference string) (*domain.Sale, error) {
	id, ok := t.state.clientRefs[reference]
	if !ok {
		return nil, domain.NotFoundError("sale with client reference", reference)
	}
	return t.FindSale(id)
}

func (t *memTx) UpdateSaleStatus(id uint, status domain.SaleStatus, refundedTotal decimal.Decimal) error {
	sale, ok := t.state.sales[id]
	if !ok {
		return domain.NotFoundError("sale", id)
	}
	sale.Status = status
	sale.RefundedTotal = refundedTotal
	sale.UpdatedAt = time.Now()
	t.state.sales[id] = sale
	return nil
}

func (t *memTx) CreateReturn(ret *domain.Return) error {
	ret.ID = t.state.nextID("sale_returns")
	ret.CreatedAt = time.Now()
	for i := range ret.Items {
		ret.Items[i].ID = t.state.nextID("sale_return_items")
		ret.Items[i].ReturnID = ret.ID
	}
	stored := *ret
	stored.Items = append([]domain.ReturnLineItem(nil), ret.Items...)
	t.state.returns = append(t.state.returns, stored)
	return nil
}

func (t *memTx) ListReturnsBySale(saleID uint) ([]domain.Return, error) {
	var out []domain.Return
	for _, r := range t.state.returns {
		if r.SaleID == saleID {
			r.Items = append([]domain.ReturnLineItem(nil), r.Items...)
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *memTx) CreateCustomer(customer *domain.Customer) error {
	now := time.Now()
	customer.ID = t.state.nextID("customers")
	customer.CreatedAt, customer.UpdatedAt = now, now
	t.state.customers[customer.ID] = *customer
	return nil
}

func (t *memTx) FindCustomer(id uint) (*domain.Customer, error) {
	customer, ok := t.state.customers[id]
	if !ok {
		return nil, domain.NotFoundError("customer", id)
	}
	return &customer, nil
}

func (t *memTx) AdvanceCustomerBalance(customerID uint, delta decimal.Decimal) (decimal.Decimal, int64, error) {
	customer, ok := t.state.customers[customerID]
	if !ok {
		return decimal.Zero, 0, domain.NotFoundError("customer", customerID)
	}
	customer.CurrentBalance = customer.CurrentBalance.Add(delta)
	customer.LedgerSeq++
	customer.UpdatedAt = time.Now()
	t.state.customers[customerID] = customer
	return customer.CurrentBalance, customer.LedgerSeq, nil
}

func (t *memTx) AppendCustomerLedger(entry *domain.CustomerLedgerEntry) error {
	for _, e := range t.state.customerLedger {
		if e.CustomerID == entry.CustomerID && e.Seq == entry.Seq {
			return domain.ValidationError("ledger sequence %d already used for customer %d", entry.Seq, entry.CustomerID)
		}
	}
	entry.ID = t.state.nextID("customer_ledger_entries")
	entry.CreatedAt = time.Now()
	t.state.customerLedger = append(t.state.customerLedger, *entry)
	return nil
}

func (t *memTx) ListCustomerLedger(customerID uint) ([]domain.CustomerLedgerEntry, error) {
	var out []domain.CustomerLedgerEntry
	for _, e := range t.state.customerLedger {
		if e.CustomerID == customerID {
			out = append(out, e)
		}
	}
	return out, nil
}
