package reconciler

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tair/pos-ledger/internal/pos/domain"
	"github.com/tair/pos-ledger/internal/pos/usecase/query"
	"github.com/tair/pos-ledger/pkg/logger"
)

var (
	auditRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_reconciliation_runs_total",
			Help: "Reconciliation runs by trigger and outcome",
		},
		[]string{"trigger", "result"},
	)

	violationsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pos_reconciliation_violations",
			Help: "Inconsistent records found by the last run per record kind",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(auditRunsTotal, violationsGauge)
}

// Checker runs a reconciliation query
type Checker interface {
	Handle(ctx context.Context, q query.CheckReconciliationQuery) (*query.ReconciliationReport, error)
}

const (
	defaultMaxTracked = 10000
	sweepPageSize     = 100
)

// Auditor re-checks the records touched by ledger events. The most recently
// touched ids of each kind are kept so a periodic sweep can catch drift
// introduced later.
type Auditor struct {
	checker    Checker
	maxTracked int

	mu        sync.Mutex
	products  *idSet
	customers *idSet
	sales     *idSet
}

// Option configures an Auditor
type Option func(*Auditor)

// WithMaxTracked caps the ids kept per record kind. Non-positive values keep
// the default.
func WithMaxTracked(n int) Option {
	return func(a *Auditor) {
		if n > 0 {
			a.maxTracked = n
		}
	}
}

// NewAuditor creates an auditor on top of the reconciliation query
func NewAuditor(checker Checker, opts ...Option) *Auditor {
	a := &Auditor{checker: checker, maxTracked: defaultMaxTracked}
	for _, opt := range opts {
		opt(a)
	}
	a.products = newIDSet(a.maxTracked)
	a.customers = newIDSet(a.maxTracked)
	a.sales = newIDSet(a.maxTracked)
	return a
}

// EventTypes lists every ledger event the auditor handles
func EventTypes() []domain.LedgerEventType {
	return []domain.LedgerEventType{
		domain.EventSaleCompleted,
		domain.EventReturnProcessed,
		domain.EventStockOutRecorded,
		domain.EventStockInRecorded,
		domain.EventPaymentRecorded,
		domain.EventCustomerAdjusted,
	}
}

// HandleEvent audits the products, customer and sale named by one event. It
// has the kafka.EventHandler signature.
func (a *Auditor) HandleEvent(ctx context.Context, event domain.LedgerEvent) error {
	q := query.CheckReconciliationQuery{ProductIDs: event.ProductIDs}
	if event.CustomerID != nil {
		q.CustomerIDs = []uint{*event.CustomerID}
	}
	if event.SaleID != 0 {
		q.SaleIDs = []uint{event.SaleID}
	}
	if len(q.ProductIDs)+len(q.CustomerIDs)+len(q.SaleIDs) == 0 {
		logger.Debug(ctx).
			Str("event_id", event.EventID).
			Msg("Ledger event names no records, skipping")
		return nil
	}

	a.track(q)

	report, err := a.run(ctx, "event", q)
	if err != nil {
		return err
	}
	if !report.Consistent {
		logger.Error(ctx).
			Str("event_id", event.EventID).
			Str("event_type", string(event.EventType)).
			Int("violations", report.Violations()).
			Msg("Ledger event left inconsistent records")
	}
	return nil
}

// Sweep re-checks every tracked record, one page of ids at a time. Ids whose
// record no longer exists are dropped from tracking instead of failing the
// sweep. It returns a nil report when nothing has been seen yet.
func (a *Auditor) Sweep(ctx context.Context) (*query.ReconciliationReport, error) {
	q := a.tracked()
	if len(q.ProductIDs)+len(q.CustomerIDs)+len(q.SaleIDs) == 0 {
		return nil, nil
	}

	report := &query.ReconciliationReport{
		Products:  []query.ProductReconciliation{},
		Customers: []query.CustomerReconciliation{},
		Sales:     []query.SaleReconciliation{},
	}
	for _, page := range pages(q, sweepPageSize) {
		part, err := a.sweepPage(ctx, page)
		if err != nil {
			auditRunsTotal.WithLabelValues("sweep", "error").Inc()
			return nil, err
		}
		report.Products = append(report.Products, part.Products...)
		report.Customers = append(report.Customers, part.Customers...)
		report.Sales = append(report.Sales, part.Sales...)
	}
	report.Consistent = report.Violations() == 0
	a.record(ctx, "sweep", report)

	violationsGauge.WithLabelValues("product").Set(float64(countProducts(report)))
	violationsGauge.WithLabelValues("customer").Set(float64(countCustomers(report)))
	violationsGauge.WithLabelValues("sale").Set(float64(countSales(report)))

	logger.Info(ctx).
		Int("products", len(report.Products)).
		Int("customers", len(report.Customers)).
		Int("sales", len(report.Sales)).
		Int("violations", report.Violations()).
		Msg("Reconciliation sweep finished")
	return report, nil
}

// Run sweeps on every tick until ctx is cancelled. A non-positive interval
// disables sweeping.
func (a *Auditor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.Sweep(ctx); err != nil {
				logger.Error(ctx).Err(err).Msg("Reconciliation sweep failed")
			}
		}
	}
}

func (a *Auditor) run(ctx context.Context, trigger string, q query.CheckReconciliationQuery) (*query.ReconciliationReport, error) {
	report, err := a.check(ctx, q)
	if err != nil {
		auditRunsTotal.WithLabelValues(trigger, "error").Inc()
		return nil, err
	}
	a.record(ctx, trigger, report)
	return report, nil
}

func (a *Auditor) check(ctx context.Context, q query.CheckReconciliationQuery) (*query.ReconciliationReport, error) {
	report, err := a.checker.Handle(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile: %w", err)
	}
	return report, nil
}

func (a *Auditor) record(ctx context.Context, trigger string, report *query.ReconciliationReport) {
	result := "consistent"
	if !report.Consistent {
		result = "violation"
		logViolations(ctx, report)
	}
	auditRunsTotal.WithLabelValues(trigger, result).Inc()
}

// sweepPage checks one page of ids. When the page names a record that is
// gone, its ids are re-checked one by one and the missing ones forgotten.
func (a *Auditor) sweepPage(ctx context.Context, page query.CheckReconciliationQuery) (*query.ReconciliationReport, error) {
	report, err := a.check(ctx, page)
	if err == nil {
		return report, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	report = &query.ReconciliationReport{}
	for _, single := range pages(page, 1) {
		part, err := a.check(ctx, single)
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn(ctx).
				Uints("product_ids", single.ProductIDs).
				Uints("customer_ids", single.CustomerIDs).
				Uints("sale_ids", single.SaleIDs).
				Msg("Tracked record no longer exists, dropping it")
			a.forget(single)
			continue
		}
		if err != nil {
			return nil, err
		}
		report.Products = append(report.Products, part.Products...)
		report.Customers = append(report.Customers, part.Customers...)
		report.Sales = append(report.Sales, part.Sales...)
	}
	return report, nil
}

func (a *Auditor) track(q query.CheckReconciliationQuery) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, id := range q.ProductIDs {
		a.products.add(id)
	}
	for _, id := range q.CustomerIDs {
		a.customers.add(id)
	}
	for _, id := range q.SaleIDs {
		a.sales.add(id)
	}
}

func (a *Auditor) forget(q query.CheckReconciliationQuery) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, id := range q.ProductIDs {
		a.products.remove(id)
	}
	for _, id := range q.CustomerIDs {
		a.customers.remove(id)
	}
	for _, id := range q.SaleIDs {
		a.sales.remove(id)
	}
}

func (a *Auditor) tracked() query.CheckReconciliationQuery {
	a.mu.Lock()
	defer a.mu.Unlock()

	return query.CheckReconciliationQuery{
		ProductIDs:  a.products.sorted(),
		CustomerIDs: a.customers.sorted(),
		SaleIDs:     a.sales.sorted(),
	}
}

// pages splits q into queries of at most size ids, each naming one record
// kind.
func pages(q query.CheckReconciliationQuery, size int) []query.CheckReconciliationQuery {
	var out []query.CheckReconciliationQuery
	for _, ids := range chunk(q.ProductIDs, size) {
		out = append(out, query.CheckReconciliationQuery{ProductIDs: ids})
	}
	for _, ids := range chunk(q.CustomerIDs, size) {
		out = append(out, query.CheckReconciliationQuery{CustomerIDs: ids})
	}
	for _, ids := range chunk(q.SaleIDs, size) {
		out = append(out, query.CheckReconciliationQuery{SaleIDs: ids})
	}
	return out
}

func chunk(ids []uint, size int) [][]uint {
	var out [][]uint
	for len(ids) > size {
		out = append(out, ids[:size:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

// idSet is a bounded set of ids. Adding past the limit evicts the id touched
// longest ago.
type idSet struct {
	limit int
	order *list.List
	index map[uint]*list.Element
}

func newIDSet(limit int) *idSet {
	return &idSet{limit: limit, order: list.New(), index: make(map[uint]*list.Element)}
}

func (s *idSet) add(id uint) {
	if el, ok := s.index[id]; ok {
		s.order.MoveToBack(el)
		return
	}
	s.index[id] = s.order.PushBack(id)
	for s.order.Len() > s.limit {
		oldest := s.order.Front()
		s.order.Remove(oldest)
		delete(s.index, oldest.Value.(uint))
	}
}

func (s *idSet) remove(id uint) {
	if el, ok := s.index[id]; ok {
		s.order.Remove(el)
		delete(s.index, id)
	}
}

func (s *idSet) sorted() []uint {
	ids := make([]uint, 0, len(s.index))
	for id := range s.index {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func logViolations(ctx context.Context, report *query.ReconciliationReport) {
	for _, p := range report.Products {
		if !p.Consistent {
			logger.Error(ctx).
				Uint("product_id", p.ProductID).
				Int64("stock_quantity", p.StockQuantity).
				Int64("expected", p.Expected).
				Strs("problems", p.Problems).
				Msg("Product stock does not reconcile")
		}
	}
	for _, c := range report.Customers {
		if !c.Consistent {
			logger.Error(ctx).
				Uint("customer_id", c.CustomerID).
				Str("current_balance", c.CurrentBalance.String()).
				Str("expected_balance", c.ExpectedBalance.String()).
				Strs("problems", c.Problems).
				Msg("Customer balance does not reconcile")
		}
	}
	for _, s := range report.Sales {
		if !s.Consistent {
			logger.Error(ctx).
				Uint("sale_id", s.SaleID).
				Strs("problems", s.Problems).
				Msg("Sale does not reconcile")
		}
	}
}

func countProducts(report *query.ReconciliationReport) int {
	n := 0
	for _, p := range report.Products {
		if !p.Consistent {
			n++
		}
	}
	return n
}

func countCustomers(report *query.ReconciliationReport) int {
	n := 0
	for _, c := range report.Customers {
		if !c.Consistent {
			n++
		}
	}
	return n
}

func countSales(report *query.ReconciliationReport) int {
	n := 0
	for _, s := range report.Sales {
		if !s.Consistent {
			n++
		}
	}
	return n
}
