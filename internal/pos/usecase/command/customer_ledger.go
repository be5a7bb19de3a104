package command

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tair/pos-ledger/internal/pos/domain"
)

// CustomerPosting is one money movement to append to a customer's ledger
type CustomerPosting struct {
	CustomerID    uint
	Kind          domain.CustomerLedgerKind
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	ReferenceType string
	ReferenceID   uint
	Reference     string
	Mode          string
	Note          string
	Actor         string
}

// PostCustomerLedger appends a running-balance entry inside the caller's
// transaction. The new balance is the previous one plus debit minus credit;
// the balance update and the sequence bump happen in one statement so
// concurrent postings for the same customer chain strictly.
func PostCustomerLedger(tx domain.CustomerRepository, p CustomerPosting) (*domain.CustomerLedgerEntry, error) {
	if p.Debit.IsNegative() || p.Credit.IsNegative() {
		return nil, domain.ValidationError("debit and credit must not be negative")
	}

	balance, seq, err := tx.AdvanceCustomerBalance(p.CustomerID, p.Debit.Sub(p.Credit))
	if err != nil {
		return nil, fmt.Errorf("failed to advance customer balance: %w", err)
	}

	entry := &domain.CustomerLedgerEntry{
		CustomerID:    p.CustomerID,
		Seq:           seq,
		Kind:          p.Kind,
		Debit:         p.Debit,
		Credit:        p.Credit,
		Balance:       balance,
		ReferenceType: p.ReferenceType,
		ReferenceID:   p.ReferenceID,
		Reference:     p.Reference,
		Mode:          p.Mode,
		Note:          p.Note,
		Actor:         p.Actor,
	}
	if err := tx.AppendCustomerLedger(entry); err != nil {
		return nil, fmt.Errorf("failed to append customer ledger entry: %w", err)
	}

	customerLedgerEntriesTotal.WithLabelValues(string(p.Kind)).Inc()
	return entry, nil
}
