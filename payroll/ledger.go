/*
ledger.go - Balance Mutator, Settlement Engine and Reconciler

PURPOSE:
  The Ledger is the only writer of an employee's balance fields. Every
  change is one atomic unit:

    1. lock the employee row
    2. check (active, overdraft)
    3. insert the log row
    4. update balance, counter and updated_at

  A failure at any step rolls the whole unit back, so the log and the
  cached aggregates never disagree.

BALANCE INVARIANT:
  current_balance = opening_balance + sum of effects over the log.
  Reconcile recomputes the right-hand side and compares.

OVERDRAFT:
  Only withdrawals are capped at the current balance. Deductions and
  salary payments may drive the balance negative.
*/
package payroll

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultTransactionLimit = 50
	MaxTransactionLimit     = 500

	settlementDescription = "account settlement: outstanding balance paid"
)

type Ledger struct {
	store LedgerStore
	opts  options
}

func NewLedger(store LedgerStore, opts ...Option) *Ledger {
	return &Ledger{store: store, opts: buildOptions(opts)}
}

// Validate checks req against the ledger's configured amount ceiling
// without touching the store.
func (l *Ledger) Validate(req TransactionRequest) error {
	return ValidateTransaction(req, l.opts.maxAmount)
}

// Apply validates req and records it against the employee's balance.
func (l *Ledger) Apply(ctx context.Context, req TransactionRequest) (*Transaction, error) {
	if err := l.Validate(req); err != nil {
		return nil, err
	}

	now := l.opts.clock()
	tx := Transaction{
		EmployeeID:  req.EmployeeID,
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
		Date:        DateOf(now),
		CreatedBy:   req.CreatedBy,
		CreatedAt:   now,
	}
	if req.Date != nil && !req.Date.IsZero() {
		tx.Date = *req.Date
	}
	if tx.CreatedBy == "" {
		tx.CreatedBy = SystemActor
	}

	var applied Transaction
	var after Account
	err := l.store.WithTx(ctx, func(ltx LedgerTx) error {
		acct, err := lockActive(ctx, ltx, req.EmployeeID)
		if err != nil {
			return err
		}
		if req.Type == TxWithdrawal && req.Amount.GreaterThan(acct.CurrentBalance) {
			return &InsufficientBalanceError{
				EmployeeID: req.EmployeeID,
				Requested:  req.Amount,
				Available:  acct.CurrentBalance,
			}
		}
		applied, after, err = applyLocked(ctx, ltx, acct, tx, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.opts.logger.Info("transaction applied",
		zap.Int64("employee_id", applied.EmployeeID),
		zap.Int64("transaction_id", applied.ID),
		zap.String("type", string(applied.Type)),
		zap.String("amount", FormatMoney(applied.Amount)),
		zap.String("balance", FormatMoney(after.CurrentBalance)),
	)
	return &applied, nil
}

// Settle pays out the employee's whole positive balance as one
// salary_payment and marks the employee paid.
func (l *Ledger) Settle(ctx context.Context, employeeID int64) (bool, error) {
	if employeeID <= 0 {
		var vs violations
		vs.add("employee_id", CodeInvalidEmployeeID, "must be a positive integer", employeeID)
		return false, vs.err()
	}

	now := l.opts.clock()
	today := DateOf(now)

	var applied Transaction
	err := l.store.WithTx(ctx, func(ltx LedgerTx) error {
		acct, err := lockActive(ctx, ltx, employeeID)
		if err != nil {
			return err
		}
		if !acct.CurrentBalance.IsPositive() {
			return &NothingToSettleError{EmployeeID: employeeID, Balance: acct.CurrentBalance}
		}
		tx := Transaction{
			EmployeeID:  employeeID,
			Type:        TxSalaryPayment,
			Amount:      acct.CurrentBalance,
			Description: settlementDescription,
			Date:        today,
			CreatedBy:   SystemActor,
			CreatedAt:   now,
		}
		applied, _, err = applyLocked(ctx, ltx, acct, tx, func(a *Account) {
			a.PaymentStatus = PaymentPaid
			a.LastPaymentDate = today.Ptr()
		})
		return err
	})
	if err != nil {
		return false, err
	}

	l.opts.logger.Info("account settled",
		zap.Int64("employee_id", employeeID),
		zap.Int64("transaction_id", applied.ID),
		zap.String("amount", FormatMoney(applied.Amount)),
	)
	return true, nil
}

// Transactions returns the employee's most recent entries, newest first.
func (l *Ledger) Transactions(ctx context.Context, employeeID int64, limit int) ([]Transaction, error) {
	if _, err := l.store.Account(ctx, employeeID); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = DefaultTransactionLimit
	case limit > MaxTransactionLimit:
		limit = MaxTransactionLimit
	}
	return l.store.Transactions(ctx, employeeID, limit)
}

// Reconcile replays the employee's log and compares it with the cached aggregates.
// It runs under the row lock so no mutation interleaves with the replay.
func (l *Ledger) Reconcile(ctx context.Context, employeeID int64) (*Reconciliation, error) {
	var rec Reconciliation
	err := l.store.WithTx(ctx, func(ltx LedgerTx) error {
		acct, err := ltx.LockAccount(ctx, employeeID)
		if err != nil {
			return err
		}
		txs, err := ltx.Transactions(ctx, employeeID)
		if err != nil {
			return err
		}
		rec = Replay(acct, txs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !rec.Consistent {
		l.opts.logger.Warn("ledger inconsistent",
			zap.Int64("employee_id", employeeID),
			zap.String("expected_balance", FormatMoney(rec.ExpectedBalance)),
			zap.String("actual_balance", FormatMoney(rec.ActualBalance)),
		)
	}
	return &rec, nil
}

// Replay folds txs over the opening balance of acct.
func Replay(acct Account, txs []Transaction) Reconciliation {
	expected := Account{
		OpeningBalance:  acct.OpeningBalance,
		CurrentBalance:  acct.OpeningBalance,
		TotalBonuses:    decimal.Zero,
		TotalDeductions: decimal.Zero,
	}
	for _, tx := range txs {
		expected = expected.Apply(tx.Effect())
	}
	rec := Reconciliation{
		EmployeeID:         acct.EmployeeID,
		Transactions:       len(txs),
		ExpectedBalance:    expected.CurrentBalance,
		ActualBalance:      acct.CurrentBalance,
		ExpectedBonuses:    expected.TotalBonuses,
		ActualBonuses:      acct.TotalBonuses,
		ExpectedDeductions: expected.TotalDeductions,
		ActualDeductions:   acct.TotalDeductions,
	}
	rec.Consistent = rec.ExpectedBalance.Equal(rec.ActualBalance) &&
		rec.ExpectedBonuses.Equal(rec.ActualBonuses) &&
		rec.ExpectedDeductions.Equal(rec.ActualDeductions)
	return rec
}

func lockActive(ctx context.Context, ltx LedgerTx, employeeID int64) (Account, error) {
	acct, err := ltx.LockAccount(ctx, employeeID)
	if err != nil {
		return Account{}, err
	}
	if !acct.IsActive {
		return Account{}, &EmployeeNotFoundError{EmployeeID: employeeID}
	}
	return acct, nil
}

// applyLocked inserts tx and folds its effect into acct. The row must
// already be locked by ltx. mutate, if set, adjusts the account before
// it is written.
func applyLocked(ctx context.Context, ltx LedgerTx, acct Account, tx Transaction, mutate func(*Account)) (Transaction, Account, error) {
	inserted, err := ltx.InsertTransaction(ctx, tx)
	if err != nil {
		return Transaction{}, Account{}, fmt.Errorf("insert transaction: %w", err)
	}

	next := acct.Apply(tx.Effect())
	next.UpdatedAt = tx.CreatedAt
	if mutate != nil {
		mutate(&next)
	}
	if err := ltx.UpdateAccount(ctx, next); err != nil {
		return Transaction{}, Account{}, fmt.Errorf("update account: %w", err)
	}
	return inserted, next, nil
}
