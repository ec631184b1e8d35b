package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/warp/payroll-ledger/payroll"
)

// =============================================================================
// LEDGER STORE
// =============================================================================

func (s *Store) Account(ctx context.Context, employeeID int64) (payroll.Account, error) {
	var row accountRow
	err := s.withConn(ctx, "account", func(conn *sqlx.Conn) error {
		return sqlx.GetContext(ctx, conn, &row,
			s.rebind(`SELECT `+accountColumns+` FROM employees WHERE id = ?`), employeeID)
	})
	if isNoRows(err) {
		return payroll.Account{}, &payroll.EmployeeNotFoundError{EmployeeID: employeeID}
	}
	if err != nil {
		return payroll.Account{}, fmt.Errorf("failed to load account: %w", err)
	}
	return row.toAccount(), nil
}

func (s *Store) Transactions(ctx context.Context, employeeID int64, limit int) ([]payroll.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM financial_transactions
		WHERE employee_id = ?
		ORDER BY transaction_date DESC, created_at DESC, id DESC`
	args := []any{employeeID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []transactionRow
	err := s.withConn(ctx, "transactions", func(conn *sqlx.Conn) error {
		return sqlx.SelectContext(ctx, conn, &rows, s.rebind(query), args...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	return toTransactions(rows), nil
}

func toTransactions(rows []transactionRow) []payroll.Transaction {
	result := make([]payroll.Transaction, len(rows))
	for i, r := range rows {
		result[i] = r.toTransaction()
	}
	return result
}

// =============================================================================
// LEDGER TX - bound to one open transaction
// =============================================================================

type ledgerTx struct {
	tx    *sqlx.Tx
	store *Store
}

func (t *ledgerTx) LockAccount(ctx context.Context, employeeID int64) (payroll.Account, error) {
	var row accountRow
	query := `SELECT ` + accountColumns + ` FROM employees WHERE id = ?` + t.store.dialect.LockClause()
	err := t.tx.GetContext(ctx, &row, t.tx.Rebind(query), employeeID)
	if isNoRows(err) {
		return payroll.Account{}, &payroll.EmployeeNotFoundError{EmployeeID: employeeID}
	}
	if err != nil {
		return payroll.Account{}, fmt.Errorf("failed to lock account: %w", err)
	}
	return row.toAccount(), nil
}

func (t *ledgerTx) InsertTransaction(ctx context.Context, tx payroll.Transaction) (payroll.Transaction, error) {
	err := t.tx.QueryRowxContext(ctx, t.tx.Rebind(`
		INSERT INTO financial_transactions
			(employee_id, transaction_type, amount, description, transaction_date, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		tx.EmployeeID, string(tx.Type), tx.Amount.StringFixed(payroll.MoneyScale), nullString(tx.Description),
		tx.Date.String(), tx.CreatedBy, tx.CreatedAt,
	).Scan(&tx.ID)
	if err != nil {
		return payroll.Transaction{}, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return tx, nil
}

func (t *ledgerTx) UpdateAccount(ctx context.Context, acct payroll.Account) error {
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		UPDATE employees SET
			current_balance = ?,
			total_bonuses = ?,
			total_deductions = ?,
			payment_status = ?,
			last_payment_date = ?,
			updated_at = ?
		WHERE id = ?`),
		acct.CurrentBalance.StringFixed(payroll.MoneyScale),
		acct.TotalBonuses.StringFixed(payroll.MoneyScale),
		acct.TotalDeductions.StringFixed(payroll.MoneyScale),
		string(acct.PaymentStatus),
		dateArg(acct.LastPaymentDate),
		acct.UpdatedAt,
		acct.EmployeeID,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &payroll.EmployeeNotFoundError{EmployeeID: acct.EmployeeID}
	}
	return nil
}

func (t *ledgerTx) Transactions(ctx context.Context, employeeID int64) ([]payroll.Transaction, error) {
	var rows []transactionRow
	err := t.tx.SelectContext(ctx, &rows, t.tx.Rebind(`SELECT `+transactionColumns+`
		FROM financial_transactions
		WHERE employee_id = ?
		ORDER BY transaction_date, id`), employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	return toTransactions(rows), nil
}
