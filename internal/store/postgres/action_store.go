package postgres

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinafi/leverbot/internal/domain"
)

// ActionStore implements domain.ActionStore using PostgreSQL. Amounts are
// stored as NUMERIC(78,0) so any uint256 value round-trips without loss.
type ActionStore struct {
	pool *pgxpool.Pool
}

// NewActionStore creates a new ActionStore backed by the given connection pool.
func NewActionStore(pool *pgxpool.Pool) *ActionStore {
	return &ActionStore{pool: pool}
}

// Create inserts a new action record.
func (s *ActionStore) Create(ctx context.Context, a domain.Action) error {
	const query = `
		INSERT INTO actions (
			request_id, wallet, flow, pool, collateral_token,
			collateral_amount, debt_amount, leverage,
			tx_hash, status, error_code, error_detail,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12,
			$13, NOW()
		)`

	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, query,
		a.RequestID, domain.NormalizeAddress(a.Wallet), string(a.Flow),
		nullable(a.Pool), nullable(a.CollateralToken),
		a.CollateralAmount.Value().String(), a.DebtAmount.Value().String(),
		a.Leverage,
		nullable(a.TxHash), string(a.Status),
		nullable(a.ErrorCode), nullable(a.ErrorDetail),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create action %s: %w", a.RequestID, err)
	}
	return nil
}

// UpdateStatus changes the status of an action, recording the transaction
// hash when one is known.
func (s *ActionStore) UpdateStatus(ctx context.Context, requestID string, status domain.ActionStatus, txHash string) error {
	const query = `
		UPDATE actions
		SET status = $1, tx_hash = COALESCE($2, tx_hash), updated_at = NOW()
		WHERE request_id = $3`

	tag, err := s.pool.Exec(ctx, query, string(status), nullable(txHash), requestID)
	if err != nil {
		return fmt.Errorf("postgres: update action status %s: %w", requestID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetError marks an action failed with its classified error code and detail.
func (s *ActionStore) SetError(ctx context.Context, requestID string, code, detail string) error {
	const query = `
		UPDATE actions
		SET status = $1, error_code = $2, error_detail = $3, updated_at = NOW()
		WHERE request_id = $4`

	tag, err := s.pool.Exec(ctx, query, string(domain.ActionStatusFailed), code, detail, requestID)
	if err != nil {
		return fmt.Errorf("postgres: set action error %s: %w", requestID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const actionSelectCols = `request_id, wallet, flow, pool, collateral_token,
	collateral_amount, debt_amount, leverage,
	tx_hash, status, error_code, error_detail,
	created_at, updated_at`

func scanActionFromRow(scanner interface{ Scan(dest ...any) error }) (domain.Action, error) {
	var a domain.Action
	var flow, status string
	var pool, collateralToken, txHash, errorCode, errorDetail *string
	var collateralAmount, debtAmount string

	err := scanner.Scan(
		&a.RequestID, &a.Wallet, &flow, &pool, &collateralToken,
		&collateralAmount, &debtAmount, &a.Leverage,
		&txHash, &status, &errorCode, &errorDetail,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Action{}, err
	}

	a.Flow = domain.Flow(flow)
	a.Status = domain.ActionStatus(status)
	a.Pool = deref(pool)
	a.CollateralToken = deref(collateralToken)
	a.TxHash = deref(txHash)
	a.ErrorCode = deref(errorCode)
	a.ErrorDetail = deref(errorDetail)

	coll, ok := new(big.Int).SetString(collateralAmount, 10)
	if !ok {
		return domain.Action{}, fmt.Errorf("invalid collateral_amount %q", collateralAmount)
	}
	debt, ok := new(big.Int).SetString(debtAmount, 10)
	if !ok {
		return domain.Action{}, fmt.Errorf("invalid debt_amount %q", debtAmount)
	}
	a.CollateralAmount = domain.NewBigInt(coll)
	a.DebtAmount = domain.NewBigInt(debt)

	return a, nil
}

func scanActionRows(rows pgx.Rows) ([]domain.Action, error) {
	var actions []domain.Action
	for rows.Next() {
		a, err := scanActionFromRow(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// GetByID retrieves a single action by request ID.
func (s *ActionStore) GetByID(ctx context.Context, requestID string) (domain.Action, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+actionSelectCols+` FROM actions WHERE request_id = $1`, requestID)

	a, err := scanActionFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Action{}, domain.ErrNotFound
		}
		return domain.Action{}, fmt.Errorf("postgres: get action %s: %w", requestID, err)
	}
	return a, nil
}

// ListByWallet returns actions for a wallet with pagination and optional
// time filtering. The wallet address is normalized before matching.
func (s *ActionStore) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.Action, error) {
	query := `SELECT ` + actionSelectCols + ` FROM actions WHERE wallet = $1`
	args := []any{domain.NormalizeAddress(wallet)}

	query, args = applyListOpts(query, args, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list actions by wallet: %w", err)
	}
	defer rows.Close()

	actions, err := scanActionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan actions by wallet: %w", err)
	}
	return actions, nil
}

// ListByStatus returns actions in a given status, oldest filters first. The
// receipt watcher uses this to pick up submitted and timed-out actions.
func (s *ActionStore) ListByStatus(ctx context.Context, status domain.ActionStatus, opts domain.ListOpts) ([]domain.Action, error) {
	query := `SELECT ` + actionSelectCols + ` FROM actions WHERE status = $1`
	args := []any{string(status)}

	query, args = applyListOpts(query, args, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list actions by status: %w", err)
	}
	defer rows.Close()

	actions, err := scanActionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan actions by status: %w", err)
	}
	return actions, nil
}

// ListBefore returns all actions created before the cutoff, oldest first, in
// the order the archiver writes them out.
func (s *ActionStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Action, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+actionSelectCols+` FROM actions
		 WHERE created_at < $1 ORDER BY created_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list actions before %s: %w", before, err)
	}
	defer rows.Close()

	actions, err := scanActionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan actions before cutoff: %w", err)
	}
	return actions, nil
}

// DeleteBefore removes actions created before the cutoff, returning the
// number of deleted rows. The archiver calls this after a successful export.
func (s *ActionStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM actions WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete actions before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

// applyListOpts appends the shared time-filter, ordering and pagination
// clauses to a query.
func applyListOpts(query string, args []any, opts domain.ListOpts) (string, []any) {
	argIdx := len(args) + 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return query, args
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Compile-time interface check.
var _ domain.ActionStore = (*ActionStore)(nil)
