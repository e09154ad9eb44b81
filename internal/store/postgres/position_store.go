package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ksenkin/tradediary/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `id, owner_id, symbol, status, source,
	quantity, remaining_quantity, entry_price, entry_time, exit_price, exit_time,
	invested_amount, received_amount, commission_amount,
	profit_loss, profit_loss_percent, duration_minutes,
	buy_exec_id, sell_exec_id, created_at`

func scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var status string

	err := row.Scan(
		&p.ID, &p.OwnerID, &p.Symbol, &status, &p.Source,
		&p.Quantity, &p.RemainingQuantity, &p.EntryPrice, &p.EntryTime,
		&p.ExitPrice, &p.ExitTime,
		&p.InvestedAmount, &p.ReceivedAmount, &p.CommissionAmount,
		&p.ProfitLoss, &p.ProfitLossPercent, &p.DurationMinutes,
		&p.BuyExecID, &p.SellExecID, &p.CreatedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}
	p.Status = domain.PositionStatus(status)
	return p, nil
}

func scanPositions(rows pgx.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// Create inserts the position and assigns its database ID.
func (s *PositionStore) Create(ctx context.Context, p *domain.Position) error {
	const query = `
		INSERT INTO positions (
			owner_id, symbol, status, source,
			quantity, remaining_quantity, entry_price, entry_time, exit_price, exit_time,
			invested_amount, received_amount, commission_amount,
			profit_loss, profit_loss_percent, duration_minutes,
			buy_exec_id, sell_exec_id, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10,
			$11, $12, $13,
			$14, $15, $16,
			$17, $18, $19
		) RETURNING id`

	err := s.pool.QueryRow(ctx, query,
		p.OwnerID, p.Symbol, string(p.Status), p.Source,
		p.Quantity, p.RemainingQuantity, p.EntryPrice, p.EntryTime, p.ExitPrice, p.ExitTime,
		p.InvestedAmount, p.ReceivedAmount, p.CommissionAmount,
		p.ProfitLoss, p.ProfitLossPercent, p.DurationMinutes,
		p.BuyExecID, p.SellExecID, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("postgres: create position: %w", err)
	}
	return nil
}

// Update replaces all mutable fields of an existing position.
func (s *PositionStore) Update(ctx context.Context, p domain.Position) error {
	const query = `
		UPDATE positions SET
			symbol              = $3,
			status              = $4,
			source              = $5,
			quantity            = $6,
			remaining_quantity  = $7,
			entry_price         = $8,
			entry_time          = $9,
			exit_price          = $10,
			exit_time           = $11,
			invested_amount     = $12,
			received_amount     = $13,
			commission_amount   = $14,
			profit_loss         = $15,
			profit_loss_percent = $16,
			duration_minutes    = $17,
			sell_exec_id        = $18
		WHERE id = $1 AND owner_id = $2`

	tag, err := s.pool.Exec(ctx, query,
		p.ID, p.OwnerID,
		p.Symbol, string(p.Status), p.Source,
		p.Quantity, p.RemainingQuantity, p.EntryPrice, p.EntryTime,
		p.ExitPrice, p.ExitTime,
		p.InvestedAmount, p.ReceivedAmount, p.CommissionAmount,
		p.ProfitLoss, p.ProfitLossPercent, p.DurationMinutes,
		p.SellExecID,
	)
	if err != nil {
		return fmt.Errorf("postgres: update position %d: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID retrieves a single position scoped to its owner.
func (s *PositionStore) GetByID(ctx context.Context, ownerID, id int64) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE id = $1 AND owner_id = $2`,
		id, ownerID)

	p, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %d: %w", id, err)
	}
	return p, nil
}

// OldestOpen returns the FIFO head of the open queue for (owner, symbol).
func (s *PositionStore) OldestOpen(ctx context.Context, ownerID int64, symbol string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE owner_id = $1 AND symbol = $2 AND status = 'OPEN' AND remaining_quantity > 0
		 ORDER BY entry_time ASC, id ASC
		 LIMIT 1`, ownerID, symbol)

	p, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: oldest open %s: %w", symbol, err)
	}
	return p, nil
}

// HasBuyExec reports whether the owner already has a position for this buy
// execution ID.
func (s *PositionStore) HasBuyExec(ctx context.Context, ownerID int64, buyExecID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM positions WHERE owner_id = $1 AND buy_exec_id = $2)`,
		ownerID, buyExecID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: has buy exec %s: %w", buyExecID, err)
	}
	return exists, nil
}

// ListOpen returns every open position for the owner.
func (s *PositionStore) ListOpen(ctx context.Context, ownerID int64) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE owner_id = $1 AND status = 'OPEN'
		 ORDER BY id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open positions: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan open positions: %w", err)
	}
	return positions, nil
}

// List returns positions newest-entry first, optionally filtered by status.
func (s *PositionStore) List(ctx context.Context, ownerID int64, status domain.PositionStatus, opts domain.ListOpts) ([]domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions WHERE owner_id = $1`
	args := []any{ownerID}
	argIdx := 2

	if status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(status))
		argIdx++
	}

	query += " ORDER BY entry_time DESC, id DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan positions: %w", err)
	}
	return positions, nil
}

// Stats aggregates closed-position performance in a single query.
func (s *PositionStore) Stats(ctx context.Context, ownerID int64) (domain.Stats, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'OPEN'),
			COUNT(*) FILTER (WHERE status = 'CLOSED'),
			COALESCE(SUM(profit_loss) FILTER (WHERE status = 'CLOSED'), 0),
			COALESCE(AVG(profit_loss) FILTER (WHERE status = 'CLOSED'), 0),
			COALESCE(AVG(profit_loss_percent) FILTER (WHERE status = 'CLOSED'), 0),
			COALESCE(AVG(duration_minutes) FILTER (WHERE status = 'CLOSED'), 0),
			COUNT(*) FILTER (WHERE status = 'CLOSED' AND profit_loss > 0),
			COALESCE(AVG(profit_loss) FILTER (WHERE status = 'CLOSED' AND profit_loss > 0), 0),
			COALESCE(AVG(profit_loss) FILTER (WHERE status = 'CLOSED' AND profit_loss < 0), 0)
		FROM positions
		WHERE owner_id = $1`

	var st domain.Stats
	err := s.pool.QueryRow(ctx, query, ownerID).Scan(
		&st.TotalTrades, &st.OpenTrades, &st.ClosedTrades,
		&st.TotalProfitLoss, &st.AvgProfitLoss, &st.AvgProfitLossPct,
		&st.AvgDurationMinutes,
		&st.Wins, &st.AvgWin, &st.AvgLoss,
	)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("postgres: stats: %w", err)
	}

	if st.ClosedTrades > 0 {
		st.WinRatePercent = float64(st.Wins) / float64(st.ClosedTrades) * 100
	}
	return st, nil
}

var _ domain.PositionStore = (*PositionStore)(nil)
