package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nordlight/backtester/errs"
	"github.com/nordlight/backtester/internal/pricing"
)

const barSelectSQL = `
SELECT open, high, low, close, volume
FROM daily_bars
WHERE symbol = $1 AND trading_date = $2
`

// Source implements pricing.DataSource against a daily_bars table.
type Source struct {
	pool *pgxpool.Pool
}

// New constructs a Source over an already-connected pool. Callers should
// run ApplyMigrations once before first use.
func New(pool *pgxpool.Pool) *Source {
	return &Source{pool: pool}
}

// Bar implements pricing.DataSource.
func (s *Source) Bar(symbol string, date time.Time) (pricing.OHLCV, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	row := s.pool.QueryRow(ctx, barSelectSQL, symbol, date.Format("2006-01-02"))

	bar := pricing.OHLCV{Symbol: symbol, Date: date}
	err := row.Scan(&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.OHLCV{}, errs.New("pricesource/postgres", errs.KindOutOfRange,
			errs.WithMessage("no bar for "+symbol+" on "+date.Format("2006-01-02")))
	}
	if err != nil {
		return pricing.OHLCV{}, errs.New("pricesource/postgres", errs.KindPriceUnavailable,
			errs.WithMessage("query daily bar"), errs.WithCause(err))
	}
	return bar, nil
}

// BarContext is the context-aware variant of Bar, used by callers (e.g.
// the async prefetch cache) that already hold a request-scoped context.
func (s *Source) BarContext(ctx context.Context, symbol string, date time.Time) (pricing.OHLCV, error) {
	row := s.pool.QueryRow(ctx, barSelectSQL, symbol, date.Format("2006-01-02"))

	bar := pricing.OHLCV{Symbol: symbol, Date: date}
	err := row.Scan(&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.OHLCV{}, errs.New("pricesource/postgres", errs.KindOutOfRange,
			errs.WithMessage("no bar for "+symbol+" on "+date.Format("2006-01-02")))
	}
	if err != nil {
		return pricing.OHLCV{}, errs.New("pricesource/postgres", errs.KindPriceUnavailable,
			errs.WithMessage("query daily bar"), errs.WithCause(err))
	}
	return bar, nil
}
