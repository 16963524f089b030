// Package csv implements a pricing.DataSource backed by a single CSV file
// indexed by (date, ticker), the simulator's default historical data
// format.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nordlight/backtester/errs"
	"github.com/nordlight/backtester/internal/pricing"
)

// expectedColumns are the header names this source understands, in any
// order; "ticker" and "date" are required, the OHLCV fields are optional
// but at least "close" must be present.
var expectedColumns = []string{"date", "ticker", "open", "high", "low", "close", "volume"}

// Source loads an entire OHLCV CSV file into memory, keyed by symbol and
// trading date. Loading is eager: the whole file is parsed once at
// construction, matching the source system's pandas read_csv-then-index
// approach rather than streaming row by row.
type Source struct {
	bars map[string]map[string]pricing.OHLCV // symbol -> "2006-01-02" -> bar
}

// Open reads and indexes the CSV file at path. The file must have a
// header row containing at least "date", "ticker", and "close"; "open",
// "high", "low", and "volume" are read when present and default to zero.
func Open(path string) (*Source, error) {
	// #nosec G304 -- path is operator-provided via configuration.
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.New("pricesource/csv", errs.KindConfiguration,
			errs.WithMessage("open price file"), errs.WithCause(err))
	}
	defer f.Close()
	return load(f)
}

func load(r io.Reader) (*Source, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, errs.New("pricesource/csv", errs.KindSchemaValidation,
			errs.WithMessage("read csv header"), errs.WithCause(err))
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	dateIdx, hasDate := col["date"]
	tickerIdx, hasTicker := col["ticker"]
	closeIdx, hasClose := col["close"]
	if !hasDate || !hasTicker || !hasClose {
		return nil, errs.New("pricesource/csv", errs.KindSchemaValidation,
			errs.WithMessage(fmt.Sprintf("csv header missing required columns, expected a subset of %v", expectedColumns)))
	}

	src := &Source{bars: make(map[string]map[string]pricing.OHLCV)}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.New("pricesource/csv", errs.KindSchemaValidation,
				errs.WithMessage("read csv record"), errs.WithCause(err))
		}

		dateStr := strings.TrimSpace(record[dateIdx])
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, errs.New("pricesource/csv", errs.KindSchemaValidation,
				errs.WithMessage("parse date "+dateStr), errs.WithCause(err))
		}
		symbol := strings.TrimSpace(record[tickerIdx])

		bar := pricing.OHLCV{Date: date, Symbol: symbol}
		bar.Open = floatCol(record, col, "open")
		bar.High = floatCol(record, col, "high")
		bar.Low = floatCol(record, col, "low")
		bar.Volume = floatCol(record, col, "volume")
		closeVal, err := strconv.ParseFloat(strings.TrimSpace(record[closeIdx]), 64)
		if err != nil {
			return nil, errs.New("pricesource/csv", errs.KindSchemaValidation,
				errs.WithMessage("parse close for "+symbol), errs.WithCause(err))
		}
		bar.Close = closeVal
		if bar.Open == 0 {
			bar.Open = closeVal
		}

		if _, ok := src.bars[symbol]; !ok {
			src.bars[symbol] = make(map[string]pricing.OHLCV)
		}
		src.bars[symbol][dateStr] = bar
	}
	return src, nil
}

func floatCol(record []string, col map[string]int, name string) float64 {
	idx, ok := col[name]
	if !ok || idx >= len(record) {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(record[idx]), 64)
	if err != nil {
		return 0
	}
	return v
}

// Bar implements pricing.DataSource.
func (s *Source) Bar(symbol string, date time.Time) (pricing.OHLCV, error) {
	bySymbol, ok := s.bars[symbol]
	if !ok {
		return pricing.OHLCV{}, errs.New("pricesource/csv", errs.KindSymbolNotFound,
			errs.WithMessage("unknown symbol "+symbol))
	}
	key := date.Format("2006-01-02")
	bar, ok := bySymbol[key]
	if !ok {
		return pricing.OHLCV{}, errs.New("pricesource/csv", errs.KindOutOfRange,
			errs.WithMessage(fmt.Sprintf("no bar for %s on %s", symbol, key)))
	}
	return bar, nil
}
