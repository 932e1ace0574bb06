package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Instrument mirrors a stocks/crypto row (spec §3).
type Instrument struct {
	Symbol    string
	Name      string
	Sector    string
	MarketCap float64
}

// UpsertStock records or updates a tracked stock symbol.
func (s *Store) UpsertStock(symbol, name, sector string, marketCap float64) error {
	_, err := s.conn.Exec(`
		INSERT INTO stocks (symbol, name, sector, market_cap, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT(symbol) DO UPDATE SET
			name = excluded.name, sector = excluded.sector, market_cap = excluded.market_cap,
			updated_at = excluded.updated_at
	`, symbol, name, sector, marketCap)
	if err != nil {
		return fmt.Errorf("store: upsert stock: %w", err)
	}
	return nil
}

// UpsertCrypto records or updates a tracked crypto symbol.
func (s *Store) UpsertCrypto(symbol, name, sector string, marketCap float64) error {
	_, err := s.conn.Exec(`
		INSERT INTO crypto (symbol, name, sector, market_cap, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT(symbol) DO UPDATE SET
			name = excluded.name, sector = excluded.sector, market_cap = excluded.market_cap,
			updated_at = excluded.updated_at
	`, symbol, name, sector, marketCap)
	if err != nil {
		return fmt.Errorf("store: upsert crypto: %w", err)
	}
	return nil
}

// PricePoint mirrors a price_history row.
type PricePoint struct {
	Symbol    string
	AssetType string
	Timestamp string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// InsertPriceHistoryBatch atomically appends a batch of OHLCV candles
// for one symbol, mirroring the odds batch-insert shape (spec §4.1).
func (s *Store) InsertPriceHistoryBatch(points []PricePoint) error {
	return s.WithTx(context.Background(), func(tx *sql.Tx) error {
		for _, p := range points {
			_, err := tx.Exec(`
				INSERT INTO price_history (symbol, asset_type, timestamp, open, high, low, close, volume)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(symbol, asset_type, timestamp) DO UPDATE SET
					open = excluded.open, high = excluded.high, low = excluded.low,
					close = excluded.close, volume = excluded.volume
			`, p.Symbol, p.AssetType, p.Timestamp, p.Open, p.High, p.Low, p.Close, p.Volume)
			if err != nil {
				return fmt.Errorf("store: insert price history batch: %w", err)
			}
		}
		return nil
	})
}

// GetPriceHistory returns OHLCV candles for a symbol ordered oldest to
// newest, suitable for direct feed into go-talib indicator windows.
func (s *Store) GetPriceHistory(symbol, assetType string, limit int) ([]PricePoint, error) {
	query := `SELECT symbol, asset_type, timestamp, open, high, low, close, volume
		FROM price_history WHERE symbol = ? AND asset_type = ? ORDER BY timestamp DESC`
	args := []interface{}{symbol, assetType}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: get price history: %w", err)
	}
	defer rows.Close()

	var points []PricePoint
	for rows.Next() {
		var p PricePoint
		if err := rows.Scan(&p.Symbol, &p.AssetType, &p.Timestamp, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return nil, fmt.Errorf("store: scan price point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

// Indicator mirrors one named computed-value row (rsi, macd,
// macd_signal, bb_upper, bb_lower, atr — spec §4.6) for a symbol at a
// point in time. One row per indicator name, not one wide row, so new
// indicator kinds never require a migration.
type Indicator struct {
	Symbol    string
	AssetType string
	Name      string
	Value     float64
	Timestamp string
}

// InsertIndicators appends a batch of named indicator values computed
// together for one symbol/timestamp (e.g. the RSI/MACD/BBANDS/ATR set
// produced by a single go-talib pass). Indicator history is
// append-only: no upsert, each call is new rows.
func (s *Store) InsertIndicators(inds []Indicator) error {
	return s.WithTx(context.Background(), func(tx *sql.Tx) error {
		for _, ind := range inds {
			_, err := tx.Exec(`
				INSERT INTO indicators (symbol, asset_type, name, value, timestamp)
				VALUES (?, ?, ?, ?, ?)
			`, ind.Symbol, ind.AssetType, ind.Name, ind.Value, ind.Timestamp)
			if err != nil {
				return fmt.Errorf("store: insert indicator %s: %w", ind.Name, err)
			}
		}
		return nil
	})
}

// LatestIndicators returns the most recent value of every indicator
// name recorded for a symbol, keyed by name.
func (s *Store) LatestIndicators(symbol, assetType string) (map[string]float64, error) {
	rows, err := s.conn.Query(`
		SELECT name, value FROM indicators
		WHERE symbol = ? AND asset_type = ? AND timestamp = (
			SELECT MAX(timestamp) FROM indicators WHERE symbol = ? AND asset_type = ?
		)
	`, symbol, assetType, symbol, assetType)
	if err != nil {
		return nil, fmt.Errorf("store: latest indicators: %w", err)
	}
	defer rows.Close()

	result := make(map[string]float64)
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("store: scan indicator: %w", err)
		}
		result[name] = value
	}
	return result, rows.Err()
}

// Trade mirrors an append-only trades row: every execution, buy or
// sell, is immutable once written (spec §3).
type Trade struct {
	ID          int64
	Symbol      string
	AssetType   string
	TradeType   string // buy, sell
	Quantity    float64
	Price       float64
	TotalCost   float64
	Strategy    string
	RealizedPnL *float64
	Timestamp   string
}

// InsertTrade appends a trade execution record.
func (s *Store) InsertTrade(t Trade) (int64, error) {
	res, err := s.conn.Exec(`
		INSERT INTO trades (symbol, asset_type, trade_type, quantity, price, total_cost, strategy, realized_pnl, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
	`, t.Symbol, t.AssetType, t.TradeType, t.Quantity, t.Price, t.TotalCost, t.Strategy, t.RealizedPnL)
	if err != nil {
		return 0, fmt.Errorf("store: insert trade: %w", err)
	}
	return res.LastInsertId()
}

// Position mirrors the positions table: the current open holding for a
// symbol, or absent if closed (spec §3: "one row per currently open
// position; closing deletes the row").
type Position struct {
	Symbol         string
	AssetType      string
	Quantity       float64
	AvgEntryPrice  float64
	CurrentPrice   float64
	UnrealizedPnL  float64
	Strategy       string
	StopLoss       *float64
	TakeProfit     *float64
	OpenedAt       string
}

// UpsertPosition opens a new position or averages into an existing one.
func (s *Store) UpsertPosition(p Position) error {
	_, err := s.conn.Exec(`
		INSERT INTO positions (symbol, asset_type, quantity, avg_entry_price, current_price,
			unrealized_pnl, strategy, stop_loss, take_profit, opened_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(symbol, asset_type) DO UPDATE SET
			quantity = excluded.quantity,
			avg_entry_price = excluded.avg_entry_price,
			current_price = excluded.current_price,
			unrealized_pnl = excluded.unrealized_pnl,
			stop_loss = excluded.stop_loss,
			take_profit = excluded.take_profit
	`, p.Symbol, p.AssetType, p.Quantity, p.AvgEntryPrice, p.CurrentPrice,
		p.UnrealizedPnL, p.Strategy, p.StopLoss, p.TakeProfit)
	if err != nil {
		return fmt.Errorf("store: upsert position: %w", err)
	}
	return nil
}

// ClosePosition removes a position row entirely once fully exited.
func (s *Store) ClosePosition(symbol, assetType string) error {
	_, err := s.conn.Exec(`DELETE FROM positions WHERE symbol = ? AND asset_type = ?`, symbol, assetType)
	if err != nil {
		return fmt.Errorf("store: close position: %w", err)
	}
	return nil
}

// GetOpenPositions returns all currently open positions.
func (s *Store) GetOpenPositions() ([]Position, error) {
	rows, err := s.conn.Query(`
		SELECT symbol, asset_type, quantity, avg_entry_price, COALESCE(current_price, 0),
			COALESCE(unrealized_pnl, 0), COALESCE(strategy, ''), stop_loss, take_profit, opened_at
		FROM positions
	`)
	if err != nil {
		return nil, fmt.Errorf("store: get open positions: %w", err)
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.Symbol, &p.AssetType, &p.Quantity, &p.AvgEntryPrice, &p.CurrentPrice,
			&p.UnrealizedPnL, &p.Strategy, &p.StopLoss, &p.TakeProfit, &p.OpenedAt); err != nil {
			return nil, fmt.Errorf("store: scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// PortfolioSnapshot mirrors an append-only portfolio valuation row.
type PortfolioSnapshot struct {
	CashBalance         float64
	TotalPositionValue  float64
	TotalPortfolioValue float64
	UnrealizedPnL       float64
	RealizedPnL         float64
	Timestamp           string
}

// InsertPortfolioSnapshot appends a point-in-time portfolio valuation.
func (s *Store) InsertPortfolioSnapshot(snap PortfolioSnapshot) error {
	_, err := s.conn.Exec(`
		INSERT INTO portfolio (cash_balance, total_position_value, total_portfolio_value,
			unrealized_pnl, realized_pnl, timestamp)
		VALUES (?, ?, ?, ?, ?, datetime('now'))
	`, snap.CashBalance, snap.TotalPositionValue, snap.TotalPortfolioValue, snap.UnrealizedPnL, snap.RealizedPnL)
	if err != nil {
		return fmt.Errorf("store: insert portfolio snapshot: %w", err)
	}
	return nil
}

// LatestPortfolioSnapshot returns the most recent valuation, or nil.
func (s *Store) LatestPortfolioSnapshot() (*PortfolioSnapshot, error) {
	row := s.conn.QueryRow(`
		SELECT cash_balance, total_position_value, total_portfolio_value, unrealized_pnl, realized_pnl, timestamp
		FROM portfolio ORDER BY timestamp DESC, id DESC LIMIT 1
	`)

	var snap PortfolioSnapshot
	if err := row.Scan(&snap.CashBalance, &snap.TotalPositionValue, &snap.TotalPortfolioValue,
		&snap.UnrealizedPnL, &snap.RealizedPnL, &snap.Timestamp); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		return nil, fmt.Errorf("store: latest portfolio snapshot: %w", err)
	}
	return &snap, nil
}
