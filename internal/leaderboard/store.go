package leaderboard

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schema string

// StoreConfig holds database configuration.
type StoreConfig struct {
	URL            string
	MaxConnections int
	MaxIdle        int
	ConnMaxLife    time.Duration
	// Limit caps the number of leaderboard rows.
	Limit int
}

// Store reads trading totals from Postgres.
type Store struct {
	db    *sql.DB
	limit int
}

// Trade is one executed swap attributed to a trader.
type Trade struct {
	ChainID    uint64
	Address    common.Address
	Aggregator string
	TxHash     common.Hash
	VolumeUSD  float64
	PnLUSD     float64
}

// NewStore opens and pings the database.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	if cfg.ConnMaxLife > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLife)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 100
	}
	return &Store{db: db, limit: limit}, nil
}

// InitSchema creates the tables if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// RecordTrade inserts a trade; a repeated tx hash is ignored.
func (s *Store) RecordTrade(ctx context.Context, t Trade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (chain_id, address, aggregator, tx_hash, volume_usd, pnl_usd)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (chain_id, tx_hash) DO NOTHING`,
		t.ChainID, strings.ToLower(t.Address.Hex()), t.Aggregator, t.TxHash.Hex(), t.VolumeUSD, t.PnLUSD,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

func (s *Store) Leaderboard(ctx context.Context, chainID uint64) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, SUM(pnl_usd), SUM(volume_usd), COUNT(*)
		FROM trades
		WHERE chain_id = $1
		GROUP BY address
		ORDER BY SUM(pnl_usd) DESC, SUM(volume_usd) DESC, address
		LIMIT $2`, chainID, s.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e    Entry
			addr string
		)
		if err := rows.Scan(&addr, &e.PnLUSD, &e.VolumeUSD, &e.Trades); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		e.Address = common.HexToAddress(addr)
		e.Rank = len(out) + 1
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) UserVolume(ctx context.Context, chainID uint64, address common.Address) (Volume, error) {
	v := Volume{Address: address}
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(volume_usd), 0), COUNT(*)
		FROM trades
		WHERE chain_id = $1 AND address = $2`,
		chainID, strings.ToLower(address.Hex()),
	).Scan(&v.VolumeUSD, &v.Trades)
	if err != nil {
		return Volume{}, fmt.Errorf("failed to query volume: %w", err)
	}
	return v, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
