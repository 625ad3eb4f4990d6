package leaderboard

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Entry is one ranked trader.
type Entry struct {
	Rank      int            `json:"rank"`
	Address   common.Address `json:"address"`
	PnLUSD    float64        `json:"pnlUsd"`
	VolumeUSD float64        `json:"volumeUsd"`
	Trades    int64          `json:"trades"`
}

// Volume is a single trader's totals on one chain.
type Volume struct {
	Address   common.Address `json:"address"`
	VolumeUSD float64        `json:"volumeUsd"`
	Trades    int64          `json:"trades"`
}

// Source is the system of record, normally *Store.
type Source interface {
	Leaderboard(ctx context.Context, chainID uint64) ([]Entry, error)
	UserVolume(ctx context.Context, chainID uint64, address common.Address) (Volume, error)
}
