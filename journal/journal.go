// Package journal records balance observations made by the gateway so that
// restarts and dashboards can see what the service returned over time. The
// dev-node owns chain state; the journal is a local, append-style record of
// reads, never a cache consulted on the request path.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	obsPrefix        = "obs:"
	lastSeenBlockKey = "lastSeenBlock"
)

// Observation is a single balance reading for an address at a block.
type Observation struct {
	Address    string    `json:"address"`
	Balance    *big.Int  `json:"balance"`
	Block      uint64    `json:"block"`
	ObservedAt time.Time `json:"observed_at"`
}

// observationJSON is the wire form. The balance travels as a decimal string
// so values above 2^53 survive JSON consumers that decode numbers as float64.
type observationJSON struct {
	Address    string    `json:"address"`
	Balance    string    `json:"balance"`
	Block      uint64    `json:"block"`
	ObservedAt time.Time `json:"observed_at"`
}

func (o Observation) MarshalJSON() ([]byte, error) {
	balance := "0"
	if o.Balance != nil {
		balance = o.Balance.String()
	}
	return json.Marshal(observationJSON{
		Address:    o.Address,
		Balance:    balance,
		Block:      o.Block,
		ObservedAt: o.ObservedAt,
	})
}

func (o *Observation) UnmarshalJSON(data []byte) error {
	var wire observationJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	balance, ok := new(big.Int).SetString(wire.Balance, 10)
	if !ok {
		return fmt.Errorf("invalid balance %q", wire.Balance)
	}
	o.Address = wire.Address
	o.Balance = balance
	o.Block = wire.Block
	o.ObservedAt = wire.ObservedAt
	return nil
}

// Journal is a LevelDB-backed store of balance observations.
type Journal struct {
	db *leveldb.DB
}

// Open opens (or creates) the journal database at dbPath.
func Open(dbPath string) (*Journal, error) {
	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	return &Journal{db: db}, nil
}

// obsKey builds "obs:<addr>:<block>" with the block big-endian encoded so
// the iterator yields observations in block order.
func obsKey(addr string, block uint64) []byte {
	key := make([]byte, 0, len(obsPrefix)+42+1+8)
	key = append(key, obsPrefix...)
	key = append(key, strings.ToLower(addr)...)
	key = append(key, ':')
	var blk [8]byte
	binary.BigEndian.PutUint64(blk[:], block)
	return append(key, blk[:]...)
}

// Record stores an observation. Re-recording the same address and block
// overwrites the previous entry.
func (j *Journal) Record(obs Observation) error {
	obs.Address = strings.ToLower(obs.Address)
	data, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("failed to encode observation: %w", err)
	}
	return j.db.Put(obsKey(obs.Address, obs.Block), data, nil)
}

// History returns up to limit observations for addr, newest first. A limit
// of zero or less means no bound. An address that was never observed yields
// an empty slice, not an error.
func (j *Journal) History(addr string, limit int) ([]Observation, error) {
	prefix := append([]byte(obsPrefix+strings.ToLower(addr)), ':')
	iter := j.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var history []Observation
	for ok := iter.Last(); ok; ok = iter.Prev() {
		var obs Observation
		if err := json.Unmarshal(iter.Value(), &obs); err != nil {
			return nil, fmt.Errorf("failed to decode observation: %w", err)
		}
		history = append(history, obs)
		if limit > 0 && len(history) >= limit {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("journal iteration failed: %w", err)
	}
	return history, nil
}

// Latest returns the most recent observation for addr, or nil if none exists.
func (j *Journal) Latest(addr string) (*Observation, error) {
	history, err := j.History(addr, 1)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}
	return &history[0], nil
}

// LastSeenBlock returns the highest block the watcher has processed, zero if
// the journal is fresh.
func (j *Journal) LastSeenBlock() (uint64, error) {
	data, err := j.db.Get([]byte(lastSeenBlockKey), nil)
	if err == leveldb.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get last seen block: %w", err)
	}
	return binary.BigEndian.Uint64(data), nil
}

// SetLastSeenBlock records the highest block the watcher has processed.
func (j *Journal) SetLastSeenBlock(block uint64) error {
	var blk [8]byte
	binary.BigEndian.PutUint64(blk[:], block)
	return j.db.Put([]byte(lastSeenBlockKey), blk[:], nil)
}

// Close shuts down the database
func (j *Journal) Close() error {
	return j.db.Close()
}
