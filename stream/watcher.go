package stream

import (
	"context"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/blockforge-labs/devnet-gateway/journal"
)

// Subscribers is the slice of the manager the watcher needs.
type Subscribers interface {
	Watched() []string
	Publish(Update)
}

// BalanceReader is the slice of the RPC client the watcher needs.
type BalanceReader interface {
	BalanceAt(ctx context.Context, addr string) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Watcher polls the dev-node for new blocks and pushes changed balances of
// watched addresses to subscribers. Polling rather than eth_subscribe keeps
// an HTTP-only RPC endpoint workable.
type Watcher struct {
	client   BalanceReader
	journal  *journal.Journal
	subs     Subscribers
	interval time.Duration
	log      *logrus.Logger

	last map[string]*big.Int // last pushed balance per address
}

// NewWatcher creates a watcher polling every interval.
func NewWatcher(client BalanceReader, j *journal.Journal, subs Subscribers, interval time.Duration, log *logrus.Logger) *Watcher {
	return &Watcher{
		client:   client,
		journal:  j,
		subs:     subs,
		interval: interval,
		log:      log,
		last:     make(map[string]*big.Int),
	}
}

// Run polls until ctx is cancelled. Upstream errors are logged and retried
// on the next tick; the watcher never brings the process down.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Watcher) tick(ctx context.Context) {
	block, err := w.client.BlockNumber(ctx)
	if err != nil {
		w.log.Warnf("Watcher failed to fetch block number: %v", err)
		return
	}

	lastSeen, err := w.journal.LastSeenBlock()
	if err != nil {
		w.log.Warnf("Watcher failed to read last seen block: %v", err)
		return
	}
	if block <= lastSeen {
		return
	}

	for _, addr := range w.subs.Watched() {
		w.refresh(ctx, addr, block)
	}

	if err := w.journal.SetLastSeenBlock(block); err != nil {
		w.log.Warnf("Watcher failed to record last seen block: %v", err)
	}
}

func (w *Watcher) refresh(ctx context.Context, addr string, block uint64) {
	balance, err := w.client.BalanceAt(ctx, addr)
	if err != nil {
		w.log.Warnf("Watcher failed to fetch balance for %s: %v", addr, err)
		return
	}

	if prev, ok := w.last[addr]; ok && prev.Cmp(balance) == 0 {
		return
	}
	w.last[addr] = balance

	obs := journal.Observation{
		Address:    addr,
		Balance:    balance,
		Block:      block,
		ObservedAt: time.Now().UTC(),
	}
	if err := w.journal.Record(obs); err != nil {
		w.log.Warnf("Watcher failed to journal balance for %s: %v", addr, err)
	}

	w.subs.Publish(Update{
		Address: addr,
		Balance: balance.String(),
		Block:   block,
	})
}
