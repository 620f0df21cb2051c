package journal

import (
	"encoding/json"
	"math/big"
	"strings"
	"testing"
	"time"
)

const testAddr = "0xcba75F167B03e34B8a572c50273C082401b073Ed"

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(t.TempDir() + "/journal_db")
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndHistory(t *testing.T) {
	j := openTestJournal(t)

	// A balance above 2^53 must survive the round trip exactly.
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	blocks := []struct {
		block   uint64
		balance *big.Int
	}{
		{1, big.NewInt(0)},
		{5, big.NewInt(1000)},
		{12, huge},
	}
	for _, b := range blocks {
		err := j.Record(Observation{
			Address:    testAddr,
			Balance:    b.balance,
			Block:      b.block,
			ObservedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("failed to record block %d: %v", b.block, err)
		}
	}

	history, err := j.History(testAddr, 0)
	if err != nil {
		t.Fatalf("failed to read history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 observations, got %d", len(history))
	}
	// Newest first.
	if history[0].Block != 12 || history[1].Block != 5 || history[2].Block != 1 {
		t.Errorf("history out of order: %d, %d, %d", history[0].Block, history[1].Block, history[2].Block)
	}
	if history[0].Balance.Cmp(huge) != 0 {
		t.Errorf("large balance lost precision: got %s, want %s", history[0].Balance, huge)
	}
	if history[2].Balance.Sign() != 0 {
		t.Errorf("zero balance not preserved: got %s", history[2].Balance)
	}
}

func TestObservationJSONBalanceString(t *testing.T) {
	huge, _ := new(big.Int).SetString("1000000000000000000000001", 10)
	obs := Observation{Address: strings.ToLower(testAddr), Balance: huge, Block: 7}

	data, err := json.Marshal(obs)
	if err != nil {
		t.Fatalf("failed to marshal observation: %v", err)
	}
	// A bare JSON number this large would be rounded by float64 decoders.
	if !strings.Contains(string(data), `"balance":"1000000000000000000000001"`) {
		t.Errorf("balance not encoded as a decimal string: %s", data)
	}

	var got Observation
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("failed to unmarshal observation: %v", err)
	}
	if got.Balance.Cmp(huge) != 0 {
		t.Errorf("balance lost precision: got %s, want %s", got.Balance, huge)
	}

	var bad Observation
	if err := json.Unmarshal([]byte(`{"balance":"not-a-number"}`), &bad); err == nil {
		t.Error("expected error for non-decimal balance")
	}
}

func TestHistoryLimit(t *testing.T) {
	j := openTestJournal(t)

	for block := uint64(1); block <= 10; block++ {
		err := j.Record(Observation{
			Address: testAddr,
			Balance: big.NewInt(int64(block * 100)),
			Block:   block,
		})
		if err != nil {
			t.Fatalf("failed to record block %d: %v", block, err)
		}
	}

	history, err := j.History(testAddr, 3)
	if err != nil {
		t.Fatalf("failed to read history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 observations, got %d", len(history))
	}
	if history[0].Block != 10 {
		t.Errorf("expected newest block 10 first, got %d", history[0].Block)
	}
}

func TestHistoryUnknownAddress(t *testing.T) {
	j := openTestJournal(t)

	history, err := j.History("0x0000000000000000000000000000000000000000", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("expected empty history, got %d entries", len(history))
	}

	latest, err := j.Latest("0x0000000000000000000000000000000000000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest != nil {
		t.Errorf("expected nil latest observation, got %+v", latest)
	}
}

func TestLastSeenBlock(t *testing.T) {
	j := openTestJournal(t)

	block, err := j.LastSeenBlock()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if block != 0 {
		t.Errorf("fresh journal should report block 0, got %d", block)
	}

	if err := j.SetLastSeenBlock(42); err != nil {
		t.Fatalf("failed to set last seen block: %v", err)
	}
	block, err = j.LastSeenBlock()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if block != 42 {
		t.Errorf("expected block 42, got %d", block)
	}
}

func TestAddressCaseInsensitive(t *testing.T) {
	j := openTestJournal(t)

	err := j.Record(Observation{Address: testAddr, Balance: big.NewInt(7), Block: 3})
	if err != nil {
		t.Fatalf("failed to record: %v", err)
	}

	history, err := j.History("0xCBA75F167B03E34B8A572C50273C082401B073ED", 0)
	if err != nil {
		t.Fatalf("failed to read history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 observation regardless of case, got %d", len(history))
	}
}
