package eth

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client wraps both rpc.Client and ethclient.Client for dev-node interactions
type Client struct {
	Rpc *rpc.Client
	Eth *ethclient.Client
}

// NewClient initializes a new Ethereum client with both RPC and ethclient
func NewClient(url string) (*Client, error) {
	rpcClient, err := rpc.Dial(url)
	if err != nil {
		return nil, err
	}

	ethClient, err := ethclient.Dial(url)
	if err != nil {
		rpcClient.Close()
		return nil, err
	}

	return &Client{
		Rpc: rpcClient,
		Eth: ethClient,
	}, nil
}

// BalanceAt returns the native-token balance of addr at the latest block.
func (c *Client) BalanceAt(ctx context.Context, addr string) (*big.Int, error) {
	if !ValidAddress(addr) {
		return nil, fmt.Errorf("invalid address: %s", addr)
	}
	balance, err := c.Eth.BalanceAt(ctx, common.HexToAddress(addr), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balance for %s: %w", addr, err)
	}
	return balance, nil
}

// BlockNumber returns the latest block number known to the dev-node.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.Eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch block number: %w", err)
	}
	return n, nil
}

// Close shuts down both underlying connections
func (c *Client) Close() {
	c.Eth.Close()
	c.Rpc.Close()
}

// ValidAddress reports whether s is a well-formed 20-byte hex address with
// the 0x prefix. common.IsHexAddress alone accepts unprefixed input, which
// the API rejects.
func ValidAddress(s string) bool {
	if len(s) != 42 || s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return false
	}
	return common.IsHexAddress(s)
}
