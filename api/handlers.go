package api

import (
	"context"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/blockforge-labs/devnet-gateway/eth"
	"github.com/blockforge-labs/devnet-gateway/journal"
)

const defaultHistoryLimit = 50

// BalanceResponse is the body of a successful balance lookup. The balance is
// a decimal string so values above 2^53 survive JSON intact.
type BalanceResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// handleHealth reports liveness. Reaching the handler at all means the
// process can serve requests; the dev-node's own health is not part of it.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleBalance validates the address, reads the balance from the dev-node
// and journals the observation.
func (s *Server) handleBalance(c *gin.Context) {
	address := c.Param("address")
	if !eth.ValidAddress(address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address: " + address})
		return
	}

	tracer := otel.Tracer("devnet-gateway/api")
	ctx, span := tracer.Start(c.Request.Context(), "get_balance",
		trace.WithAttributes(attribute.String("account.address", address)))
	defer span.End()

	balance, err := s.client.BalanceAt(ctx, address)
	if err != nil {
		upstreamErrors.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "balance lookup failed")
		s.log.Errorf("Balance lookup failed for %s: %v", address, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream RPC failure: " + err.Error()})
		return
	}

	span.AddEvent("fetched balance",
		trace.WithAttributes(attribute.String("balance", balance.String())))

	s.record(ctx, address, balance)

	c.JSON(http.StatusOK, BalanceResponse{Address: address, Balance: balance.String()})
}

// record journals the observation. Best effort: a journal problem never
// fails the request that produced the balance.
func (s *Server) record(ctx context.Context, address string, balance *big.Int) {
	if s.journal == nil {
		return
	}
	block, err := s.client.BlockNumber(ctx)
	if err != nil {
		s.log.Warnf("Skipping journal entry for %s, no block number: %v", address, err)
		return
	}
	obs := journal.Observation{
		Address:    address,
		Balance:    balance,
		Block:      block,
		ObservedAt: time.Now().UTC(),
	}
	if err := s.journal.Record(obs); err != nil {
		s.log.Warnf("Failed to journal balance for %s: %v", address, err)
	}
}

// handleHistory returns journaled balance observations, newest first.
func (s *Server) handleHistory(c *gin.Context) {
	address := c.Param("address")
	if !eth.ValidAddress(address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address: " + address})
		return
	}
	if s.journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit: " + raw})
			return
		}
		limit = n
	}

	history, err := s.journal.History(address, limit)
	if err != nil {
		s.log.Errorf("History lookup failed for %s: %v", address, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read history"})
		return
	}
	if history == nil {
		history = []journal.Observation{}
	}
	c.JSON(http.StatusOK, gin.H{"address": address, "history": history})
}
