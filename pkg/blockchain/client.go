// Package blockchain provides read access to the chains the router
// settles on. The settlement monitor uses it to confirm on-chain
// execution of submitted transactions.
package blockchain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/wayfinder-hq/wayfinder-router/pkg/logger"
)

// ReceiptState classifies a transaction's on-chain outcome
type ReceiptState int

const (
	// ReceiptPending means the transaction is not yet mined
	ReceiptPending ReceiptState = iota
	// ReceiptConfirmed means the transaction executed successfully
	ReceiptConfirmed
	// ReceiptReverted means the transaction was mined but reverted
	ReceiptReverted
)

// Client holds one RPC connection per supported chain
type Client struct {
	clients map[int]*ethclient.Client
	logger  logger.Logger
}

// NewClient dials every configured RPC endpoint. Chains that fail to
// connect are skipped with an error log; settlement confirmation for
// those chains degrades to trusting the venue's response.
func NewClient(rpcEndpoints map[int]string, log logger.Logger) *Client {
	clients := make(map[int]*ethclient.Client, len(rpcEndpoints))
	for chainID, endpoint := range rpcEndpoints {
		if endpoint == "" {
			continue
		}
		client, err := ethclient.Dial(endpoint)
		if err != nil {
			log.ErrorWithChain(chainID, "failed to connect to RPC: %v", err)
			continue
		}
		clients[chainID] = client
		log.InfoWithChain(chainID, "connected to RPC endpoint")
	}
	return &Client{clients: clients, logger: log}
}

// Supports reports whether a connection exists for the chain
func (c *Client) Supports(chainID int) bool {
	_, ok := c.clients[chainID]
	return ok
}

// ReceiptStatus looks up the receipt for a transaction hash
func (c *Client) ReceiptStatus(ctx context.Context, chainID int, txHash string) (ReceiptState, error) {
	client, ok := c.clients[chainID]
	if !ok {
		return ReceiptPending, fmt.Errorf("no RPC connection for chain %d", chainID)
	}

	receipt, err := client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return ReceiptPending, nil
		}
		return ReceiptPending, fmt.Errorf("failed to fetch receipt: %w", err)
	}

	if receipt.Status == types.ReceiptStatusSuccessful {
		return ReceiptConfirmed, nil
	}
	return ReceiptReverted, nil
}

// Close closes every RPC connection
func (c *Client) Close() {
	for _, client := range c.clients {
		client.Close()
	}
}
