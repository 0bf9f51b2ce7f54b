// Package chain wraps the marketplace's on-chain calls. Only a mock client
// exists: it fabricates addresses and transaction hashes.
package chain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cryptovault/internal/domain"
	"cryptovault/internal/utils"

	"github.com/shopspring/decimal"
)

// Deployment is the result of deploying a seller contract
type Deployment struct {
	ContractAddress string
	ContractName    string
	TxHash          string
	Metadata        map[string]any
}

// Client submits marketplace operations to the chain
type Client interface {
	Network() string
	DeployContract(ctx context.Context, owner domain.User) (Deployment, error)
	SubmitPurchase(ctx context.Context, buyer domain.User, dataset domain.Dataset, amount decimal.Decimal) (string, error)
}

// MockClient never talks to a node
type MockClient struct {
	network       string
	packageID     string
	moduleName    string
	marketplaceID string
	now           func() time.Time
}

// NewMockClient returns a mock bound to the configured Move identifiers
func NewMockClient(network, packageID, moduleName, marketplaceID string) *MockClient {
	return &MockClient{
		network:       network,
		packageID:     packageID,
		moduleName:    moduleName,
		marketplaceID: marketplaceID,
		now:           time.Now,
	}
}

// Network returns the configured network name
func (m *MockClient) Network() string {
	return m.network
}

// Target returns the fully qualified Move module
func (m *MockClient) Target() string {
	return m.packageID + "::" + m.moduleName
}

// DeployContract fabricates a deployment
func (m *MockClient) DeployContract(ctx context.Context, owner domain.User) (Deployment, error) {
	if err := ctx.Err(); err != nil {
		return Deployment{}, err
	}
	return Deployment{
		ContractAddress: utils.RandomTxHash(),
		ContractName:    ContractName(owner.Name),
		TxHash:          utils.RandomTxHash(),
		Metadata: map[string]any{
			"network":       m.network,
			"deployedAt":    m.now().UTC().Format(time.RFC3339),
			"version":       "1.0",
			"packageId":     m.packageID,
			"module":        m.moduleName,
			"marketplaceId": m.marketplaceID,
		},
	}, nil
}

// SubmitPurchase fabricates a purchase transaction hash
func (m *MockClient) SubmitPurchase(ctx context.Context, buyer domain.User, dataset domain.Dataset, amount decimal.Decimal) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if amount.IsNegative() {
		return "", fmt.Errorf("negative amount %s", amount)
	}
	return utils.RandomTxHash(), nil
}

// ContractName derives the per-seller contract name
func ContractName(userName string) string {
	return "CryptoVault_" + strings.Join(strings.Fields(userName), "_")
}
