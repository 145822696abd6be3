// Package deploy decides which units to (re)deploy on a network, deploys
// them in order, records each success in the ledger, and dispatches calls to
// deployed units.
package deploy

import (
	"context"
	"encoding/json"

	"ledgerforge/internal/config"
	"ledgerforge/internal/core"
	"ledgerforge/internal/registry"
)

// Request is one deployment submitted to the chain.
type Request struct {
	Unit     string            `json:"unit"`
	Artifact *core.Artifact    `json:"-"`
	Args     []string          `json:"args"`
	Account  string            `json:"account,omitempty"`
	Params   map[string]string `json:"params,omitempty"`
}

// Receipt is the chain's confirmation of a deployment.
type Receipt struct {
	Address  string            `json:"address"`
	TxHash   string            `json:"tx_hash,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CallRequest invokes a method on a deployed unit.
type CallRequest struct {
	Unit    string            `json:"unit"`
	Address string            `json:"address"`
	ABI     json.RawMessage   `json:"abi,omitempty"`
	Method  string            `json:"method"`
	Args    []string          `json:"args"`
	Account string            `json:"account,omitempty"`
	Params  map[string]string `json:"params,omitempty"`
}

// CallResult is the answer to a CallRequest.
type CallResult struct {
	Output json.RawMessage `json:"output,omitempty"`
	TxHash string          `json:"tx_hash,omitempty"`
}

// ChainClient deploys artifacts to one network.
type ChainClient interface {
	Deploy(ctx context.Context, req Request) (*Receipt, error)
}

// Caller invokes methods of deployed units.
type Caller interface {
	Call(ctx context.Context, req CallRequest) (*CallResult, error)
}

// Factory builds a ChainClient for one network.
type Factory func(cfg config.NetworkConfig, workDir string) (ChainClient, error)

// NewDriverRegistry returns a registry holding the built-in chain drivers.
func NewDriverRegistry() *registry.Registry[Factory] {
	r := registry.New[Factory]("chain")
	r.MustRegister("exec", NewExecClient)
	return r
}
