package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ledgerforge/internal/config"
	"ledgerforge/internal/core"
)

// ExecClient runs an external command per operation. A JSON request with an
// "action" of "deploy" or "call" is written to stdin; the answer is read from
// stdout. A non-zero exit status fails the operation.
type ExecClient struct {
	Args    []string
	Dir     string
	Timeout time.Duration
}

var (
	_ ChainClient = (*ExecClient)(nil)
	_ Caller      = (*ExecClient)(nil)
)

// NewExecClient is the Factory of the "exec" driver.
func NewExecClient(cfg config.NetworkConfig, workDir string) (ChainClient, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, fmt.Errorf("command is required for the exec chain driver")
	}
	args, err := core.SplitCommand(cfg.Command)
	if err != nil {
		return nil, err
	}
	return &ExecClient{Args: args, Dir: workDir, Timeout: cfg.Timeout}, nil
}

type execDeployRequest struct {
	Action   string            `json:"action"`
	Unit     string            `json:"unit"`
	ABI      json.RawMessage   `json:"abi"`
	Bytecode core.Bytecode     `json:"bytecode"`
	Args     []string          `json:"args"`
	Account  string            `json:"account,omitempty"`
	Params   map[string]string `json:"params,omitempty"`
}

type execCallRequest struct {
	Action string `json:"action"`
	CallRequest
}

func (c *ExecClient) Deploy(ctx context.Context, req Request) (*Receipt, error) {
	if req.Artifact == nil {
		return nil, fmt.Errorf("no artifact for %s", req.Unit)
	}
	abi := req.Artifact.ABI
	if len(abi) == 0 {
		abi = json.RawMessage("null")
	}
	args := req.Args
	if args == nil {
		args = []string{}
	}
	var receipt Receipt
	err := c.run(ctx, execDeployRequest{
		Action:   "deploy",
		Unit:     req.Unit,
		ABI:      abi,
		Bytecode: req.Artifact.Bytecode,
		Args:     args,
		Account:  req.Account,
		Params:   req.Params,
	}, &receipt)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(receipt.Address) == "" {
		return nil, fmt.Errorf("chain client returned no address for %s", req.Unit)
	}
	return &receipt, nil
}

func (c *ExecClient) Call(ctx context.Context, req CallRequest) (*CallResult, error) {
	if req.Args == nil {
		req.Args = []string{}
	}
	var res CallResult
	if err := c.run(ctx, execCallRequest{Action: "call", CallRequest: req}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *ExecClient) run(ctx context.Context, in, out any) error {
	input, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling chain request: %w", err)
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	res, err := core.RunCommand(ctx, core.Command{Args: c.Args, Dir: c.Dir, Stdin: input})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		msg := strings.TrimSpace(string(res.Stderr))
		if msg == "" {
			msg = "no output"
		}
		return fmt.Errorf("chain client exited with status %d: %s", res.ExitCode, msg)
	}
	if err := json.Unmarshal(res.Stdout, out); err != nil {
		return fmt.Errorf("parsing chain client output: %w", err)
	}
	return nil
}
