package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ledgerforge/internal/core"
	"ledgerforge/internal/ledger"
)

// Wildcard matches any unit when registering a Handler.
const Wildcard = "*"

// ErrNotDeployed is returned when calling a unit with no ledger entry.
var ErrNotDeployed = errors.New("unit not deployed")

// Invocation is the resolved form of a "unit.method" call: either a
// *CustomHandler or a *ChainCall. Dispatch switches on the concrete type.
type Invocation interface {
	invocation()
}

// CustomHandler is a locally implemented method.
type CustomHandler struct {
	Unit    string
	Method  string
	Handler Handler
}

// ChainCall forwards the method to the chain client.
type ChainCall struct {
	Unit   string
	Method string
}

func (*CustomHandler) invocation() {}
func (*ChainCall) invocation()     {}

// CallContext is what a Handler sees of the deployed unit.
type CallContext struct {
	Unit     string
	Method   string
	Args     []string
	Deployed ledger.Entry
	Artifact *core.Artifact
}

// Handler implements a method without going to the chain.
type Handler func(ctx context.Context, call CallContext) (*CallResult, error)

type handlerKey struct {
	unit   string
	method string
}

// Dispatcher routes method calls on deployed units.
//
// Handlers are registered explicitly; a method with no handler becomes a
// ChainCall.
type Dispatcher struct {
	Ledger  *ledger.Ledger
	Cache   core.Cache
	Caller  Caller
	Account string
	Params  map[string]string

	handlers map[handlerKey]Handler
}

// NewDispatcher returns a Dispatcher with the built-in handlers registered:
// "address" and "hash" answer from the ledger for every unit.
func NewDispatcher(l *ledger.Ledger, cache core.Cache, caller Caller) *Dispatcher {
	d := &Dispatcher{Ledger: l, Cache: cache, Caller: caller}
	d.Register(Wildcard, "address", func(_ context.Context, call CallContext) (*CallResult, error) {
		return jsonResult(call.Deployed.Address)
	})
	d.Register(Wildcard, "hash", func(_ context.Context, call CallContext) (*CallResult, error) {
		return jsonResult(call.Deployed.IdentityHash.String())
	})
	return d
}

// Register installs h for unit.method. unit may be Wildcard.
func (d *Dispatcher) Register(unit, method string, h Handler) {
	if d.handlers == nil {
		d.handlers = make(map[handlerKey]Handler)
	}
	d.handlers[handlerKey{unit, method}] = h
}

// Resolve picks the variant for unit.method: an exact handler, then a
// wildcard handler, then a chain call.
func (d *Dispatcher) Resolve(unit, method string) Invocation {
	if h, ok := d.handlers[handlerKey{unit, method}]; ok {
		return &CustomHandler{Unit: unit, Method: method, Handler: h}
	}
	if h, ok := d.handlers[handlerKey{Wildcard, method}]; ok {
		return &CustomHandler{Unit: unit, Method: method, Handler: h}
	}
	return &ChainCall{Unit: unit, Method: method}
}

// Dispatch runs inv against the most recent deployment of its unit.
func (d *Dispatcher) Dispatch(ctx context.Context, inv Invocation, args []string) (*CallResult, error) {
	switch v := inv.(type) {
	case *CustomHandler:
		call, err := d.callContext(v.Unit, v.Method, args)
		if err != nil {
			return nil, err
		}
		return v.Handler(ctx, call)
	case *ChainCall:
		if d.Caller == nil {
			return nil, fmt.Errorf("chain client does not support calls (%s.%s)", v.Unit, v.Method)
		}
		call, err := d.callContext(v.Unit, v.Method, args)
		if err != nil {
			return nil, err
		}
		var abi json.RawMessage
		if call.Artifact != nil {
			abi = call.Artifact.ABI
		}
		return d.Caller.Call(ctx, CallRequest{
			Unit:    v.Unit,
			Address: call.Deployed.Address,
			ABI:     abi,
			Method:  v.Method,
			Args:    args,
			Account: d.Account,
			Params:  d.Params,
		})
	default:
		return nil, fmt.Errorf("unsupported invocation %T", inv)
	}
}

// Call resolves and dispatches in one step.
func (d *Dispatcher) Call(ctx context.Context, unit, method string, args []string) (*CallResult, error) {
	return d.Dispatch(ctx, d.Resolve(unit, method), args)
}

func (d *Dispatcher) callContext(unit, method string, args []string) (CallContext, error) {
	latest, ok := d.Ledger.Latest(unit)
	if !ok {
		return CallContext{}, fmt.Errorf("%w: %s on %s", ErrNotDeployed, unit, d.Ledger.Network())
	}
	call := CallContext{Unit: unit, Method: method, Args: args, Deployed: latest}
	if d.Cache != nil {
		art, err := d.Cache.Lookup(unit, latest.IdentityHash)
		if err != nil {
			return CallContext{}, err
		}
		call.Artifact = art
	}
	return call, nil
}

func jsonResult(v any) (*CallResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &CallResult{Output: b}, nil
}
