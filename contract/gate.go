package contract

import (
	"context"
	"errors"
	"strings"

	"github.com/mezonai/syncgate/logx"
)

// CallPrefix tags a data field as a contract invocation.
const CallPrefix = "ct/"

// Call is the decoded contract-invocation variant of a transaction's data.
type Call struct {
	Procedure string
	Args      []string
}

var (
	// ErrNotContract is returned by Decode for untagged memo data.
	ErrNotContract = errors.New("not a contract call")
	// ErrMalformedCall is returned for tagged data without a procedure name.
	ErrMalformedCall = errors.New("malformed contract call")
)

// IsTagged reports whether data carries the contract tag. Tagged data is a
// contract call even when it fails to decode.
func IsTagged(data string) bool {
	return strings.HasPrefix(data, CallPrefix)
}

// Decode reads tagged data as a contract call.
func Decode(data string) (*Call, error) {
	if !IsTagged(data) {
		return nil, ErrNotContract
	}
	parts := strings.Split(strings.TrimPrefix(data, CallPrefix), "/")
	if parts[0] == "" {
		return nil, ErrMalformedCall
	}
	return &Call{Procedure: parts[0], Args: parts[1:]}, nil
}

// String renders the call without its tag, as engines receive it.
func (c *Call) String() string {
	return strings.Join(append([]string{c.Procedure}, c.Args...), "/")
}

// Engine decides whether a decoded call is acceptable.
type Engine interface {
	Validate(ctx context.Context, call *Call) error
}

// Gate is the capability the validator consumes.
type Gate interface {
	IsContract(data string) bool
	Validate(ctx context.Context, data string) bool
}

// DecodingGate decodes data at the boundary and hands only decoded calls to
// its engine. It fails closed: no engine means no contract passes.
type DecodingGate struct {
	engine Engine
	log    *logx.Logger
}

func NewGate(engine Engine, log *logx.Logger) *DecodingGate {
	return &DecodingGate{engine: engine, log: log}
}

func (g *DecodingGate) IsContract(data string) bool {
	return IsTagged(data)
}

func (g *DecodingGate) Validate(ctx context.Context, data string) bool {
	call, err := Decode(data)
	if err != nil {
		g.log.Warn("CONTRACT", "rejected ", data, ": ", err)
		return false
	}
	if g.engine == nil {
		g.log.Warn("CONTRACT", "no contract engine configured, rejecting ", call.Procedure)
		return false
	}
	if err := g.engine.Validate(ctx, call); err != nil {
		g.log.Warn("CONTRACT", "rejected ", call.Procedure, ": ", err)
		return false
	}
	return true
}
