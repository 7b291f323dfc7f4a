package chain

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrLengthMismatch is returned when a batch answers with a different number of results than calls.
var ErrLengthMismatch = errors.New("batch result count does not match call count")

// Call is a single read-only contract call.
type Call struct {
	Target common.Address
	// Method is the ABI method name, kept for logging and test inspection.
	Method string
	Data   []byte
}

// Result is the outcome of one Call. Data is only meaningful when Success is true.
type Result struct {
	Success bool
	Data    []byte
}

// BatchReader executes independent read-only calls as one round trip.
// Individual call failures are reported per Result; only transport-level
// failures are returned as an error.
type BatchReader interface {
	Read(ctx context.Context, calls []Call) ([]Result, error)
}

// ContractCaller is the eth_call surface used by MulticallReader.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// BatchCaller is the JSON-RPC batch surface used by RPCBatchReader.
type BatchCaller interface {
	BatchCallContext(ctx context.Context, elems []rpc.BatchElem) error
}
