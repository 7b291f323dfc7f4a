package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"tagScope/internal/metrics"
)

// DefaultMulticallAddress is the canonical Multicall3 deployment, identical on most EVM chains.
const DefaultMulticallAddress = "0xcA11bde05977b3631167028862bE2a173976CA11"

const defaultMaxCallsPerBatch = 500

const multicall3ABIJSON = `[
  {
    "inputs": [
      {
        "components": [
          {"internalType": "address", "name": "target", "type": "address"},
          {"internalType": "bool", "name": "allowFailure", "type": "bool"},
          {"internalType": "bytes", "name": "callData", "type": "bytes"}
        ],
        "internalType": "struct Multicall3.Call3[]",
        "name": "calls",
        "type": "tuple[]"
      }
    ],
    "name": "aggregate3",
    "outputs": [
      {
        "components": [
          {"internalType": "bool", "name": "success", "type": "bool"},
          {"internalType": "bytes", "name": "returnData", "type": "bytes"}
        ],
        "internalType": "struct Multicall3.Result[]",
        "name": "returnData",
        "type": "tuple[]"
      }
    ],
    "stateMutability": "payable",
    "type": "function"
  }
]`

var (
	multicall3ABI     abi.ABI
	multicall3ABIOnce sync.Once
	multicall3ABIErr  error
)

// Multicall3ABI returns the parsed Multicall3 aggregate3 ABI.
func Multicall3ABI() (abi.ABI, error) {
	multicall3ABIOnce.Do(func() {
		multicall3ABI, multicall3ABIErr = abi.JSON(strings.NewReader(multicall3ABIJSON))
	})
	return multicall3ABI, multicall3ABIErr
}

// Multicall3Call mirrors the Call3 tuple.
type Multicall3Call struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

// Multicall3Result mirrors the Result tuple.
type Multicall3Result struct {
	Success    bool
	ReturnData []byte
}

// MulticallReader executes batches through a single aggregate3 eth_call
// with allowFailure set on every call.
type MulticallReader struct {
	caller   ContractCaller
	address  common.Address
	maxCalls int
	logger   *zap.Logger
}

// NewMulticallReader builds a MulticallReader. maxCalls <= 0 uses the default chunk size.
func NewMulticallReader(caller ContractCaller, address common.Address, maxCalls int, logger *zap.Logger) *MulticallReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxCalls <= 0 {
		maxCalls = defaultMaxCallsPerBatch
	}
	return &MulticallReader{
		caller:   caller,
		address:  address,
		maxCalls: maxCalls,
		logger:   logger,
	}
}

// Read implements BatchReader.
func (m *MulticallReader) Read(ctx context.Context, calls []Call) ([]Result, error) {
	if len(calls) == 0 {
		return []Result{}, nil
	}
	if m.caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}

	results := make([]Result, 0, len(calls))
	for start := 0; start < len(calls); start += m.maxCalls {
		end := start + m.maxCalls
		if end > len(calls) {
			end = len(calls)
		}
		chunk, err := m.aggregate(ctx, calls[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, chunk...)
	}
	return results, nil
}

func (m *MulticallReader) aggregate(ctx context.Context, calls []Call) ([]Result, error) {
	const executor = "multicall3"

	parsed, err := Multicall3ABI()
	if err != nil {
		return nil, fmt.Errorf("parse multicall3 abi: %w", err)
	}

	packed := make([]Multicall3Call, len(calls))
	for i, call := range calls {
		packed[i] = Multicall3Call{Target: call.Target, AllowFailure: true, CallData: call.Data}
	}
	data, err := parsed.Pack("aggregate3", packed)
	if err != nil {
		return nil, fmt.Errorf("pack aggregate3: %w", err)
	}

	started := time.Now()
	to := m.address
	resp, err := m.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	metrics.BatchDuration.WithLabelValues(executor).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.BatchRequests.WithLabelValues(executor, "error").Inc()
		return nil, fmt.Errorf("call aggregate3: %w", err)
	}

	values, err := parsed.Unpack("aggregate3", resp)
	if err != nil {
		metrics.BatchRequests.WithLabelValues(executor, "error").Inc()
		return nil, fmt.Errorf("unpack aggregate3: %w", err)
	}
	if len(values) != 1 {
		metrics.BatchRequests.WithLabelValues(executor, "error").Inc()
		return nil, fmt.Errorf("aggregate3 return size %d", len(values))
	}
	decoded := *abi.ConvertType(values[0], new([]Multicall3Result)).(*[]Multicall3Result)
	if len(decoded) != len(calls) {
		metrics.BatchRequests.WithLabelValues(executor, "error").Inc()
		return nil, fmt.Errorf("aggregate3: %w (%d != %d)", ErrLengthMismatch, len(decoded), len(calls))
	}
	metrics.BatchRequests.WithLabelValues(executor, "ok").Inc()

	results := make([]Result, len(decoded))
	var failed int
	for i, r := range decoded {
		results[i] = Result{Success: r.Success, Data: r.ReturnData}
		if !r.Success {
			failed++
			m.logger.Debug("call reverted",
				zap.String("target", calls[i].Target.Hex()),
				zap.String("method", calls[i].Method),
			)
		}
	}
	metrics.BatchCalls.WithLabelValues(executor, "ok").Add(float64(len(calls) - failed))
	metrics.BatchCalls.WithLabelValues(executor, "failed").Add(float64(failed))

	return results, nil
}
