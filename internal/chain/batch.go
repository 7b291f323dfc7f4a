package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"tagScope/internal/metrics"
)

// RPCBatchReader executes calls as one JSON-RPC batch of eth_call requests.
// A per-element RPC error marks only that call as failed.
type RPCBatchReader struct {
	caller BatchCaller
	logger *zap.Logger
}

func NewRPCBatchReader(caller BatchCaller, logger *zap.Logger) *RPCBatchReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RPCBatchReader{caller: caller, logger: logger}
}

// Read implements BatchReader.
func (b *RPCBatchReader) Read(ctx context.Context, calls []Call) ([]Result, error) {
	const executor = "rpc_batch"

	if len(calls) == 0 {
		return []Result{}, nil
	}
	if b.caller == nil {
		return nil, fmt.Errorf("batch caller is nil")
	}

	elems := make([]rpc.BatchElem, len(calls))
	for i, call := range calls {
		args := map[string]interface{}{
			"to":   call.Target,
			"data": hexutil.Bytes(call.Data),
		}
		elems[i] = rpc.BatchElem{
			Method: "eth_call",
			Args:   []interface{}{args, "latest"},
			Result: new(hexutil.Bytes),
		}
	}

	started := time.Now()
	err := b.caller.BatchCallContext(ctx, elems)
	metrics.BatchDuration.WithLabelValues(executor).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.BatchRequests.WithLabelValues(executor, "error").Inc()
		return nil, fmt.Errorf("rpc batch call: %w", err)
	}
	metrics.BatchRequests.WithLabelValues(executor, "ok").Inc()

	results := make([]Result, len(elems))
	var failed int
	for i, elem := range elems {
		if elem.Error != nil {
			failed++
			b.logger.Debug("eth_call failed",
				zap.String("target", calls[i].Target.Hex()),
				zap.String("method", calls[i].Method),
				zap.Error(elem.Error),
			)
			continue
		}
		out, ok := elem.Result.(*hexutil.Bytes)
		if !ok || out == nil {
			failed++
			continue
		}
		results[i] = Result{Success: true, Data: []byte(*out)}
	}
	metrics.BatchCalls.WithLabelValues(executor, "ok").Add(float64(len(calls) - failed))
	metrics.BatchCalls.WithLabelValues(executor, "failed").Add(float64(failed))

	return results, nil
}
