package chain

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// echoCaller answers aggregate3 by echoing each call's data back, failing calls whose data starts with 0xff.
type echoCaller struct {
	calls int
	sizes []int
	err   error
}

func (e *echoCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	parsed, err := Multicall3ABI()
	if err != nil {
		return nil, err
	}
	method := parsed.Methods["aggregate3"]
	values, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	in := *abi.ConvertType(values[0], new([]Multicall3Call)).(*[]Multicall3Call)
	e.sizes = append(e.sizes, len(in))

	out := make([]Multicall3Result, len(in))
	for i, call := range in {
		if !call.AllowFailure {
			return nil, errors.New("allowFailure must be set")
		}
		if len(call.CallData) > 0 && call.CallData[0] == 0xff {
			out[i] = Multicall3Result{Success: false, ReturnData: []byte{}}
			continue
		}
		out[i] = Multicall3Result{Success: true, ReturnData: call.CallData}
	}
	return method.Outputs.Pack(out)
}

func testCalls(n int) []Call {
	calls := make([]Call, n)
	for i := range calls {
		calls[i] = Call{
			Target: common.BigToAddress(big.NewInt(int64(i + 1))),
			Method: "probe",
			Data:   []byte{byte(i), 0x01},
		}
	}
	return calls
}

func TestMulticallReaderEmpty(t *testing.T) {
	caller := &echoCaller{}
	reader := NewMulticallReader(caller, common.HexToAddress(DefaultMulticallAddress), 0, nil)

	results, err := reader.Read(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
	if caller.calls != 0 {
		t.Fatalf("expected no network call, got %d", caller.calls)
	}
}

func TestMulticallReaderPerCallFailure(t *testing.T) {
	caller := &echoCaller{}
	reader := NewMulticallReader(caller, common.HexToAddress(DefaultMulticallAddress), 0, nil)

	calls := testCalls(3)
	calls[1].Data = []byte{0xff}

	results, err := reader.Read(context.Background(), calls)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Success || !results[2].Success {
		t.Fatalf("expected calls 0 and 2 to succeed: %+v", results)
	}
	if results[1].Success {
		t.Fatalf("expected call 1 to fail")
	}
	if !bytes.Equal(results[2].Data, calls[2].Data) {
		t.Fatalf("result order mismatch: %x != %x", results[2].Data, calls[2].Data)
	}
}

func TestMulticallReaderChunks(t *testing.T) {
	caller := &echoCaller{}
	reader := NewMulticallReader(caller, common.HexToAddress(DefaultMulticallAddress), 2, nil)

	calls := testCalls(5)
	results, err := reader.Read(context.Background(), calls)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caller.calls != 3 {
		t.Fatalf("expected 3 round trips, got %d", caller.calls)
	}
	if len(caller.sizes) != 3 || caller.sizes[0] != 2 || caller.sizes[2] != 1 {
		t.Fatalf("chunk sizes mismatch: %v", caller.sizes)
	}
	for i, r := range results {
		if !bytes.Equal(r.Data, calls[i].Data) {
			t.Fatalf("result %d out of order", i)
		}
	}
}

func TestMulticallReaderTransportError(t *testing.T) {
	caller := &echoCaller{err: errors.New("connection refused")}
	reader := NewMulticallReader(caller, common.HexToAddress(DefaultMulticallAddress), 0, nil)

	if _, err := reader.Read(context.Background(), testCalls(2)); err == nil {
		t.Fatalf("expected transport error")
	}
}

type stubBatchCaller struct {
	err     error
	failIdx map[int]bool
}

func (s *stubBatchCaller) BatchCallContext(_ context.Context, elems []rpc.BatchElem) error {
	if s.err != nil {
		return s.err
	}
	for i := range elems {
		if s.failIdx[i] {
			elems[i].Error = errors.New("execution reverted")
			continue
		}
		out := elems[i].Result.(*hexutil.Bytes)
		*out = hexutil.Bytes{byte(i)}
	}
	return nil
}

func TestRPCBatchReader(t *testing.T) {
	reader := NewRPCBatchReader(&stubBatchCaller{failIdx: map[int]bool{0: true}}, nil)

	results, err := reader.Read(context.Background(), testCalls(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Success {
		t.Fatalf("expected element 0 to fail")
	}
	if !results[1].Success || !bytes.Equal(results[1].Data, []byte{1}) {
		t.Fatalf("element 1 mismatch: %+v", results[1])
	}
}

func TestRPCBatchReaderTransportError(t *testing.T) {
	reader := NewRPCBatchReader(&stubBatchCaller{err: errors.New("dial tcp: timeout")}, nil)
	if _, err := reader.Read(context.Background(), testCalls(1)); err == nil {
		t.Fatalf("expected transport error")
	}
}
