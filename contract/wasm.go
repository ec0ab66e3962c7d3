package contract

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

const (
	wasmValidateExport = "validate"
	wasmMemoryExport   = "memory"
)

// WasmEngine delegates validation to a WebAssembly module exporting
// `memory` and `validate(ptr, len i32) i32`. The call is written at offset
// 0; a non-zero result accepts it.
type WasmEngine struct {
	mu       sync.Mutex
	runtime  wazero.Runtime
	module   api.Module
	validate api.Function
}

func NewWasmEngine(ctx context.Context, wasm []byte) (*WasmEngine, error) {
	r := wazero.NewRuntime(ctx)
	mod, err := r.Instantiate(ctx, wasm)
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("instantiate contract module: %w", err)
	}
	fn := mod.ExportedFunction(wasmValidateExport)
	if fn == nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("contract module does not export %q", wasmValidateExport)
	}
	if mod.ExportedMemory(wasmMemoryExport) == nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("contract module does not export %q", wasmMemoryExport)
	}
	return &WasmEngine{runtime: r, module: mod, validate: fn}, nil
}

// LoadWasmEngine reads a module from disk.
func LoadWasmEngine(ctx context.Context, path string) (*WasmEngine, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewWasmEngine(ctx, wasm)
}

func (e *WasmEngine) Validate(ctx context.Context, call *Call) error {
	payload := []byte(call.String())

	// module instances are not safe for concurrent calls
	e.mu.Lock()
	defer e.mu.Unlock()

	mem := e.module.ExportedMemory(wasmMemoryExport)
	if !mem.Write(0, payload) {
		return fmt.Errorf("call of %d bytes does not fit module memory", len(payload))
	}
	results, err := e.validate.Call(ctx, 0, uint64(len(payload)))
	if err != nil {
		return fmt.Errorf("contract module trapped: %w", err)
	}
	if len(results) == 0 || uint32(results[0]) == 0 {
		return fmt.Errorf("rejected by contract module")
	}
	return nil
}

func (e *WasmEngine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}
