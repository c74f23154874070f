package coding

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// WASMTransformEvaluator runs `transform=wasm` DimensionRules: a
// per-tenant WASM module (bytes supplied by the caller, typically
// loaded from pkg/artifacts) exporting `alloc(size i32) -> ptr i32` and
// `transform(ptr i32, len i32) -> packed i64` (high 32 bits: output
// pointer, low 32 bits: output length). An extensibility hook for
// custom per-tenant dimension derivations the fixed transform enum
// can't express, analogous to the teacher's sandboxed tool execution.
type WASMTransformEvaluator struct {
	runtime wazero.Runtime
	mu      sync.Mutex
	modules map[string]wazero.CompiledModule
}

// NewWASMTransformEvaluator constructs an evaluator backed by a single
// wazero runtime shared across every module it compiles.
func NewWASMTransformEvaluator(ctx context.Context) (*WASMTransformEvaluator, error) {
	runtime := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		return nil, fmt.Errorf("coding: wasi instantiate: %w", err)
	}
	return &WASMTransformEvaluator{runtime: runtime, modules: make(map[string]wazero.CompiledModule)}, nil
}

// Close releases the underlying wazero runtime and every compiled
// module.
func (e *WASMTransformEvaluator) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Transform instantiates (or reuses a cached compile of) moduleKey's
// wasmBytes and calls its `transform` export on value.
func (e *WASMTransformEvaluator) Transform(ctx context.Context, moduleKey string, wasmBytes []byte, value string) (string, error) {
	compiled, err := e.compiled(ctx, moduleKey, wasmBytes)
	if err != nil {
		return "", err
	}

	mod, err := e.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return "", fmt.Errorf("coding: wasm instantiate %q: %w", moduleKey, err)
	}
	defer mod.Close(ctx)

	allocFn := mod.ExportedFunction("alloc")
	transformFn := mod.ExportedFunction("transform")
	if allocFn == nil || transformFn == nil {
		return "", fmt.Errorf("coding: wasm module %q missing alloc/transform exports", moduleKey)
	}

	input := []byte(value)
	allocResults, err := allocFn.Call(ctx, uint64(len(input)))
	if err != nil {
		return "", fmt.Errorf("coding: wasm alloc %q: %w", moduleKey, err)
	}
	ptr := uint32(allocResults[0])
	if !mod.Memory().Write(ptr, input) {
		return "", fmt.Errorf("coding: wasm memory write out of range for %q", moduleKey)
	}

	packed, err := transformFn.Call(ctx, uint64(ptr), uint64(len(input)))
	if err != nil {
		return "", fmt.Errorf("coding: wasm transform %q: %w", moduleKey, err)
	}
	outPtr := uint32(packed[0] >> 32)
	outLen := uint32(packed[0])
	out, ok := mod.Memory().Read(outPtr, outLen)
	if !ok {
		return "", fmt.Errorf("coding: wasm memory read out of range for %q", moduleKey)
	}
	return string(out), nil
}

func (e *WASMTransformEvaluator) compiled(ctx context.Context, moduleKey string, wasmBytes []byte) (wazero.CompiledModule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.modules[moduleKey]; ok {
		return c, nil
	}
	c, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("coding: wasm compile %q: %w", moduleKey, err)
	}
	e.modules[moduleKey] = c
	return c, nil
}
