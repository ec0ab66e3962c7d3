package contract

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mezonai/syncgate/logx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lenGreaterThan3Wasm exports memory and validate(ptr, len) = len > 3.
var lenGreaterThan3Wasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// type: (i32, i32) -> i32
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	// function 0 uses type 0
	0x03, 0x02, 0x01, 0x00,
	// one page of memory
	0x05, 0x03, 0x01, 0x00, 0x01,
	// exports: memory, validate
	0x07, 0x15, 0x02,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	0x08, 'v', 'a', 'l', 'i', 'd', 'a', 't', 'e', 0x00, 0x00,
	// body: local.get 1; i32.const 3; i32.gt_u
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x01, 0x41, 0x03, 0x4b, 0x0b,
}

func TestDecode(t *testing.T) {
	tests := []struct {
		data     string
		wantErr  error
		proc     string
		argCount int
	}{
		{data: "", wantErr: ErrNotContract},
		{data: "hello world", wantErr: ErrNotContract},
		{data: "ct/", wantErr: ErrMalformedCall},
		{data: "ct//x", wantErr: ErrMalformedCall},
		{data: "ct/delegate", proc: "delegate", argCount: 0},
		{data: "ct/delegate/abc/10", proc: "delegate", argCount: 2},
		{data: "CT/delegate", wantErr: ErrNotContract},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			call, err := Decode(tt.data)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, call)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.proc, call.Procedure)
			assert.Len(t, call.Args, tt.argCount)
		})
	}
}

func TestGateRejectsMalformedTaggedData(t *testing.T) {
	engine, err := NewSchemaEngine(DefaultSchema())
	require.NoError(t, err)
	gate := NewGate(engine, logx.Discard())

	for _, data := range []string{"ct/", "ct//x"} {
		assert.True(t, gate.IsContract(data), data)
		assert.False(t, gate.Validate(context.Background(), data), data)
	}
	assert.False(t, gate.IsContract("hello world"))
}

func TestSchemaEngine(t *testing.T) {
	engine, err := NewSchemaEngine(DefaultSchema())
	require.NoError(t, err)
	gate := NewGate(engine, logx.Discard())
	ctx := context.Background()
	posID := strings.Repeat("ab", 32)

	assert.True(t, gate.Validate(ctx, "ct/delegate/"+posID+"/1000"))
	assert.True(t, gate.Validate(ctx, "ct/create_token/ABC/1000000/8"))

	assert.False(t, gate.Validate(ctx, "ct/delegate/"+posID), "missing arg")
	assert.False(t, gate.Validate(ctx, "ct/delegate/xyz/1000"), "bad pos id")
	assert.False(t, gate.Validate(ctx, "ct/delegate/"+posID+"/0100"), "leading zero")
	assert.False(t, gate.Validate(ctx, "ct/self_destruct"), "unknown procedure")
	assert.False(t, gate.Validate(ctx, "just a memo"), "memo is not a contract")
}

func TestGateFailsClosedWithoutEngine(t *testing.T) {
	gate := NewGate(nil, logx.Discard())
	assert.True(t, gate.IsContract("ct/delegate/a/1"))
	assert.False(t, gate.Validate(context.Background(), "ct/delegate/a/1"))
}

func TestLoadSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contracts.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
procedures:
  vote:
    args:
      - name: proposal
        pattern: "^[0-9]+$"
`), 0644))

	schema, err := LoadSchema(path)
	require.NoError(t, err)
	engine, err := NewSchemaEngine(schema)
	require.NoError(t, err)

	ctx := context.Background()
	assert.NoError(t, engine.Validate(ctx, &Call{Procedure: "vote", Args: []string{"12"}}))
	assert.Error(t, engine.Validate(ctx, &Call{Procedure: "vote", Args: []string{"x"}}))
	assert.Error(t, engine.Validate(ctx, &Call{Procedure: "delegate"}))
}

func TestSchemaEngineRejectsBadPattern(t *testing.T) {
	_, err := NewSchemaEngine(&SchemaFile{Procedures: map[string]ProcedureSpec{
		"broken": {Args: []ArgSpec{{Name: "x", Pattern: "("}}},
	}})
	assert.Error(t, err)
}

func TestWasmEngine(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWasmEngine(ctx, lenGreaterThan3Wasm)
	require.NoError(t, err)
	defer engine.Close(ctx)

	gate := NewGate(engine, logx.Discard())
	assert.True(t, gate.Validate(ctx, "ct/abcd"))
	assert.True(t, gate.Validate(ctx, "ct/a/bc"))
	assert.False(t, gate.Validate(ctx, "ct/abc"))
}

func TestWasmEngineRejectsGarbage(t *testing.T) {
	_, err := NewWasmEngine(context.Background(), []byte("not wasm"))
	assert.Error(t, err)
}
