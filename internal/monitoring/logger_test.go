package monitoring

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLogWriters(t *testing.T) {
	defer SetLogWriters(LogWriters{})

	var ops, diag bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops, Diag: &diag})

	Opsf("sector %d failed", 3)
	Diagf("fit %s", "ok")
	Tracef("should not appear anywhere")

	assert.Contains(t, ops.String(), "sector 3 failed")
	assert.Contains(t, diag.String(), "fit ok")
	assert.NotContains(t, ops.String(), "should not appear")
	assert.NotContains(t, diag.String(), "should not appear")
}

func TestSetLogWriters_NilMutes(t *testing.T) {
	defer SetLogWriters(LogWriters{})

	SetLogWriters(LogWriters{})
	// Must not panic with every stream disabled.
	Opsf("dropped")
	Diagf("dropped")
	Tracef("dropped")
}

func TestWritersForLevel(t *testing.T) {
	var buf bytes.Buffer

	tests := []struct {
		level     string
		wantDiag  bool
		wantTrace bool
		wantErr   bool
	}{
		{level: "", wantDiag: false, wantTrace: false},
		{level: "ops", wantDiag: false, wantTrace: false},
		{level: "DIAG", wantDiag: true, wantTrace: false},
		{level: "trace", wantDiag: true, wantTrace: true},
		{level: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			w, err := WritersForLevel(tt.level, &buf)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, w.Ops)
			assert.Equal(t, tt.wantDiag, w.Diag != nil)
			assert.Equal(t, tt.wantTrace, w.Trace != nil)
		})
	}
}

func TestRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "..", "autofire.log")
	f := RotatingFile(path)
	defer f.Close()

	assert.True(t, strings.HasSuffix(f.Filename, "autofire.log"))
	assert.NotContains(t, f.Filename, "..")

	_, err := f.Write([]byte("hello\n"))
	require.NoError(t, err)
}
