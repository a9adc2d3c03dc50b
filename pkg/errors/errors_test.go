package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *CacheError
		want string
	}{
		{
			name: "code and message only",
			err:  New(ErrCodeParse, "corrupt envelope"),
			want: "PARSE: corrupt envelope",
		},
		{
			name: "with component",
			err:  New(ErrCodeStorageWrite, "write failed").WithComponent("bridge"),
			want: "[bridge] STORAGE_WRITE: write failed",
		},
		{
			name: "with component and operation",
			err:  New(ErrCodeQuotaExceeded, "blob too large").WithComponent("filestore").WithOperation("write"),
			want: "[filestore:write] QUOTA_EXCEEDED: blob too large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestCacheError_Unwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(ErrCodeStorageWrite, "write failed", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, cause, err.Unwrap())
}

func TestCacheError_IsMatchesByCode(t *testing.T) {
	a := New(ErrCodeQuotaExceeded, "first")
	b := New(ErrCodeQuotaExceeded, "second")
	c := New(ErrCodeParse, "other")

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, c))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{New(ErrCodeCompression, "gzip failed"), KindCompression},
		{New(ErrCodeParse, "bad json"), KindParse},
		{New(ErrCodeNetwork, "timeout"), KindNetwork},
		{New(ErrCodeStorageWrite, "write failed"), KindStorage},
		{New(ErrCodeQuotaExceeded, "full"), KindStorage},
		{stderrors.New("plain error"), KindStorage},
		{fmt.Errorf("wrapped: %w", New(ErrCodeNetwork, "reset")), KindNetwork},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), "error %v", tt.err)
	}
}

func TestIsQuotaExceeded(t *testing.T) {
	assert.True(t, IsQuotaExceeded(New(ErrCodeQuotaExceeded, "full")))
	assert.True(t, IsQuotaExceeded(fmt.Errorf("save: %w", New(ErrCodeQuotaExceeded, "full"))))
	assert.False(t, IsQuotaExceeded(New(ErrCodeStorageWrite, "failed")))
	assert.False(t, IsQuotaExceeded(stderrors.New("full")))
}

func TestIsInvalidKeyPart(t *testing.T) {
	assert.True(t, IsInvalidKeyPart(New(ErrCodeInvalidKeyPart, "separator in part")))
	assert.False(t, IsInvalidKeyPart(New(ErrCodeParse, "bad")))
}
