package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want bool
	}{
		{KindPoolFull, true},
		{KindInternal, true},
		{KindDuplicateTransaction, false},
		{KindSignatureInvalid, false},
		{KindContractInvalid, false},
		{KindMissingFields, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, NewAdmissionError(tt.kind, "m").Retryable())
		})
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("admit: %w", NewAdmissionError(KindPoolFull, ErrMsgPoolFull))
	assert.Equal(t, KindPoolFull, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(fmt.Errorf("disk on fire")))
}
