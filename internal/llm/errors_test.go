package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		streamed bool
		want     error
	}{
		{
			name: "nil passes through",
			err:  nil,
			want: nil,
		},
		{
			name: "quota before streaming",
			err:  errors.New("openai: 429 insufficient_quota"),
			want: ErrQuotaExhausted,
		},
		{
			name:     "quota wins over streamed",
			err:      errors.New("rate limit exceeded"),
			streamed: true,
			want:     ErrQuotaExhausted,
		},
		{
			name: "network failure before first chunk",
			err:  errors.New("dial tcp: connection refused"),
			want: ErrUnavailable,
		},
		{
			name:     "failure after first chunk",
			err:      errors.New("unexpected EOF"),
			streamed: true,
			want:     ErrStreamInterrupted,
		},
		{
			name: "resource exhausted phrasing",
			err:  errors.New("RESOURCE EXHAUSTED: project quota"),
			want: ErrQuotaExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := classify(tt.err, tt.streamed)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
			// The original provider error must stay inspectable.
			assert.ErrorContains(t, got, tt.err.Error())
		})
	}
}
