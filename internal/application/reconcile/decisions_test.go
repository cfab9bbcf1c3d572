package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLookupDecision(t *testing.T) {
	tests := []struct {
		in      string
		want    LookupDecision
		wantErr bool
	}{
		{in: "continue", want: LookupContinue},
		{in: " Abort ", want: LookupAbort},
		{in: "push", want: LookupAbort, wantErr: true},
		{in: "", want: LookupAbort, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLookupDecision(tt.in)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseHeldDecision(t *testing.T) {
	tests := []struct {
		in      string
		want    HeldDecision
		wantErr bool
	}{
		{in: "push", want: HeldPush},
		{in: "SKIP", want: HeldSkip},
		{in: "continue", want: HeldSkip, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHeldDecision(tt.in)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
