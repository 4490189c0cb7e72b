package cdserr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	tcs := []struct {
		desc string
		err  *Error
		want string
	}{
		{
			desc: "no subject no cause",
			err:  New(EmptyTable, ScopeRow, "no rows loaded"),
			want: "EMPTY_TABLE[row]: no rows loaded",
		},
		{
			desc: "subject no cause",
			err:  &Error{Kind: UnknownTable, Scope: ScopeMapping, Subject: "patients", Msg: "not loaded"},
			want: `UNKNOWN_TABLE[mapping] "patients": not loaded`,
		},
		{
			desc: "subject and cause",
			err:  Wrap(ProcessorFailure, ScopeRow, "to_upper", "processor call failed", fmt.Errorf("boom")),
			want: `PROCESSOR_FAILURE[row] "to_upper": processor call failed: boom`,
		},
	}
	for _, tc := range tcs {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Error())
		})
	}
}

func TestIsUnwraps(t *testing.T) {
	inner := New(MissingColumn, ScopeRow, "column absent")
	wrapped := fmt.Errorf("while building resource: %w", inner)

	assert.True(t, Is(wrapped, MissingColumn))
	assert.False(t, Is(wrapped, BadLine))
	assert.False(t, Is(errors.New("plain"), MissingColumn))
}
