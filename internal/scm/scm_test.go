package scm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchError(t *testing.T) {
	base := errors.New("boom")
	err := error(&FetchError{ProjectID: "42", MRID: 7, Err: base})

	assert.Equal(t, "fetching merge request 42!7: boom", err.Error())
	assert.ErrorIs(t, err, base)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 7, fe.MRID)
}

func TestRemoteError(t *testing.T) {
	base := errors.New("forbidden")
	tests := []struct {
		name string
		err  *RemoteError
		want string
	}{
		{"with status", &RemoteError{Op: "approve", StatusCode: 403, Err: base}, "approve: status 403: forbidden"},
		{"transport", &RemoteError{Op: "approve", Err: base}, "approve: forbidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
			assert.ErrorIs(t, tt.err, base)
		})
	}
}
