package dto

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sceneflow/sceneflow/internal/core/asset"
	"github.com/sceneflow/sceneflow/internal/core/flow"
)

func TestNewError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"asset missing", fmt.Errorf("load: %w", asset.ErrNotFound), CodeNotFound},
		{"no active flow", ErrNoActiveFlow, CodeNotFound},
		{"malformed", fmt.Errorf("%w: bad json", flow.ErrMalformedDocument), CodeMalformed},
		{"self loop", flow.ErrSelfLoop, CodeInvalid},
		{"bad name", asset.ErrInvalidName, CodeInvalid},
		{"fetch", fmt.Errorf("%w: Lobby", ErrSceneFetch), CodeUnavailable},
		{"scene code", ErrSceneExecution, CodeScene},
		{"other", errors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewError(tt.err)
			assert.Equal(t, tt.want, got.Code)
			assert.Equal(t, tt.err.Error(), got.Message)
		})
	}
	assert.Nil(t, NewError(nil))
}
