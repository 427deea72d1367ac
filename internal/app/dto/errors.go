package dto

import (
	"errors"

	"github.com/sceneflow/sceneflow/internal/core/asset"
	"github.com/sceneflow/sceneflow/internal/core/flow"
)

// Session errors
var (
	ErrNoActiveFlow       = errors.New("no active flow")
	ErrNoSentinel         = errors.New("flow has no Game Start node")
	ErrNoStartEdge        = errors.New("Game Start has no outgoing edge")
	ErrInvalidStartTarget = errors.New("Game Start edge leads nowhere playable")
	ErrSceneFetch         = errors.New("scene source unavailable")
	ErrSceneExecution     = errors.New("scene code failed")
	ErrStaleTransition    = errors.New("transition superseded")
	ErrSessionClosed      = errors.New("session closed")
)

// Error codes reported to clients.
const (
	CodeNotFound    = "not_found"
	CodeInvalid     = "invalid"
	CodeMalformed   = "malformed"
	CodeUnavailable = "unavailable"
	CodeScene       = "scene_error"
	CodeInternal    = "internal"
)

// Error is the status record surfaced to a user or API client.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

// NewError classifies err into a status record. It returns nil for nil.
func NewError(err error) *Error {
	if err == nil {
		return nil
	}
	code := CodeInternal
	switch {
	case errors.Is(err, asset.ErrNotFound), errors.Is(err, asset.ErrBundleNotFound),
		errors.Is(err, ErrNoActiveFlow), errors.Is(err, flow.ErrNodeNotFound), errors.Is(err, flow.ErrEdgeNotFound):
		code = CodeNotFound
	case errors.Is(err, flow.ErrMalformedDocument):
		code = CodeMalformed
	case errors.Is(err, asset.ErrInvalidName), errors.Is(err, asset.ErrInvalidKind),
		errors.Is(err, flow.ErrSelfLoop), errors.Is(err, flow.ErrInvalidMode),
		errors.Is(err, flow.ErrInvalidPort), errors.Is(err, flow.ErrUnknownTrigger),
		errors.Is(err, flow.ErrDuplicateTrigger):
		code = CodeInvalid
	case errors.Is(err, ErrSceneFetch), errors.Is(err, asset.ErrLoadFailed), errors.Is(err, asset.ErrSaveFailed):
		code = CodeUnavailable
	case errors.Is(err, ErrSceneExecution):
		code = CodeScene
	}
	return &Error{Code: code, Message: err.Error()}
}
