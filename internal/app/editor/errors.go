package editor

import "errors"

var (
	ErrNoPendingConnection = errors.New("no pending connection")
	ErrConnectionPending   = errors.New("a connection is waiting for its mode")
	ErrNothingSelected     = errors.New("nothing selected")
	ErrSentinelExists      = errors.New("graph already has a Game Start node")
)
