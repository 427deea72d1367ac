// Package flow defines domain-specific errors
package flow

import "errors"

// Domain errors - DRY principle: defined once, used everywhere
var (
	// Node errors
	ErrInvalidNodeID   = errors.New("invalid node ID")
	ErrInvalidNodeName = errors.New("invalid node name")
	ErrNodeNotFound    = errors.New("node not found")
	ErrDuplicateNode   = errors.New("duplicate node ID")

	// Edge errors
	ErrInvalidEdgeID    = errors.New("invalid edge ID")
	ErrEdgeNotFound     = errors.New("edge not found")
	ErrDuplicateEdge    = errors.New("duplicate edge ID")
	ErrSelfLoop         = errors.New("self-loops are not allowed")
	ErrInvalidMode      = errors.New("invalid transition mode")
	ErrInvalidPort      = errors.New("invalid port")
	ErrUnknownTrigger   = errors.New("trigger not declared by node")
	ErrDuplicateTrigger = errors.New("trigger already has an outgoing edge")

	// Document errors
	ErrMalformedDocument = errors.New("malformed flow document")
)
