package persistence

import "errors"

var (
	// ErrMalformedFlow means a stored or imported flow did not parse or
	// failed validation. The caller's graph is never touched.
	ErrMalformedFlow = errors.New("malformed flow")
	// ErrBundleFailed means the flow was saved but its scenes and files
	// could not be bundled.
	ErrBundleFailed = errors.New("flow saved but bundling failed")
	// ErrRestoreFailed means the staging area could not be repopulated
	// from the flow's bundle.
	ErrRestoreFailed = errors.New("flow assets could not be restored")
)
