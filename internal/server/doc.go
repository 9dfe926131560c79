// Package server is the reference stage backend: the HTTP API the goStage
// client talks to, routed with chi.
//
// Every stage mutation is re-checked by the same stage.Engine the client
// uses for its pre-checks, then written through a repository
// compare-and-set on the state that was read. Engine and repository errors
// map to statuses as follows:
//
//	stage.ErrValidationFailed   400
//	stage.ErrForbidden          403
//	repository.ErrNotFound      404
//	stage.ErrIllegalTransition  409
//	repository.ErrConflict      409
package server
