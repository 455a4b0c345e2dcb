// Package topology implements the per-image binary-tree coordination
// core described by the volt tracker: nodes, trees, the host index and
// the engine and scanner that drive them.
package topology

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers match them with errors.Is; the HTTP
// adapter maps each to a status code.
var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicate        = errors.New("duplicate")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrForbidden        = errors.New("forbidden")
	// ErrConflict is reserved for future use; the engine never raises it.
	ErrConflict = errors.New("conflict")
)

// InvalidParameterError describes which parameter failed validation and why.
type InvalidParameterError struct {
	Param string
	Value string
	Msg   string
}

func (e *InvalidParameterError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid parameter %q: %s", e.Param, e.Msg)
	}
	return fmt.Sprintf("invalid parameter %q=%q: %s", e.Param, e.Value, e.Msg)
}

func (e *InvalidParameterError) Unwrap() error { return ErrInvalidParameter }

func newInvalidParameter(param, value, msg string) error {
	return &InvalidParameterError{Param: param, Value: value, Msg: msg}
}

// NewInvalidParameter builds an InvalidParameterError. Exported for the
// httpapi adapter, which validates some parameters (e.g. volume_id's
// colon restriction) before they ever reach the Engine.
func NewInvalidParameter(param, value, msg string) error {
	return newInvalidParameter(param, value, msg)
}

// NotFoundError names the kind of object (image, peer, host) that was missing.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func newNotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// DuplicateError names a peer that is already bound to a host.
type DuplicateError struct {
	Host   string
	PeerID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("peer %q already bound to host %q", e.PeerID, e.Host)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }

func newDuplicate(host, peerID string) error {
	return &DuplicateError{Host: host, PeerID: peerID}
}
