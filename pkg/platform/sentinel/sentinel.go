package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, caches, and the gateway
// client return these (optionally wrapped) so services can translate them into
// domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store or cache
// - ErrExpired: cached entry or session token past its lifetime
// - ErrUnavailable: collaborator temporarily unreachable (gateway, broker)
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrExpired     = errors.New("expired")
	ErrUnavailable = errors.New("unavailable")
)
