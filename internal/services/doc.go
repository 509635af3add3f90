// Package services holds the shared error taxonomy.
//
// Components wrap failures with a sentinel marker (timeout, transient,
// unavailable, validation) so callers can decide between retrying a batch,
// falling back to an alternate strategy, or surfacing the failure, without
// inspecting error strings.
package services
