// Package envelope implements the version façade's discriminated-union
// envelopes: VersionedAction, VersionedResponse, VersionedQuery, and
// VersionedQueryResponse, each a tagged union over the per-version wire
// types in internal/apiversion, expressed in Go as a Version-tagged
// struct (Go has no native sum type) carrying the raw per-version
// payload bytes, built and read through Wrap/Project functions.
package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/foldnet/gameserver/internal/domain"
)

// Version names one of the published API versions.
type Version string

// VersionedAction is the wire envelope for an action request: a version
// tag plus the opaque per-version action payload.
type VersionedAction struct {
	Version Version         `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

// VersionedResponse is the wire envelope for an action response.
type VersionedResponse struct {
	Version Version         `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

// VersionedQuery is the wire envelope for a query request.
type VersionedQuery struct {
	Version Version         `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

// VersionedQueryResponse is the wire envelope for a query response.
type VersionedQueryResponse struct {
	Version Version         `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

// ErrWrongVariant is returned when a caller asks to project an envelope
// as a version it does not carry.
var ErrWrongVariant = fmt.Errorf("%w: envelope variant mismatch", domain.ErrProtocolMismatch)

// WrapAction wraps a per-version action payload (already encoded by the
// apiversion package) into the envelope.
func WrapAction(version Version, payload []byte) (domain.ActionBlob, error) {
	env := VersionedAction{Version: version, Payload: payload}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("envelope: wrap action: %w", err)
	}
	return domain.ActionBlob(b), nil
}

// ProjectAction decodes blob as a VersionedAction and returns its raw
// payload only if it matches expectedVersion; otherwise ErrWrongVariant.
func ProjectAction(blob domain.ActionBlob, expectedVersion Version) ([]byte, error) {
	var env VersionedAction
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("%w: decode action envelope: %v", domain.ErrProtocolMismatch, err)
	}
	if env.Version != expectedVersion {
		return nil, ErrWrongVariant
	}
	return env.Payload, nil
}

// WrapResponse wraps a per-version response payload into the envelope.
// The façade never transcodes: the response envelope variant always
// matches the request's, preserving backwards compatibility for callers
// still speaking an older version.
func WrapResponse(version Version, payload []byte) (domain.ResponseBlob, error) {
	env := VersionedResponse{Version: version, Payload: payload}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("envelope: wrap response: %w", err)
	}
	return domain.ResponseBlob(b), nil
}

// ProjectResponse decodes blob as a VersionedResponse and returns its
// raw payload only if it matches expectedVersion.
func ProjectResponse(blob domain.ResponseBlob, expectedVersion Version) ([]byte, error) {
	var env VersionedResponse
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("%w: decode response envelope: %v", domain.ErrProtocolMismatch, err)
	}
	if env.Version != expectedVersion {
		return nil, ErrWrongVariant
	}
	return env.Payload, nil
}

// WrapQuery wraps a per-version query payload into the envelope.
func WrapQuery(version Version, payload []byte) (domain.QueryBlob, error) {
	env := VersionedQuery{Version: version, Payload: payload}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("envelope: wrap query: %w", err)
	}
	return domain.QueryBlob(b), nil
}

// ProjectQuery decodes blob as a VersionedQuery and returns its raw
// payload only if it matches expectedVersion.
func ProjectQuery(blob domain.QueryBlob, expectedVersion Version) ([]byte, error) {
	var env VersionedQuery
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("%w: decode query envelope: %v", domain.ErrProtocolMismatch, err)
	}
	if env.Version != expectedVersion {
		return nil, ErrWrongVariant
	}
	return env.Payload, nil
}

// WrapQueryResponse wraps a per-version query response payload into the
// envelope.
func WrapQueryResponse(version Version, payload []byte) (domain.QueryResponseBlob, error) {
	env := VersionedQueryResponse{Version: version, Payload: payload}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("envelope: wrap query response: %w", err)
	}
	return domain.QueryResponseBlob(b), nil
}

// ProjectQueryResponse decodes blob as a VersionedQueryResponse and
// returns its raw payload only if it matches expectedVersion. Used by
// the façade's stream conversion: each element of a query response
// stream is projected independently, and a decode failure aborts the
// stream with ProtocolMismatch rather than skipping the bad element.
func ProjectQueryResponse(blob domain.QueryResponseBlob, expectedVersion Version) ([]byte, error) {
	var env VersionedQueryResponse
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("%w: decode query response envelope: %v", domain.ErrProtocolMismatch, err)
	}
	if env.Version != expectedVersion {
		return nil, ErrWrongVariant
	}
	return env.Payload, nil
}
