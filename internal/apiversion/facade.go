// Package apiversion ties the per-version wire types in apiversion/v1 to
// the envelope package's Wrap/Project machinery, giving the version
// façade a concrete default wiring.
package apiversion

import (
	"encoding/json"
	"fmt"

	"github.com/foldnet/gameserver/internal/apiversion/v1"
	"github.com/foldnet/gameserver/internal/domain"
	"github.com/foldnet/gameserver/internal/envelope"
)

// V1 names version "1.0" in envelope.Version terms.
const V1 envelope.Version = "1.0"

// EncodeActionV1 wraps a v1.Action as a VersionedAction envelope.
func EncodeActionV1(action v1.Action) (domain.ActionBlob, error) {
	payload, err := json.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("apiversion: encode v1 action: %w", err)
	}
	return envelope.WrapAction(V1, payload)
}

// DecodeActionV1 projects blob as the v1 envelope variant and decodes
// its payload. Returns envelope.ErrWrongVariant if blob carries a
// different version.
func DecodeActionV1(blob domain.ActionBlob) (v1.Action, error) {
	var action v1.Action
	payload, err := envelope.ProjectAction(blob, V1)
	if err != nil {
		return action, err
	}
	if err := json.Unmarshal(payload, &action); err != nil {
		return action, fmt.Errorf("%w: decode v1 action body: %v", domain.ErrProtocolMismatch, err)
	}
	return action, nil
}

// EncodeResponseV1 wraps a v1.Response as a VersionedResponse envelope.
func EncodeResponseV1(resp v1.Response) (domain.ResponseBlob, error) {
	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("apiversion: encode v1 response: %w", err)
	}
	return envelope.WrapResponse(V1, payload)
}

// DecodeResponseV1 projects blob as the v1 envelope variant and decodes
// its payload.
func DecodeResponseV1(blob domain.ResponseBlob) (v1.Response, error) {
	var resp v1.Response
	payload, err := envelope.ProjectResponse(blob, V1)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return resp, fmt.Errorf("%w: decode v1 response body: %v", domain.ErrProtocolMismatch, err)
	}
	return resp, nil
}

// EncodeQueryV1 wraps a v1.Query as a VersionedQuery envelope.
func EncodeQueryV1(q v1.Query) (domain.QueryBlob, error) {
	payload, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("apiversion: encode v1 query: %w", err)
	}
	return envelope.WrapQuery(V1, payload)
}

// DecodeQueryResponseV1 projects blob as the v1 envelope variant and
// decodes its payload. Used by the façade's stream conversion: each
// element of a query response stream is projected independently.
func DecodeQueryResponseV1(blob domain.QueryResponseBlob) (v1.QueryResponse, error) {
	var resp v1.QueryResponse
	payload, err := envelope.ProjectQueryResponse(blob, V1)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return resp, fmt.Errorf("%w: decode v1 query response body: %v", domain.ErrProtocolMismatch, err)
	}
	return resp, nil
}
