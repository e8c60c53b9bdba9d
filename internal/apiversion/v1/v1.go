// Package v1 holds the wire types for API version "1.0": a discriminated
// union of action/response/query/query-response method variants for a
// game/short-code domain. These are illustrative default wiring for the
// version façade; any per-version method set can be plugged into the
// same envelope.Wrap/Project machinery.
package v1

import "encoding/json"

// Kind discriminates which method variant a Go struct's json.RawMessage
// actually holds, since Go lacks native sum types.
type Kind string

const (
	KindCreateGame Kind = "create_game"
	KindDeleteGame Kind = "delete_game"
	KindGetGame    Kind = "get_game"
)

// Action is the v1 action method union: CreateGame or DeleteGame.
type Action struct {
	Kind Kind            `json:"kind"`
	Body json.RawMessage `json:"body"`
}

// CreateGame requests creation of a new game identified by GameID,
// reachable via the given short code.
type CreateGame struct {
	GameID    string `json:"game_id"`
	ShortCode string `json:"short_code"`
}

// DeleteGame requests deletion of an existing game.
type DeleteGame struct {
	GameID string `json:"game_id"`
}

// Response is the v1 action response union.
type Response struct {
	Kind Kind            `json:"kind"`
	Body json.RawMessage `json:"body,omitempty"`
}

const (
	KindOk               Kind = "ok"
	KindGameNotFound     Kind = "game_not_found"
	KindGameAlreadyExist Kind = "game_already_exists"
	KindShortCodeInUse   Kind = "short_code_in_use"
)

// GameNotFound, GameAlreadyExists, and ShortCodeInUse are the response
// bodies for their respective Response.Kind values; Ok carries no body.
type GameNotFound struct {
	GameID string `json:"game_id"`
}

type GameAlreadyExists struct {
	GameID string `json:"game_id"`
}

type ShortCodeInUse struct {
	ShortCode string `json:"short_code"`
}

// Query is the v1 query method union, added alongside actions to
// support live lookups: not every envelope variant needs to exist in
// every API version.
type Query struct {
	Kind Kind            `json:"kind"`
	Body json.RawMessage `json:"body"`
}

const (
	KindQueryGame      Kind = "query_game"
	KindQueryShortCode Kind = "query_short_code"
)

// QueryGame looks up a game by id; QueryShortCode looks up by its short
// code.
type QueryGame struct {
	GameID string `json:"game_id"`
}

type QueryShortCode struct {
	ShortCode string `json:"short_code"`
}

// QueryResponse is the v1 query response union.
type QueryResponse struct {
	Kind Kind            `json:"kind"`
	Body json.RawMessage `json:"body,omitempty"`
}

const (
	KindGameResult      Kind = "game_result"
	KindShortCodeResult Kind = "short_code_result"
)

// GameResult carries the resolved short code for a game, or empty if
// the game does not exist. ShortCodeResult carries the resolved game id
// for a short code, or empty if unassigned.
type GameResult struct {
	ShortCode string `json:"short_code,omitempty"`
}

type ShortCodeResult struct {
	GameID string `json:"game_id,omitempty"`
}
