package apiversion

import (
	"encoding/json"
	"testing"

	"github.com/foldnet/gameserver/internal/apiversion/v1"
)

func TestEncodeDecodeActionV1RoundTrip(t *testing.T) {
	body, _ := json.Marshal(v1.CreateGame{GameID: "g1", ShortCode: "abcd"})
	action := v1.Action{Kind: v1.KindCreateGame, Body: body}

	blob, err := EncodeActionV1(action)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeActionV1(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Kind != v1.KindCreateGame {
		t.Fatalf("expected kind create_game, got %s", decoded.Kind)
	}

	var create v1.CreateGame
	if err := json.Unmarshal(decoded.Body, &create); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if create.GameID != "g1" || create.ShortCode != "abcd" {
		t.Fatalf("unexpected create game body: %+v", create)
	}
}
