package envelope

import (
	"errors"
	"testing"
)

func TestWrapProjectActionRoundTrip(t *testing.T) {
	blob, err := WrapAction("1.0", []byte(`{"hello":"world"}`))
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}

	payload, err := ProjectAction(blob, "1.0")
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if string(payload) != `{"hello":"world"}` {
		t.Fatalf("unexpected payload: %s", payload)
	}
}

func TestProjectActionWrongVariant(t *testing.T) {
	blob, err := WrapAction("1.0", []byte(`{}`))
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}

	_, err = ProjectAction(blob, "2.0")
	if !errors.Is(err, ErrWrongVariant) {
		t.Fatalf("expected ErrWrongVariant, got %v", err)
	}
}
