package ddserrors

import (
	"errors"
	"testing"
)

func TestErrorStringIncludesKindAndOperation(t *testing.T) {
	e := New(BadParameter, "delete_publisher", "handle not found")
	want := "BadParameter: delete_publisher: handle not found"
	if e.Error() != want {
		t.Fatalf("Error() = %q, want %q", e.Error(), want)
	}
}

func TestWrapPreservesCauseViaUnwrap(t *testing.T) {
	cause := errors.New("boom")
	e := Wrap(OutOfResources, "allocate_entity_id", cause)
	if !errors.Is(e, cause) {
		t.Fatal("errors.Is(e, cause) = false, want true")
	}
}

func TestIsMatchesKind(t *testing.T) {
	e := New(Timeout, "wait_for_historical_data", "")
	if !Is(e, Timeout) {
		t.Fatal("Is(e, Timeout) = false, want true")
	}
	if Is(e, NotEnabled) {
		t.Fatal("Is(e, NotEnabled) = true, want false")
	}
}

func TestNetworkErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	ne := &NetworkError{Operation: "send", Err: cause}
	if errors.Unwrap(ne) != cause {
		t.Fatal("Unwrap() did not return wrapped cause")
	}
}
