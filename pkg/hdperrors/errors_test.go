package hdperrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{InvalidEncoding, 1},
		{UnknownVariant, 1},
		{MissingChainConfig, 1},
		{ProviderError, 2},
		{Timeout, 2},
		{ModuleNotFound, 2},
		{InvalidMMR, 3},
		{ProverMismatch, 3},
		{ProverAborted, 3},
	}
	for _, c := range cases {
		if got := c.kind.ExitCode(); got != c.want {
			t.Errorf("%s: got exit code %d, want %d", c.kind, got, c.want)
		}
	}
}

func TestKindOfThroughWrapping(t *testing.T) {
	base := errors.New("boom")
	wrapped := Wrap(ProviderError, "fetch-key X", base)
	outer := fmt.Errorf("compiling task: %w", wrapped)

	kind, ok := KindOf(outer)
	if !ok {
		t.Fatal("expected KindOf to find the wrapped *Error")
	}
	if kind != ProviderError {
		t.Errorf("got kind %s, want %s", kind, ProviderError)
	}
}

func TestKindOfNotFound(t *testing.T) {
	_, ok := KindOf(errors.New("plain error"))
	if ok {
		t.Error("expected KindOf to report not-found for a plain error")
	}
}

func TestErrorMessageFormatting(t *testing.T) {
	e := New(InvalidBlockRange, "start > end")
	if e.Error() != "InvalidBlockRange: start > end" {
		t.Errorf("unexpected message: %s", e.Error())
	}

	withOffender := &Error{Kind: FieldOutOfRange, Message: "too big", Offender: "task[2]"}
	if withOffender.Error() != "FieldOutOfRange: too big (task[2])" {
		t.Errorf("unexpected message: %s", withOffender.Error())
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	e := Wrap(Timeout, "chain call", cause)
	if !errors.Is(e, cause) {
		t.Error("expected errors.Is to find the cause through Unwrap")
	}
}
