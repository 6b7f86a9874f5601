package perr

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrap_ErrorsIsMatchesKind(t *testing.T) {
	err := Wrap(ErrSendFailed, errors.New("write: connection refused"))
	if !errors.Is(err, ErrSendFailed) {
		t.Error("expected errors.Is to match the wrapped kind")
	}
	if errors.Is(err, ErrConfigInvalid) {
		t.Error("expected errors.Is not to match an unrelated kind")
	}
}

func TestWrap_PreservesUnderlyingMessage(t *testing.T) {
	err := Wrap(ErrProtocolUnsupported, fmt.Errorf("unknown layer %q", "sctp"))
	want := `protocol unsupported: unknown layer "sctp"`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestAs_RecoversKindFromWrappedChain(t *testing.T) {
	err := fmt.Errorf("dial: %w", Wrap(ErrAddressUnresolved, errors.New("no such host")))
	k, ok := As(err)
	if !ok || k != ErrAddressUnresolved {
		t.Errorf("As = %v, %v; want ErrAddressUnresolved, true", k, ok)
	}
}

func TestWrap_NilErrorReturnsNil(t *testing.T) {
	if Wrap(ErrConfigInvalid, nil) != nil {
		t.Error("expected Wrap(kind, nil) to return nil")
	}
}
