package viewerr

import (
	"errors"
	"fmt"
	"testing"
)

type dataErr struct{}

func (dataErr) Error() string    { return "bad data" }
func (dataErr) Kind() Kind       { return KindData }
func (dataErr) Name() string     { return "Bad data" }
func (dataErr) Solution() string { return "Fix it." }

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: KindUnknown},
		{name: "plain", err: errors.New("boom"), want: KindUnknown},
		{name: "configuration", err: Configuration(errors.New("no path")), want: KindConfiguration},
		{name: "wrapped data", err: fmt.Errorf("render: %w", dataErr{}), want: KindData},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestConfigurationPreservesChain(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := Configuration(sentinel)
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected errors.Is to find sentinel")
	}
	if err.Error() != "sentinel" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if Configuration(nil) != nil {
		t.Fatalf("expected nil for nil input")
	}
}

func TestFriendlyOf(t *testing.T) {
	friendly, ok := FriendlyOf(fmt.Errorf("wrap: %w", dataErr{}))
	if !ok {
		t.Fatalf("expected friendly error")
	}
	if friendly.Name() != "Bad data" || friendly.Solution() != "Fix it." {
		t.Fatalf("unexpected friendly payload %q %q", friendly.Name(), friendly.Solution())
	}
	if _, ok := FriendlyOf(errors.New("plain")); ok {
		t.Fatalf("plain error should not be friendly")
	}
}
