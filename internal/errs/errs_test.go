package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"visit-tracker/internal/errs"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want errs.Kind
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), errs.KindInternal},
		{"typed", errs.Conflict("taken"), errs.KindConflict},
		{"wrapped", fmt.Errorf("record visit: %w", errs.NotFound("request")), errs.KindNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := errs.KindOf(tc.err); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestSentinels(t *testing.T) {
	err := fmt.Errorf("deduct: %w", errs.Newf(errs.KindInsufficientQuota, "%d of %d available", 1, 10))
	if !errors.Is(err, errs.ErrInsufficientQuota) {
		t.Fatal("expected insufficient quota sentinel to match")
	}
	if errors.Is(err, errs.ErrConflict) {
		t.Fatal("sentinels of other kinds must not match")
	}
}
