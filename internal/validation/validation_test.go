package validation_test

import (
	"errors"
	"testing"

	"visit-tracker/internal/errs"
	"visit-tracker/internal/validation"
)

type sample struct {
	Email string `json:"email" validate:"required,email"`
	Desc  string `json:"problem_desc" validate:"required,min=10,max=20"`
	Kind  string `json:"support_type" validate:"required,oneof=remote onsite"`
	Hours *int   `json:"estimated_hours" validate:"omitempty,gte=0,lte=999"`
}

func TestStruct(t *testing.T) {
	neg := -1
	err := validation.Struct(sample{Email: "nope", Desc: "short", Kind: "phone", Hours: &neg})
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	got := map[string]string{}
	for _, f := range errs.FieldsOf(err) {
		got[f.Field] = f.Message
	}

	want := map[string]string{
		"email":           "must be a valid email address",
		"problem_desc":    "must be at least 10 characters",
		"support_type":    "must be one of: remote, onsite",
		"estimated_hours": "must be greater than or equal to 0",
	}
	for field, msg := range want {
		if got[field] != msg {
			t.Errorf("field %s: expected %q, got %q", field, msg, got[field])
		}
	}
}

func TestStructValid(t *testing.T) {
	if err := validation.Struct(sample{Email: "a@b.co", Desc: "printer is broken", Kind: "remote"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestMerge(t *testing.T) {
	err := validation.Merge(nil, validation.Field("a", "bad"), validation.Field("b", "worse"))
	if n := len(errs.FieldsOf(err)); n != 2 {
		t.Fatalf("expected 2 field errors, got %d", n)
	}
	if validation.Merge(nil, nil) != nil {
		t.Fatal("expected nil for no errors")
	}
	other := errs.NotFound("thing")
	if got := validation.Merge(validation.Field("a", "bad"), other); got != other {
		t.Fatalf("expected non-validation error to win, got %v", got)
	}
}
