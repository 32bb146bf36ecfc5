package validator

import (
	"errors"
	"testing"
)

type lineRequest struct {
	ProductID      string  `json:"productId" validate:"required"`
	Quantity       float64 `json:"quantity" validate:"gt=0,max=1000000"`
	UnitPriceCents int64   `json:"unitPriceCents" validate:"gte=0,max=1000000000000"`
}

type queryRequest struct {
	Page int `form:"page" validate:"omitempty,min=1"`
}

func TestFieldErrorsUseWireNames(t *testing.T) {
	v := New()

	err := v.Struct(lineRequest{Quantity: 2e6, UnitPriceCents: 9e18})
	got := FieldErrors(err)
	want := map[string]string{
		"productId":      "required",
		"quantity":       "max=1000000",
		"unitPriceCents": "max=1000000000000",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for field, rule := range want {
		if got[field] != rule {
			t.Fatalf("field %s: expected %q, got %q", field, rule, got[field])
		}
	}
}

func TestFieldErrorsFallsBackToFormName(t *testing.T) {
	got := FieldErrors(New().Struct(queryRequest{Page: -1}))
	if got["page"] != "min=1" {
		t.Fatalf("expected page min=1, got %v", got)
	}
}

func TestFieldErrorsIgnoresOtherErrors(t *testing.T) {
	if got := FieldErrors(errors.New("boom")); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
	if got := FieldErrors(New().Struct(lineRequest{ProductID: "P-1", Quantity: 1})); got != nil {
		t.Fatalf("expected nil for a valid struct, got %v", got)
	}
}
