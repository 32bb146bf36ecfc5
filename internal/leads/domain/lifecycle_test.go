package domain

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"sales_pipeline_backend/platform/apperr"

	"github.com/google/uuid"
)

func TestCanTransitionTable(t *testing.T) {
	type transition struct {
		from       Status
		event      Event
		want       Status
		wantReason apperr.Reason
		wantKind   apperr.Kind
	}

	cases := []transition{
		{StatusOpen, EventMarkWon, StatusWon, "", apperr.KindUnknown},
		{StatusOpen, EventMarkLost, StatusLost, "", apperr.KindUnknown},
		{StatusLost, EventReactivate, StatusOpen, "", apperr.KindUnknown},

		// WON is permanent.
		{StatusWon, EventMarkWon, "", apperr.ReasonAlreadyTerminal, apperr.KindConflict},
		{StatusWon, EventMarkLost, "", apperr.ReasonAlreadyTerminal, apperr.KindConflict},
		{StatusWon, EventReactivate, "", apperr.ReasonAlreadyTerminal, apperr.KindConflict},

		// LOST only leaves through reactivation.
		{StatusLost, EventMarkWon, "", apperr.ReasonAlreadyTerminal, apperr.KindConflict},
		{StatusLost, EventMarkLost, "", apperr.ReasonAlreadyTerminal, apperr.KindConflict},

		// Reactivating an open lead is a plain conflict, not a terminal one.
		{StatusOpen, EventReactivate, "", apperr.ReasonNone, apperr.KindConflict},
	}

	for _, tc := range cases {
		got, err := CanTransition(tc.from, tc.event)
		if tc.wantKind == apperr.KindUnknown {
			if err != nil {
				t.Fatalf("%s/%s: unexpected error %v", tc.from, tc.event, err)
			}
			if got != tc.want {
				t.Fatalf("%s/%s: expected %s, got %s", tc.from, tc.event, tc.want, got)
			}
			continue
		}
		if !apperr.Is(err, tc.wantKind) {
			t.Fatalf("%s/%s: expected kind %v, got %v", tc.from, tc.event, tc.wantKind, err)
		}
		if e, _ := apperr.As(err); e.Reason != tc.wantReason {
			t.Fatalf("%s/%s: expected reason %q, got %q", tc.from, tc.event, tc.wantReason, e.Reason)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus(" lost "); err != nil || s != StatusLost {
		t.Fatalf("expected LOST, got %q (%v)", s, err)
	}
	if _, err := ParseStatus("EM_ANDAMENTO"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}

func TestApplyLostRequiresReason(t *testing.T) {
	lead := Lead{ID: uuid.New(), Status: StatusOpen}

	if _, err := lead.ApplyLost("   ", time.Now()); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for blank reason, got %v", err)
	}
	if _, err := lead.ApplyLost(strings.Repeat("x", MaxLossReasonLength+1), time.Now()); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for long reason, got %v", err)
	}

	lost, err := lead.ApplyLost("  budget ", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lost.Status != StatusLost || lost.LossReason == nil || *lost.LossReason != "budget" {
		t.Fatalf("unexpected lost lead %+v", lost)
	}
	if lead.Status != StatusOpen {
		t.Fatalf("ApplyLost must not mutate the receiver")
	}
}

func TestReactivateClearsReasonAndKeepsValue(t *testing.T) {
	reason := "budget"
	lostAt := time.Now()
	lead := Lead{ID: uuid.New(), Status: StatusLost, LossReason: &reason, LostAt: &lostAt, ValueCents: 4200}

	reopened, err := lead.ApplyReactivated(time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reopened.Status != StatusOpen || reopened.LossReason != nil || reopened.LostAt != nil {
		t.Fatalf("expected open lead without reason, got %+v", reopened)
	}
	if reopened.ValueCents != 4200 {
		t.Fatalf("reactivation must not touch the value")
	}

	if _, err := reopened.ApplyLost("still no budget", time.Now()); err != nil {
		t.Fatalf("expected reopened lead to be losable again: %v", err)
	}
}

func TestEnsureMutable(t *testing.T) {
	for _, s := range []Status{StatusWon, StatusLost} {
		if err := (Lead{Status: s}).EnsureMutable(); !apperr.IsConflict(err, apperr.ReasonAlreadyTerminal) {
			t.Fatalf("%s: expected already-terminal conflict, got %v", s, err)
		}
	}
	if err := (Lead{Status: StatusOpen}).EnsureMutable(); err != nil {
		t.Fatalf("open lead must be mutable: %v", err)
	}
}

func TestValidateQuantityAndPrice(t *testing.T) {
	cases := []struct {
		qty   float64
		price int64
		ok    bool
	}{
		{1, 0, true},
		{0.5, 1999, true},
		{0, 100, false},
		{-1, 100, false},
		{1, -1, false},
		{MaxQuantity, MaxUnitPriceCents, true},
		{MaxQuantity + 0.5, 1, false},
		{1e17, 1000, false},
		{1, MaxUnitPriceCents + 1, false},
		{1, math.MaxInt64, false},
	}
	for _, tc := range cases {
		err := ValidateQuantityAndPrice(tc.qty, tc.price)
		if tc.ok && err != nil {
			t.Fatalf("qty=%v price=%d: unexpected error %v", tc.qty, tc.price, err)
		}
		if !tc.ok && !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("qty=%v price=%d: expected validation error, got %v", tc.qty, tc.price, err)
		}
	}
}

func TestSumLinesIsFullResum(t *testing.T) {
	lines := []ProductLine{
		{Quantity: 2, UnitPriceCents: 10000},
		{Quantity: 1.5, UnitPriceCents: 333},
	}
	// 20000 + round(499.5) = 20500
	if got := SumLines(lines); got != 20500 {
		t.Fatalf("expected 20500, got %d", got)
	}
	if got := SumLines(nil); got != 0 {
		t.Fatalf("expected empty ledger to sum to 0, got %d", got)
	}
}

func TestCheckedSumLinesDetectsOverflow(t *testing.T) {
	big := ProductLine{Quantity: MaxQuantity, UnitPriceCents: MaxUnitPriceCents}
	nine := []ProductLine{big, big, big, big, big, big, big, big, big}
	got, err := CheckedSumLines(nine)
	if err != nil || got != 9e18 {
		t.Fatalf("expected 9e18 without error, got %d, %v", got, err)
	}
	if _, err := CheckedSumLines(append(nine, big)); !errors.Is(err, ErrValueOverflow) {
		t.Fatalf("expected overflow on the tenth line, got %v", err)
	}
	// A single line whose product leaves int64 must not wrap to a negative value.
	if _, err := CheckedSumLines([]ProductLine{{Quantity: 1e17, UnitPriceCents: 1000}}); !errors.Is(err, ErrValueOverflow) {
		t.Fatalf("expected overflow for an out-of-range line, got %v", err)
	}
	if _, err := CheckedSumLines([]ProductLine{{Quantity: 9e18, UnitPriceCents: 1}, {Quantity: 1e18, UnitPriceCents: 1}}); !errors.Is(err, ErrValueOverflow) {
		t.Fatalf("expected overflow for 9e18 + 1e18, got %v", err)
	}
}

func TestNewOrderSnapshotPreconditions(t *testing.T) {
	partnerID := uuid.New()
	lead := Lead{ID: uuid.New(), OrganizationID: uuid.New(), Name: "Acme", Status: StatusOpen, PartnerID: &partnerID}
	lines := []ProductLine{{ProductID: "P-1", Quantity: 2, UnitPriceCents: 10000}}
	partner := Partner{ID: partnerID, Name: "Acme Ltda"}

	if _, err := NewOrderSnapshot(lead, partner, nil, time.Now()); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error without lines, got %v", err)
	}

	noPartner := lead
	noPartner.PartnerID = nil
	if _, err := NewOrderSnapshot(noPartner, partner, lines, time.Now()); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error without partner, got %v", err)
	}

	won := lead
	won.Status = StatusWon
	if _, err := NewOrderSnapshot(won, partner, lines, time.Now()); !apperr.IsConflict(err, apperr.ReasonAlreadyTerminal) {
		t.Fatalf("expected terminal conflict, got %v", err)
	}
}

func TestOrderSnapshotIsImmutable(t *testing.T) {
	partnerID := uuid.New()
	lead := Lead{ID: uuid.New(), Name: "Acme", Description: "rooftop", Status: StatusOpen, PartnerID: &partnerID}
	lines := []ProductLine{{ProductID: "P-1", Quantity: 2, UnitPriceCents: 10000}}

	snap, err := NewOrderSnapshot(lead, Partner{ID: partnerID, Name: "Acme"}, lines, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines[0].Quantity = 99
	items := snap.Items()
	items[0].Quantity = 42

	if got := snap.Items()[0].Quantity; got != 2 {
		t.Fatalf("snapshot must not change after construction, got quantity %v", got)
	}
	if snap.TotalCents() != 20000 {
		t.Fatalf("expected total 20000, got %d", snap.TotalCents())
	}
	if snap.Notes() != "Lead: Acme - rooftop" {
		t.Fatalf("unexpected notes %q", snap.Notes())
	}
	if snap.IdempotencyKey() != WinIdempotencyKey(lead.ID) {
		t.Fatalf("unexpected idempotency key %q", snap.IdempotencyKey())
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"idempotencyKey":"lead-win-`) {
		t.Fatalf("wire form must carry the idempotency key: %s", raw)
	}
}
