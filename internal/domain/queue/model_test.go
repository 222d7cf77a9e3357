package queue

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		kind Kind
		from Status
		to   Status
		want bool
	}{
		{KindAccessRequest, StatusPending, StatusActive, true},
		{KindAccessRequest, StatusActive, StatusCompleted, true},
		{KindAccessRequest, StatusPending, StatusCompleted, false},
		{KindAccessRequest, StatusActive, StatusPending, false},
		{KindAccessRequest, StatusCompleted, StatusActive, false},
		{KindAccessRequest, StatusCompleted, StatusPending, false},
		{KindPharmacyOrder, StatusPending, StatusCompleted, true},
		{KindPharmacyOrder, StatusPending, StatusCancelled, true},
		{KindPharmacyOrder, StatusPending, StatusActive, false},
		{KindPharmacyOrder, StatusActive, StatusCompleted, false},
		{KindPharmacyOrder, StatusCompleted, StatusPending, false},
		{KindPharmacyOrder, StatusCancelled, StatusCompleted, false},
		{KindPharmacyOrder, StatusCancelled, StatusPending, false},
		{KindAccessRequest, StatusPending, StatusCancelled, false},
		{Kind("bogus"), StatusPending, StatusActive, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.kind, tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s -> %s) = %v, want %v",
				tc.kind, tc.from, tc.to, got, tc.want)
		}
	}
}

func TestKindValid(t *testing.T) {
	if !KindAccessRequest.Valid() || !KindPharmacyOrder.Valid() {
		t.Error("expected built-in kinds to be valid")
	}
	if Kind("").Valid() || Kind("bogus").Valid() {
		t.Error("expected unknown kinds to be invalid")
	}
}
