package sqlapi

import (
	"errors"
	"testing"
)

func TestParseOrGroup(t *testing.T) {
	group := ParseOrGroup("part_number.ilike.%X-100%,owner.eq.Team A")
	if len(group) != 2 {
		t.Fatalf("expected 2 comparisons, got %d", len(group))
	}
	if group[0].Field != "part_number" || group[0].Op != "ilike" || group[0].Value != "%X-100%" {
		t.Errorf("comparison 0 = %+v", group[0])
	}
	if group[1].Field != "owner" || group[1].Op != "eq" || group[1].Value != "Team A" {
		t.Errorf("comparison 1 = %+v", group[1])
	}
}

func TestParseOrGroupValueKeepsDots(t *testing.T) {
	group := ParseOrGroup("part_number.eq.12345.SLDPRT")
	if len(group) != 1 {
		t.Fatalf("got %d comparisons", len(group))
	}
	if group[0].Value != "12345.SLDPRT" {
		t.Errorf("value = %q", group[0].Value)
	}
}

func TestParseOrGroupDropsUnknownOps(t *testing.T) {
	group := ParseOrGroup("a.gt.5,b.ilike.%x%,malformed")
	if len(group) != 1 || group[0].Field != "b" {
		t.Errorf("only the ilike clause should survive: %+v", group)
	}
}

func TestOrGroupRoundTrip(t *testing.T) {
	group := OrGroup{
		{Field: "part_number", Op: "ilike", Value: "%motor%"},
		{Field: "owner", Op: "eq", Value: "Team A"},
	}
	parsed := ParseOrGroup(group.String())
	if len(parsed) != len(group) {
		t.Fatalf("round trip lost comparisons: %+v", parsed)
	}
	for i := range group {
		if parsed[i] != group[i] {
			t.Errorf("comparison %d: %+v != %+v", i, parsed[i], group[i])
		}
	}
}

func TestValidationError(t *testing.T) {
	err := Validationf("records must be a %s array", "non-empty")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatal("Validationf must produce a *ValidationError")
	}
	if verr.Error() != "records must be a non-empty array" {
		t.Errorf("message = %q", verr.Error())
	}
}
