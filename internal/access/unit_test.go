package access

import "testing"

func TestNormalizeUnitName(t *testing.T) {
	cases := map[string]string{
		"Computer Science":      "computer science",
		"  computer   SCIENCE ": "computer science",
		"Mechanical\tEngineering": "mechanical engineering",
		"": "",
	}
	for in, want := range cases {
		if got := normalizeUnitName(in); got != want {
			t.Fatalf("normalizeUnitName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUnitRefZero(t *testing.T) {
	var nilRef *UnitRef
	if !nilRef.IsZero() {
		t.Fatalf("nil ref must be zero")
	}
	if !(&UnitRef{}).IsZero() {
		t.Fatalf("empty ref must be zero")
	}
	if UnitByID("  ") != nil || UnitByName(" ") != nil {
		t.Fatalf("blank constructors must return nil")
	}
	if UnitByID("CS-101").IsZero() {
		t.Fatalf("id ref must not be zero")
	}
	if got := UnitByName("Computer Science").String(); got != "Computer Science" {
		t.Fatalf("unexpected String: %q", got)
	}
}
