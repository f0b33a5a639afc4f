package field

import (
	"strings"
	"testing"

	dagerrors "github.com/stevehiehn/greenscreen/internal/errors"
)

func intPtr(n int) *int { return &n }

func TestValidateRequiredEmpty(t *testing.T) {
	r := Rule{Name: "CMPNO", MaxLength: 3, Required: true, Kind: KindDigits, TabsNeeded: 1}
	err := Validate(r, "")
	if !dagerrors.IsType(err, dagerrors.RequiredFieldEmpty) {
		t.Fatalf("expected RequiredFieldEmpty, got %v", err)
	}
}

func TestValidateOptionalEmpty(t *testing.T) {
	r := Rule{Name: "ADDR2", MaxLength: 30, Kind: KindText, TabsNeeded: 1}
	if err := Validate(r, ""); err != nil {
		t.Fatalf("expected optional empty field to pass, got %v", err)
	}
}

func TestValidateTooLongReportsLengths(t *testing.T) {
	r := Rule{Name: "STATE", MaxLength: 2, Kind: KindText}
	err := Validate(r, "CAL")
	if !dagerrors.IsType(err, dagerrors.FieldTooLong) {
		t.Fatalf("expected FieldTooLong, got %v", err)
	}
	if !strings.Contains(err.Error(), "maximum length of 2") || !strings.Contains(err.Error(), "current: 3") {
		t.Errorf("expected actual and allowed length in message, got %q", err.Error())
	}
}

func TestValidateDigits(t *testing.T) {
	r := Rule{Name: "ZIP", MaxLength: 5, Kind: KindDigits}
	if err := Validate(r, "12a45"); !dagerrors.IsType(err, dagerrors.InvalidDigits) {
		t.Fatalf("expected InvalidDigits, got %v", err)
	}
	if err := Validate(r, "12345"); err != nil {
		t.Fatalf("expected digits to pass, got %v", err)
	}
}

func TestValidateEnum(t *testing.T) {
	r := Rule{Name: "CNTRY", MaxLength: 3, Kind: KindText, AllowedValues: []string{"USA", "CAN"}}
	if err := Validate(r, "MEX"); !dagerrors.IsType(err, dagerrors.InvalidEnumValue) {
		t.Fatalf("expected InvalidEnumValue, got %v", err)
	}
	if err := Validate(r, "CAN"); err != nil {
		t.Fatalf("expected CAN to pass, got %v", err)
	}
}

func TestValidateCheckOrder(t *testing.T) {
	// Too long and non-digit: length is checked first.
	r := Rule{Name: "NUM", MaxLength: 2, Kind: KindDigits, AllowedValues: []string{"1"}}
	if err := Validate(r, "abc"); !dagerrors.IsType(err, dagerrors.FieldTooLong) {
		t.Fatalf("expected FieldTooLong first, got %v", err)
	}
	// Non-digit and not in enum: digits checked before enum.
	if err := Validate(r, "a"); !dagerrors.IsType(err, dagerrors.InvalidDigits) {
		t.Fatalf("expected InvalidDigits before enum, got %v", err)
	}
}

func TestValidateCountsRunes(t *testing.T) {
	r := Rule{Name: "NAME", MaxLength: 4, Kind: KindText}
	if err := Validate(r, "Łódź"); err != nil {
		t.Fatalf("expected 4-character value to pass, got %v", err)
	}
}

func TestValidateAllMessagesFollowDeclarationOrder(t *testing.T) {
	set := MustSet(
		Rule{Name: "CMPNO", MaxLength: 3, Required: true, Kind: KindDigits, TabsNeeded: 1},
		Rule{Name: "NAME", MaxLength: 30, Required: true, Kind: KindText, TabsNeeded: 1},
		Rule{Name: "CNTRY", MaxLength: 3, Kind: KindText, TabsNeeded: 1},
	)
	values := map[string]string{"CNTRY": "USA", "NAME": "Acme", "CMPNO": "689"}
	ok, msgs := ValidateAll(set, values)
	if !ok {
		t.Fatalf("expected all valid, got %v", msgs)
	}
	want := []string{
		"✓ CMPNO: '689' (3/3 chars)",
		"✓ NAME: 'Acme' (4/30 chars)",
		"✓ CNTRY: 'USA' (3/3 chars)",
	}
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(msgs))
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Errorf("message %d: expected %q, got %q", i, want[i], msgs[i])
		}
	}
}

func TestValidateAllUnknownField(t *testing.T) {
	set := MustSet(Rule{Name: "CMPNO", MaxLength: 3, Kind: KindDigits, TabsNeeded: 1})
	ok, msgs := ValidateAll(set, map[string]string{"CMPNO": "1", "BOGUS": "x"})
	if ok {
		t.Fatal("expected failure for unknown field")
	}
	if len(msgs) != 2 {
		t.Fatalf("expected one message per submitted field, got %d", len(msgs))
	}
	if msgs[1] != "VALIDATION ERROR - Unknown field: BOGUS" {
		t.Errorf("unexpected message %q", msgs[1])
	}
}

func TestValidateAllFailsIfAnyFieldFails(t *testing.T) {
	set := MustSet(
		Rule{Name: "A", MaxLength: 1, Kind: KindText, TabsNeeded: 1},
		Rule{Name: "B", MaxLength: 1, Required: true, Kind: KindText, TabsNeeded: 1},
	)
	ok, msgs, errs := ValidateAllErrors(set, map[string]string{"A": "x", "B": ""})
	if ok {
		t.Fatal("expected failure")
	}
	if len(msgs) != 2 || len(errs) != 1 {
		t.Fatalf("expected 2 messages and 1 error, got %d and %d", len(msgs), len(errs))
	}
	if msgs[1] != "VALIDATION ERROR - B is required but empty" {
		t.Errorf("unexpected message %q", msgs[1])
	}
}

func TestMissingRequired(t *testing.T) {
	set := MustSet(
		Rule{Name: "A", MaxLength: 1, Required: true},
		Rule{Name: "B", MaxLength: 1, Required: true},
		Rule{Name: "C", MaxLength: 1},
	)
	errs := MissingRequired(set, map[string]string{"A": "x"})
	if len(errs) != 1 {
		t.Fatalf("expected 1 missing field, got %d", len(errs))
	}
	if !dagerrors.IsType(errs[0], dagerrors.RequiredFieldEmpty) {
		t.Errorf("expected RequiredFieldEmpty, got %v", errs[0])
	}
}

func TestWillAutoAdvance(t *testing.T) {
	r := Rule{Name: "CMPNO", MaxLength: 3}
	if !WillAutoAdvance(r, "689") {
		t.Error("expected value at max length to auto-advance")
	}
	if WillAutoAdvance(r, "68") {
		t.Error("expected value below max length not to auto-advance")
	}
}

func TestEmptyTabsFallsBackToTabsNeeded(t *testing.T) {
	r := Rule{Name: "X", MaxLength: 1, TabsNeeded: 2}
	if r.EmptyTabs() != 2 {
		t.Errorf("expected fallback to 2, got %d", r.EmptyTabs())
	}
	r.TabsNeededEmpty = intPtr(0)
	if r.EmptyTabs() != 0 {
		t.Errorf("expected explicit 0, got %d", r.EmptyTabs())
	}
}
