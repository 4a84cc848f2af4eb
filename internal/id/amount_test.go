package id

import "testing"

func TestParseAmountDecimal(t *testing.T) {
	amt, err := ParseAmount("1.25", 6)
	if err != nil {
		t.Fatalf("ParseAmount failed: %v", err)
	}
	if amt.BaseUnits != "1250000" || amt.Decimal != "1.25" {
		t.Fatalf("unexpected result: %+v", amt)
	}

	amt, err = ParseAmount("0.5", 18)
	if err != nil {
		t.Fatalf("ParseAmount failed: %v", err)
	}
	if amt.BaseUnits != "500000000000000000" {
		t.Fatalf("unexpected base units: %s", amt.BaseUnits)
	}

	amt, err = ParseAmount("010.500", 6)
	if err != nil {
		t.Fatalf("ParseAmount failed: %v", err)
	}
	if amt.Decimal != "10.5" {
		t.Fatalf("expected normalized decimal 10.5, got %s", amt.Decimal)
	}
}

func TestParseAmountRejectsNonPositive(t *testing.T) {
	for _, input := range []string{"0", "0.0", "-1", "-0.5", "", "abc", "1e5"} {
		if _, err := ParseAmount(input, 6); err == nil {
			t.Fatalf("expected %q to be rejected", input)
		}
	}
}

func TestParseAmountMinimumUnit(t *testing.T) {
	amt, err := ParseAmount("0.000001", 6)
	if err != nil {
		t.Fatalf("expected minimum unit to be accepted: %v", err)
	}
	if amt.BaseUnits != "1" {
		t.Fatalf("expected one base unit, got %s", amt.BaseUnits)
	}
	if _, err := ParseAmount("0.0000001", 6); err == nil {
		t.Fatal("expected precision error below minimum unit")
	}
}

func TestFormatBaseUnits(t *testing.T) {
	if got := FormatBaseUnits("0", 6); got != "0" {
		t.Fatalf("unexpected zero format: %s", got)
	}
	if got := FormatBaseUnits("1250000", 6); got != "1.25" {
		t.Fatalf("unexpected format: %s", got)
	}
	if got := FormatBaseUnits("1", 6); got != "0.000001" {
		t.Fatalf("unexpected min unit format: %s", got)
	}
}
