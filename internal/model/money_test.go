package model

import (
	"encoding/json"
	"testing"
)

func TestParseCents(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int64
	}{
		{"whole number", "99.00", 9900},
		{"with cents", "123.45", 12345},
		{"zero", "0.00", 0},
		{"empty string", "", 0},
		{"no decimals", "100", 10000},
		{"one decimal", "99.9", 9990},
		{"small value", "0.01", 1},
		{"invalid string", "abc", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCents(tt.input); got != tt.want {
				t.Errorf("ParseCents(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestMoneyUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Money
	}{
		{"integer number", `10`, 1000},
		{"decimal number", `19.99`, 1999},
		{"float noise", `0.1`, 10},
		{"decimal string", `"21.60"`, 2160},
		{"null", `null`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Money
			if err := json.Unmarshal([]byte(tt.input), &m); err != nil {
				t.Fatalf("Unmarshal(%s): %v", tt.input, err)
			}
			if m != tt.want {
				t.Errorf("Unmarshal(%s) = %d, want %d", tt.input, m, tt.want)
			}
		})
	}
}

func TestMoneyMarshalJSON(t *testing.T) {
	out, err := json.Marshal(struct {
		Total Money `json:"total"`
	}{Total: 2160})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `{"total":21.60}` {
		t.Errorf("Marshal = %s, want {\"total\":21.60}", out)
	}
}

func TestTaxOn(t *testing.T) {
	tests := []struct {
		subtotal Money
		bp       int
		want     Money
	}{
		{2000, DefaultTaxBasisPoints, 160},
		{0, DefaultTaxBasisPoints, 0},
		{1999, DefaultTaxBasisPoints, 160}, // 159.92 rounds up
		{1006, DefaultTaxBasisPoints, 80},  // 80.48 rounds down
	}
	for _, tt := range tests {
		if got := TaxOn(tt.subtotal, tt.bp); got != tt.want {
			t.Errorf("TaxOn(%d, %d) = %d, want %d", tt.subtotal, tt.bp, got, tt.want)
		}
	}
}

func TestMoneyString(t *testing.T) {
	if got := Money(2160).String(); got != "21.60" {
		t.Errorf("String() = %q, want 21.60", got)
	}
	if got := Money(-5).String(); got != "-0.05" {
		t.Errorf("String() = %q, want -0.05", got)
	}
}
