package validation

import (
	"errors"
	"testing"
)

type coinRequest struct {
	Coin string `validate:"required,coin_token"`
}

type stockRequest struct {
	Level *int `validate:"required,gte=0,lte=1000"`
}

func intPtr(v int) *int { return &v }

func TestStruct(t *testing.T) {
	tests := []struct {
		name  string
		input any
		valid bool
	}{
		{name: "quarter", input: coinRequest{Coin: "quarter"}, valid: true},
		{name: "penny is well formed", input: coinRequest{Coin: "penny"}, valid: true},
		{name: "empty coin", input: coinRequest{Coin: ""}, valid: false},
		{name: "coin with spaces", input: coinRequest{Coin: "two bits"}, valid: false},
		{name: "uppercase coin", input: coinRequest{Coin: "QUARTER"}, valid: false},
		{name: "zero stock", input: stockRequest{Level: intPtr(0)}, valid: true},
		{name: "negative stock", input: stockRequest{Level: intPtr(-1)}, valid: false},
		{name: "missing stock", input: stockRequest{}, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.input)
			if tt.valid && err != nil {
				t.Fatalf("Struct(%+v) error: %v", tt.input, err)
			}
			if !tt.valid && !errors.Is(err, ErrValidationFailed) {
				t.Fatalf("Struct(%+v) = %v, want ErrValidationFailed", tt.input, err)
			}
		})
	}
}

func TestProductID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{id: "cola", valid: true},
		{id: "candy-bar_2", valid: true},
		{id: "", valid: false},
		{id: "Cola", valid: false},
		{id: "1cola", valid: false},
		{id: "co la", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ProductID(tt.id)
			if tt.valid && err != nil {
				t.Fatalf("ProductID(%q) = %v, want nil", tt.id, err)
			}
			if !tt.valid && !errors.Is(err, ErrValidationFailed) {
				t.Fatalf("ProductID(%q) = %v, want ErrValidationFailed", tt.id, err)
			}
		})
	}
}

func TestNormalizeToken(t *testing.T) {
	if got := NormalizeToken("  Quarter \n"); got != "quarter" {
		t.Fatalf("NormalizeToken = %q, want quarter", got)
	}
}
