package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "12.34", want: 1234},
		{in: "12,34", want: 1234},
		{in: "12", want: 1200},
		{in: "0.05", want: 5},
		{in: "12.345", want: 1234}, // third decimal rounds half-up
		{in: "12.346", want: 1235},
		{in: "", wantErr: true},
		{in: "-5", wantErr: true},
		{in: "+5", wantErr: true},
		{in: "0", wantErr: true},
		{in: "1.2.3", wantErr: true},
		{in: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDecimalToCents(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDecimalToCents(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseDecimalToCents(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestMoney_String(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{cents: 123456, want: "R 1234.56"},
		{cents: 5, want: "R 0.05"},
		{cents: -7550, want: "-R 75.50"},
		{cents: 0, want: "R 0.00"},
	}

	for _, tt := range tests {
		if got := (Money{Cents: tt.cents}).String(); got != tt.want {
			t.Errorf("Money{%d}.String() = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestMoney_Arithmetic(t *testing.T) {
	a := Money{Cents: 40000}
	b := Money{Cents: 35000}

	if got := a.Add(b); got.Cents != 75000 {
		t.Errorf("Add = %d, want 75000", got.Cents)
	}
	if got := b.Sub(a); got.Cents != -5000 {
		t.Errorf("Sub = %d, want -5000 (over budget is a signal, not an error)", got.Cents)
	}
}
