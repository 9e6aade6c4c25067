package util

import "testing"

func TestParsePrice(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  float64
	}{
		{name: "plain", input: "12.5", want: 12.5},
		{name: "euro symbol", input: "€ 29.99", want: 29.99},
		{name: "pound suffix", input: "45£", want: 45},
		{name: "thousands comma", input: "1,250.00", want: 1250},
		{name: "decimal comma", input: "12,50", want: 12.5},
		{name: "many dots keeps last", input: "1.234.56", want: 1234.56},
		{name: "nbsp thousands", input: "2\u00a0500", want: 2500},
		{name: "trailing text", input: "19.90 TTC", want: 19.9},
		{name: "zero", input: "0", want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParsePrice(tc.input)
			if got == nil {
				t.Fatalf("price is nil")
			}
			if *got != tc.want {
				t.Fatalf("got %v want %v", *got, tc.want)
			}
		})
	}
}

func TestParsePriceRejects(t *testing.T) {
	for _, input := range []string{"", "abc", "-5", "10000", "25000.00", "€"} {
		if got := ParsePrice(input); got != nil {
			t.Fatalf("input %q: got %v want nil", input, *got)
		}
	}
}

func TestExpandScientific(t *testing.T) {
	if got := ExpandScientific("3.605168123456E12"); got != "3605168123456" {
		t.Fatalf("got %q", got)
	}
	if got := ExpandScientific("3605168123456"); got != "3605168123456" {
		t.Fatalf("got %q", got)
	}
}

func TestFoldHeader(t *testing.T) {
	if got := FoldHeader("  Libellé   Article "); got != "libelle article" {
		t.Fatalf("got %q", got)
	}
	if got := FoldHeader("DERNIÈRE_SAIS_COMM"); got != "derniere_sais_comm" {
		t.Fatalf("got %q", got)
	}
}

func TestSanitize(t *testing.T) {
	if got := Sanitize(" <b>36051681\x0023456</b> "); got != "b3605168123456/b" {
		t.Fatalf("got %q", got)
	}
}
