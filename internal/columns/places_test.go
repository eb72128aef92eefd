package columns

import "testing"

func TestIsState(t *testing.T) {
	cases := []struct {
		input   string
		expects bool
	}{
		{"SP", true},
		{"rj", true},
		{" df ", true},
		{"XX", false},
		{"São Paulo", false},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			if got := IsState(tc.input); got != tc.expects {
				t.Fatalf("IsState(%q) = %v; want %v", tc.input, got, tc.expects)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		input    string
		expected Class
	}{
		{"", ClassEmpty},
		{"N/A", ClassEmpty},
		{"-23,5", ClassNumber},
		{"BR-116", ClassHighway},
		{"SP 330", ClassHighway},
		{"Av. Paulista", ClassHighway},
		{"Rodovia dos Bandeirantes", ClassHighway},
		{"Norte", ClassNonPlace},
		{"Centro-Bairro", ClassNonPlace},
		{"Radar Fixo", ClassNonPlace},
		{"DNIT", ClassNonPlace},
		{"Campinas", ClassPlace},
		{"São José dos Campos", ClassPlace},
		{"Ribeirão Preto - SP", ClassPlace},
		{"#12", ClassUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			if got := Classify(tc.input); got != tc.expected {
				t.Fatalf("Classify(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestSplitState(t *testing.T) {
	cases := []struct {
		input, name, state string
	}{
		{"Campinas - SP", "Campinas", "SP"},
		{"Campinas/sp", "Campinas", "SP"},
		{"Niterói (RJ)", "Niterói", "RJ"},
		{"Belo Horizonte", "Belo Horizonte", ""},
		{"Vila XX - ZZ", "Vila XX - ZZ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			name, state := SplitState(tc.input)
			if name != tc.name || state != tc.state {
				t.Fatalf("SplitState(%q) = (%q, %q); want (%q, %q)", tc.input, name, state, tc.name, tc.state)
			}
		})
	}
}
