package acquire

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Bohemian Rhapsody", "bohemian rhapsody"},
		{"  A.B.C -- D!  ", "a b c d"},
		{"Çiçek (Official Video)", "çiçek official video"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTokenSortRatio(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		min  int
		max  int
	}{
		{"identical", "night drive", "night drive", 100, 100},
		{"order ignored", "drive night", "night drive", 100, 100},
		{"punctuation ignored", "Night Drive!", "night drive", 100, 100},
		{"one extra word", "night drive", "night drive extended", 50, 90},
		{"unrelated", "night drive", "morning walk", 0, 45},
		{"both empty", "", "", 100, 100},
		{"one empty", "night drive", "", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TokenSortRatio(tt.a, tt.b)
			if got < tt.min || got > tt.max {
				t.Errorf("TokenSortRatio(%q, %q) = %d, want within [%d,%d]",
					tt.a, tt.b, got, tt.min, tt.max)
			}
		})
	}
}

func TestJaccardWords(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{"identical", "blue in green", "blue in green", 100},
		{"half overlap", "blue green", "blue red", 33},
		{"disjoint", "blue green", "red yellow", 0},
		{"empty side", "", "blue", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JaccardWords(tt.a, tt.b); got != tt.want {
				t.Errorf("JaccardWords(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDerivative(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		requested string
		want      bool
	}{
		{"clean match", "Night Drive", "Night Drive", false},
		{"unwanted remix", "Night Drive (Remix)", "Night Drive", true},
		{"requested remix", "Night Drive (Remix)", "Night Drive remix", false},
		{"unwanted live", "Night Drive - Live at Montreux", "Night Drive", true},
		{"multi word term", "Night Drive [Bass Boosted]", "Night Drive", true},
		{"term inside word ignored", "Alive", "A Song", false},
		{"cover unwanted", "Night Drive (Piano Cover)", "Night Drive", true},
		{"slowed reverb", "night drive slowed + reverb", "Night Drive", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Derivative(tt.candidate, tt.requested); got != tt.want {
				t.Errorf("Derivative(%q, %q) = %v, want %v",
					tt.candidate, tt.requested, got, tt.want)
			}
		})
	}
}
