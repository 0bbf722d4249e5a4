package commands

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"plain", "ctf addctf democtf", []string{"ctf", "addctf", "democtf"}},
		{"quoted argument", `ctf addctf democtf "Demo CTF"`, []string{"ctf", "addctf", "democtf", "Demo CTF"}},
		{"quote mid word", `tag crypto"rsa oaep"`, []string{"tag", "cryptorsa oaep"}},
		{"empty quotes", `set_config key ""`, []string{"set_config", "key", ""}},
		{"collapsed whitespace", "  ping \t now ", []string{"ping", "now"}},
		{"empty line", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tokenize(tt.in)
			if err != nil {
				t.Fatalf("tokenize(%q): %v", tt.in, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("tokenize(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTokenizeUnterminatedQuote(t *testing.T) {
	if _, err := tokenize(`addctf "unterminated`); err == nil {
		t.Fatal("expected error for unterminated quote")
	}
}
