package utils

import "testing"

func TestNormalizeBaseURL(t *testing.T) {
	cases := map[string]string{
		"https://Discord.com/api/v10/":    "https://discord.com/api/v10",
		"discord.com/api":                 "https://discord.com/api",
		"http://127.0.0.1:8080/api?x=1#f": "http://127.0.0.1:8080/api",
		"https://bücher.example/api":      "https://xn--bcher-kva.example/api",
	}
	for input, want := range cases {
		got, err := NormalizeBaseURL(input)
		if err != nil {
			t.Fatalf("normalize %q: %v", input, err)
		}
		if got != want {
			t.Fatalf("normalize %q: expected %q, got %q", input, want, got)
		}
	}
}

func TestNormalizeBaseURLRejectsEmpty(t *testing.T) {
	if _, err := NormalizeBaseURL("   "); err == nil {
		t.Fatalf("expected error for empty url")
	}
}
