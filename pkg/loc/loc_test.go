package loc

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/language"
)

func TestGetStringBuiltin(t *testing.T) {
	c := New(language.AmericanEnglish)
	if got := c.GetString("admin-verb-make-zombie"); got != "Zombifies someone immediately." {
		t.Errorf("GetString = %q", got)
	}
}

func TestGetStringArgs(t *testing.T) {
	c := New(language.AmericanEnglish)
	got := c.GetString("admin-verb-executed", "target", "Bob", "user", "Alice", "verb", "Make Traitor")
	want := "Alice executed the verb Make Traitor on Bob"
	if got != want {
		t.Errorf("GetString = %q, want %q", got, want)
	}
}

func TestGetStringMissingArg(t *testing.T) {
	c := New(language.AmericanEnglish)
	if got := c.GetString("sandbox-status"); got != "Sandbox mode is ." {
		t.Errorf("GetString = %q", got)
	}
}

func TestGetStringUnknownKey(t *testing.T) {
	c := New(language.AmericanEnglish)
	if got := c.GetString("no-such-key"); got != "no-such-key" {
		t.Errorf("unknown key should echo, got %q", got)
	}
	if c.Has("no-such-key") {
		t.Error("Has should be false for unknown key")
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yml")
	body := "sandbox-enabled: \"Sandbox on, { $who }!\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	c := New(language.AmericanEnglish)
	if err := c.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got := c.GetString("sandbox-enabled", "who", "crew"); got != "Sandbox on, crew!" {
		t.Errorf("GetString = %q", got)
	}
	if err := c.LoadFile(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCompile(t *testing.T) {
	format, args := compile("{ $a } and {$b} and { $a }")
	if format != "%[1]v and %[2]v and %[1]v" {
		t.Errorf("format = %q", format)
	}
	if len(args) != 2 || args[0] != "a" || args[1] != "b" {
		t.Errorf("args = %v", args)
	}
}

func TestGetStringLiteralPercent(t *testing.T) {
	c := New(language.AmericanEnglish)
	data := []byte("access-full: \"Access upgraded to 100% for { $user }\"\nprogress: \"50% done\"\n")
	if err := c.load(data); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		key  string
		args []any
		want string
	}{
		{"access-full", []any{"user", "Alice"}, "Access upgraded to 100% for Alice"},
		{"progress", nil, "50% done"},
	}
	for _, tt := range tests {
		if got := c.GetString(tt.key, tt.args...); got != tt.want {
			t.Errorf("GetString(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
