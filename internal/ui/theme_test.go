package ui

import "testing"

func TestThemeNames(t *testing.T) {
	names := ThemeNames()
	if len(names) != 3 {
		t.Fatalf("ThemeNames() returned %d names, want 3", len(names))
	}
	if names[0] != "Nightfox" || names[1] != "Kanagawa" || names[2] != "Slate" {
		t.Fatalf("ThemeNames() = %v, want [Nightfox Kanagawa Slate]", names)
	}

	names[0] = "mutated"
	if ThemeNames()[0] != "Nightfox" {
		t.Fatalf("ThemeNames() exposes internal order slice")
	}
}

func TestNextTheme(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Nightfox", "Kanagawa"},
		{"Kanagawa", "Slate"},
		{"Slate", "Nightfox"},
		{"Unknown", "Nightfox"},
	}
	for _, tt := range tests {
		if got := NextTheme(tt.in); got != tt.want {
			t.Fatalf("NextTheme(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGetTheme(t *testing.T) {
	for _, name := range ThemeNames() {
		if got := GetTheme(name).Name; got != name {
			t.Fatalf("GetTheme(%s).Name = %q, want %s", name, got, name)
		}
	}
	if got := GetTheme("Unknown").Name; got != "Nightfox" {
		t.Fatalf("GetTheme(Unknown).Name = %q, want Nightfox (fallback)", got)
	}
}

func TestThemesCoverStatuses(t *testing.T) {
	statuses := []string{"live", "replay", "idle", "running", "completed", "stopped", "offline"}
	for _, name := range ThemeNames() {
		th := GetTheme(name)
		for _, status := range statuses {
			if th.StatusColors[status] == "" {
				t.Fatalf("theme %s has no color for status %q", name, status)
			}
		}
	}
}

func TestStatusStyle_UnknownFallsBackToMuted(t *testing.T) {
	styles := GetTheme("Slate").Styles()
	got := styles.StatusStyle("bogus").GetBackground()
	want := styles.StatusStyle("").GetBackground()
	if got != want {
		t.Fatalf("StatusStyle(bogus) background = %v, want %v", got, want)
	}
}
