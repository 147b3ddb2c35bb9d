package format

import "testing"

func TestResolveColorPolicy(t *testing.T) {
	cases := []struct {
		name     string
		mode     ColorMode
		jsonOut  bool
		isTTY    bool
		noColor  bool
		termDumb bool
		want     bool
	}{
		{
			name:    "json-disables",
			mode:    ColorAlways,
			jsonOut: true,
			isTTY:   true,
			want:    false,
		},
		{
			name:    "no-color-disables",
			mode:    ColorAlways,
			noColor: true,
			isTTY:   true,
			want:    false,
		},
		{
			name:  "auto-requires-tty",
			mode:  ColorAuto,
			isTTY: false,
			want:  false,
		},
		{
			name:     "auto-disables-on-dumb",
			mode:     ColorAuto,
			isTTY:    true,
			termDumb: true,
			want:     false,
		},
		{
			name:  "auto-enables-on-tty",
			mode:  ColorAuto,
			isTTY: true,
			want:  true,
		},
		{
			name: "always-ignores-tty",
			mode: ColorAlways,
			want: true,
		},
		{
			name:  "never-wins",
			mode:  ColorNever,
			isTTY: true,
			want:  false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveColorPolicy(tc.mode, tc.jsonOut, tc.isTTY, tc.noColor, tc.termDumb)
			if got.Enabled != tc.want {
				t.Fatalf("ResolveColorPolicy() = %v, want %v", got.Enabled, tc.want)
			}
		})
	}
}

func TestParseColorMode(t *testing.T) {
	for raw, want := range map[string]ColorMode{"": ColorAuto, "ALWAYS": ColorAlways, "never": ColorNever} {
		got, err := ParseColorMode(raw)
		if err != nil {
			t.Fatalf("ParseColorMode(%q) error: %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseColorMode(%q) = %q, want %q", raw, got, want)
		}
	}
	if _, err := ParseColorMode("rainbow"); err == nil {
		t.Fatalf("expected error for invalid mode")
	}
}
