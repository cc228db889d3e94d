package terminal

import (
	"os"
	"testing"
	"time"
)

func TestTerminal_Color(t *testing.T) {
	tests := []struct {
		name    string
		noColor bool
		code    string
		text    string
		want    string
	}{
		{
			name:    "color enabled",
			noColor: false,
			code:    Green,
			text:    "success",
			want:    Green + "success" + Reset,
		},
		{
			name:    "color disabled",
			noColor: true,
			code:    Green,
			text:    "success",
			want:    "success",
		},
		{
			name:    "bold color",
			noColor: false,
			code:    Bold,
			text:    "header",
			want:    Bold + "header" + Reset,
		},
		{
			name:    "empty text",
			noColor: false,
			code:    Cyan,
			text:    "",
			want:    Cyan + Reset,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terminal := &Terminal{noColor: tt.noColor}
			got := terminal.Color(tt.code, tt.text)
			if got != tt.want {
				t.Errorf("Color() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTerminal_New(t *testing.T) {
	os.Unsetenv("NO_COLOR")
	term := New()
	if term.noColor {
		t.Error("New() should create terminal with color enabled when NO_COLOR is not set")
	}

	os.Setenv("NO_COLOR", "1")
	defer os.Unsetenv("NO_COLOR")
	term = New()
	if !term.noColor {
		t.Error("New() should create terminal with color disabled when NO_COLOR is set")
	}
}

func TestModeFromEnv(t *testing.T) {
	defer os.Unsetenv("GITUP_MODE")

	os.Setenv("GITUP_MODE", "hardcore")
	if ModeFromEnv() != ModeHardcore {
		t.Error("expected hardcore mode")
	}

	os.Setenv("GITUP_MODE", "newbie")
	if ModeFromEnv() != ModeNewbie {
		t.Error("expected newbie mode")
	}

	os.Setenv("GITUP_MODE", "bogus")
	if ModeFromEnv() != ModeStandard {
		t.Error("unrecognized mode should default to standard")
	}

	os.Unsetenv("GITUP_MODE")
	if ModeFromEnv() != ModeStandard {
		t.Error("unset mode should default to standard")
	}
}

func TestTerminal_SeverityColor(t *testing.T) {
	term := &Terminal{}

	tests := map[string]string{
		"critical": BoldRed,
		"high":     Red,
		"medium":   Yellow,
		"low":      Cyan,
		"unknown":  Dim,
	}

	for severity, want := range tests {
		if got := term.SeverityColor(severity); got != want {
			t.Errorf("SeverityColor(%q) = %q, want %q", severity, got, want)
		}
	}
}

func TestDecisionRow(t *testing.T) {
	now := time.Unix(1700000000, 0)
	row := DecisionRow{
		Pattern: "*.env",
		Action:  "ignore_permanently",
		Reason:  "local dev only",
		Decided: now,
	}

	if row.Pattern != "*.env" {
		t.Errorf("Pattern = %q, want *.env", row.Pattern)
	}
	if row.ExpiresAt != nil {
		t.Error("ExpiresAt should be nil for a permanent decision")
	}
}

func TestIconConstants(t *testing.T) {
	if IconSuccess == "" {
		t.Error("IconSuccess should not be empty")
	}
	if IconFailed == "" {
		t.Error("IconFailed should not be empty")
	}
	if IconRunning == "" {
		t.Error("IconRunning should not be empty")
	}
	if IconQueued == "" {
		t.Error("IconQueued should not be empty")
	}
	if IconSkipped == "" {
		t.Error("IconSkipped should not be empty")
	}
	if IconWarning == "" {
		t.Error("IconWarning should not be empty")
	}
	if IconArrow == "" {
		t.Error("IconArrow should not be empty")
	}
}

func TestColorConstants(t *testing.T) {
	colorCodes := []struct {
		name  string
		value string
	}{
		{"Reset", Reset},
		{"Bold", Bold},
		{"Dim", Dim},
		{"Red", Red},
		{"Green", Green},
		{"Yellow", Yellow},
		{"Blue", Blue},
		{"Cyan", Cyan},
		{"White", White},
		{"BoldRed", BoldRed},
		{"BoldGreen", BoldGreen},
	}

	for _, cc := range colorCodes {
		if cc.value == "" {
			t.Errorf("%s should not be empty", cc.name)
		}
		if cc.value[0] != '\033' {
			t.Errorf("%s should start with ESC character", cc.name)
		}
	}
}

func TestTerminal_formatBytes(t *testing.T) {
	term := &Terminal{}

	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0B"},
		{100, "100B"},
		{1023, "1023B"},
		{1024, "1.0KB"},
		{1536, "1.5KB"},
		{10240, "10.0KB"},
		{1048576, "1.0MB"},
		{1572864, "1.5MB"},
		{10485760, "10.0MB"},
		{1073741824, "1.0GB"},
	}

	for _, tt := range tests {
		got := term.formatBytes(tt.bytes)
		if got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestTerminal_Confirm(t *testing.T) {
	// Confirm is interactive; verify it exists with the right receiver type.
	term := &Terminal{}
	_ = term.Confirm
}
