// Package terminal provides colored output and interactive prompts for the
// gitup CLI's review and status surfaces.
package terminal

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// ANSI color codes
const (
	Reset     = "\033[0m"
	Bold      = "\033[1m"
	Dim       = "\033[2m"
	Red       = "\033[0;31m"
	Green     = "\033[0;32m"
	Yellow    = "\033[1;33m"
	Blue      = "\033[0;34m"
	Cyan      = "\033[0;36m"
	White     = "\033[0;37m"
	BoldRed   = "\033[1;31m"
	BoldGreen = "\033[1;32m"
)

// Icons for status display
const (
	IconSuccess = "✓"
	IconFailed  = "✗"
	IconRunning = "◐"
	IconQueued  = "○"
	IconSkipped = "⊘"
	IconWarning = "⚠"
	IconArrow   = "▸"
)

// Mode controls how much guidance the terminal renders alongside a risk.
// It mirrors the three GITUP_MODE verbosity tiers: newcomers get full
// explanations, hardcore users get bare facts.
type Mode string

const (
	ModeNewbie   Mode = "newbie"
	ModeStandard Mode = "standard"
	ModeHardcore Mode = "hardcore"
)

// ModeFromEnv resolves the verbosity mode from GITUP_MODE, defaulting to
// standard when unset or unrecognized.
func ModeFromEnv() Mode {
	switch strings.ToLower(os.Getenv("GITUP_MODE")) {
	case "newbie":
		return ModeNewbie
	case "hardcore":
		return ModeHardcore
	default:
		return ModeStandard
	}
}

// Terminal provides thread-safe terminal output.
type Terminal struct {
	mu      sync.Mutex
	noColor bool
	width   int
	mode    Mode
}

// New creates a new Terminal instance.
func New() *Terminal {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}

	return &Terminal{
		noColor: os.Getenv("NO_COLOR") != "",
		width:   width,
		mode:    ModeFromEnv(),
	}
}

// Mode returns the terminal's current verbosity mode.
func (t *Terminal) Mode() Mode {
	return t.mode
}

// SetMode overrides the verbosity mode, e.g. from a --mode flag.
func (t *Terminal) SetMode(m Mode) {
	t.mode = m
}

// Color wraps text in color codes if colors are enabled.
func (t *Terminal) Color(code, text string) string {
	if t.noColor {
		return text
	}
	return code + text + Reset
}

// SeverityColor maps a risk severity string to its display color.
func (t *Terminal) SeverityColor(severity string) string {
	switch strings.ToLower(severity) {
	case "critical":
		return BoldRed
	case "high":
		return Red
	case "medium":
		return Yellow
	case "low":
		return Cyan
	default:
		return Dim
	}
}

// Success prints a success message.
func (t *Terminal) Success(format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	fmt.Printf("  %s %s\n", t.Color(Green, IconSuccess), msg)
}

// Error prints an error message.
func (t *Terminal) Error(format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	fmt.Printf("  %s %s\n", t.Color(Red, IconFailed), msg)
}

// Warning prints a warning message.
func (t *Terminal) Warning(format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	fmt.Printf("%s  %s\n", t.Color(Yellow, IconWarning), t.Color(Bold, msg))
}

// Warn is an alias for Warning.
func (t *Terminal) Warn(format string, args ...interface{}) {
	t.Warning(format, args...)
}

// Info prints an info message.
func (t *Terminal) Info(format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Printf(format+"\n", args...)
}

// Header prints a section header.
func (t *Terminal) Header(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Printf("\n%s\n\n", t.Color(Bold, text))
}

// SubHeader prints a sub-section header.
func (t *Terminal) SubHeader(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Printf("%s\n", t.Color(Bold, text))
}

// Divider prints a horizontal line.
func (t *Terminal) Divider() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Println(strings.Repeat("━", min(t.width, 78)))
}

// Box prints text in a decorative box.
func (t *Terminal) Box(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	width := len(text) + 4
	if width > t.width {
		width = t.width
	}
	border := strings.Repeat("─", width-2)
	fmt.Printf("  ╭%s╮\n", border)
	fmt.Printf("  │ %s │\n", text)
	fmt.Printf("  ╰%s╯\n", border)
}

// RiskRow is a single line item of a scan or review listing.
type RiskRow struct {
	Path        string
	RiskType    string
	Severity    string
	Blocking    bool
	Description string
}

// RiskLine prints one risk in a scan result or review prompt.
func (t *Terminal) RiskLine(row RiskRow) {
	t.mu.Lock()
	defer t.mu.Unlock()

	icon := IconWarning
	if row.Blocking {
		icon = IconFailed
	}
	color := t.SeverityColor(row.Severity)

	fmt.Printf("  %s %-8s %s\n", t.Color(color, icon), t.Color(color, strings.ToUpper(row.Severity)), row.Path)
	fmt.Printf("      %s\n", t.Color(Dim, row.RiskType))
	if t.mode != ModeHardcore && row.Description != "" {
		fmt.Printf("      %s\n", t.Color(Dim, row.Description))
	}
}

// ScanSummary prints the outcome of a risk-detector pass.
func (t *Terminal) ScanSummary(total, blocking int, bySeverity map[string]int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if total == 0 {
		fmt.Printf("\n%s %s\n", t.Color(Green, IconSuccess), t.Color(Bold, "No security risks found"))
		return
	}

	fmt.Printf("\n%s\n", t.Color(Bold, fmt.Sprintf("%d risk(s) found", total)))
	for _, sev := range []string{"critical", "high", "medium", "low"} {
		if c, ok := bySeverity[sev]; ok && c > 0 {
			fmt.Printf("  %s %d %s\n", t.Color(t.SeverityColor(sev), IconWarning), c, sev)
		}
	}
	if blocking > 0 {
		fmt.Printf("  %s %s\n", t.Color(BoldRed, IconFailed), t.Color(BoldRed, fmt.Sprintf("%d blocking violation(s)", blocking)))
	}
}

// ComplianceSummary prints the result of a compliance evaluation.
func (t *Terminal) ComplianceSummary(compliant bool, score int, state, riskTier string, openRisks int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if compliant {
		fmt.Printf("\n%s %s\n\n", t.Color(BoldGreen, IconSuccess), t.Color(Bold, "Compliant"))
	} else {
		fmt.Printf("\n%s %s\n\n", t.Color(BoldRed, IconFailed), t.Color(Bold, "Not compliant"))
	}
	fmt.Printf("  Score:        %d/100\n", score)
	fmt.Printf("  State:        %s\n", t.Color(Cyan, state))
	fmt.Printf("  Risk tier:    %s\n", t.Color(t.SeverityColor(riskTier), riskTier))
	if openRisks > 0 {
		fmt.Printf("  Open risks:   %s\n", t.Color(Yellow, fmt.Sprintf("%d", openRisks)))
	} else {
		fmt.Printf("  Open risks:   %s\n", t.Color(Green, "0"))
	}
}

// EnforcementBlocked prints a blocked-commit message with its violations.
func (t *Terminal) EnforcementBlocked(violations []RiskRow) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Printf("\n%s %s\n\n", t.Color(BoldRed, IconFailed), t.Color(BoldRed, "Commit blocked by security enforcement"))
	for _, v := range violations {
		fmt.Printf("  %s %-8s %s\n", t.Color(t.SeverityColor(v.Severity), IconFailed), strings.ToUpper(v.Severity), v.Path)
	}
	fmt.Printf("\n  Run %s to review and resolve.\n", t.Color(Cyan, "gitup security review"))
}

// DecisionRow is a single ledger entry for table display.
type DecisionRow struct {
	Pattern   string
	Action    string
	Reason    string
	Decided   time.Time
	ExpiresAt *time.Time
}

// DecisionTable prints the ledger's active decisions.
func (t *Terminal) DecisionTable(rows []DecisionRow) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(rows) == 0 {
		fmt.Printf("  %s\n", t.Color(Dim, "no recorded decisions"))
		return
	}

	fmt.Printf("  %-30s %-10s %-12s %s\n",
		t.Color(Dim, "Pattern"), t.Color(Dim, "Action"), t.Color(Dim, "Decided"), t.Color(Dim, "Expires"))
	fmt.Printf("  %s\n", strings.Repeat("─", 78))

	for _, row := range rows {
		pattern := row.Pattern
		if len(pattern) > 30 {
			pattern = pattern[:27] + "..."
		}
		expires := "never"
		if row.ExpiresAt != nil {
			expires = row.ExpiresAt.Format("2006-01-02")
		}
		fmt.Printf("  %-30s %-10s %-12s %s\n", pattern, t.actionColor(row.Action), row.Decided.Format("2006-01-02"), expires)
	}
}

func (t *Terminal) actionColor(action string) string {
	switch strings.ToLower(action) {
	case "ignore_permanently", "accept_risk":
		return t.Color(Green, action)
	case "remove_file", "fix_immediately":
		return t.Color(Red, action)
	default:
		return t.Color(Yellow, action)
	}
}

// formatBytes formats a byte size in human-readable form.
func (t *Terminal) formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1fGB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1fMB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1fKB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}

// Confirm asks a yes/no question and returns the answer.
func (t *Terminal) Confirm(prompt string, defaultYes bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	suffix := "[y/N]"
	if defaultYes {
		suffix = "[Y/n]"
	}

	fmt.Printf("%s %s: ", prompt, suffix)

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return defaultYes
	}

	input = strings.TrimSpace(strings.ToLower(input))

	if input == "" {
		return defaultYes
	}

	return input == "y" || input == "yes"
}

// PromptChoice asks the user to select from a numbered list of options,
// used by the review orchestrator to collect a decision for a risk.
func (t *Terminal) PromptChoice(prompt string, options []string, defaultOption int) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Printf("\n%s\n", prompt)
	for i, opt := range options {
		marker := " "
		if i == defaultOption {
			marker = t.Color(Cyan, ">")
		}
		fmt.Printf("  %s %d) %s\n", marker, i+1, opt)
	}
	fmt.Printf("Choice [%d]: ", defaultOption+1)

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return defaultOption
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return defaultOption
	}

	var choice int
	if _, err := fmt.Sscanf(input, "%d", &choice); err != nil {
		return defaultOption
	}

	if choice < 1 || choice > len(options) {
		return defaultOption
	}

	return choice - 1
}

// Prompt reads a free-form line of input, used for reason strings and
// custom glob patterns during review.
func (t *Terminal) Prompt(label string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Printf("%s: ", label)
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(input)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
