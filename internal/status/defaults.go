package status

// defaultPatterns is the baked-in pattern set. Priorities are spaced by
// class so custom patterns can be slotted between classes without a
// renumbering pass: error phrases and interactive prompts (highly specific)
// outrank generic shell-prompt endings (highly general).
func defaultPatterns() []Pattern {
	return []Pattern{
		// Claude Code / agentic CLI markers.
		{ID: "claude-thinking", Name: "claude-code thinking", Regex: `(?i)(Thinking…|Thinking\.\.\.)\s*$`, Status: Working, Priority: 700, Enabled: true},
		{ID: "claude-awaiting", Name: "claude-code awaiting response", Regex: `(?i)Awaiting response`, Status: Waiting, Priority: 700, Enabled: true},
		{ID: "claude-spinner", Name: "claude-code spinner", Regex: `[⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏]\s`, Status: Working, Priority: 650, Enabled: true},
		{ID: "claude-question", Name: "claude-code question prompt", Regex: `\?\s*$`, Status: Waiting, Priority: 400, Enabled: true},
		{ID: "claude-success", Name: "claude-code success", Regex: `(?i)^(Done|Completed)\b.*$`, Status: Idle, Priority: 600, Enabled: true},

		// SSH / interactive auth prompts.
		{ID: "ssh-password", Name: "ssh password prompt", Shell: ShellSSH, Regex: `(?i)(password|passphrase)\s*:\s*$`, Status: Waiting, Priority: 900, Enabled: true},
		{ID: "ssh-hostkey", Name: "ssh host key confirmation", Shell: ShellSSH, Regex: `(?i)yes/no.*\[fingerprint\]|are you sure you want to continue connecting`, Status: Waiting, Priority: 900, Enabled: true},
		{ID: "ssh-mfa", Name: "ssh mfa code prompt", Shell: ShellSSH, Regex: `(?i)(verification code|mfa code|one-time code)\s*:\s*$`, Status: Waiting, Priority: 900, Enabled: true},

		// Editor / pager modes.
		{ID: "vim-insert", Name: "vim insert mode", Regex: `-- INSERT --`, Status: Waiting, Priority: 500, Enabled: true},
		{ID: "nano-help", Name: "nano help bar", Regex: `\^G Help\s+\^O Write Out`, Status: Waiting, Priority: 500, Enabled: true},
		{ID: "pager-more", Name: "pager prompt", Regex: `(?i)(--More--|\(END\)|^:)\s*$`, Status: Waiting, Priority: 450, Enabled: true},

		// Package/build tool output.
		{ID: "npm-err", Name: "npm error", Regex: `npm ERR!`, Status: Error, Priority: 800, Enabled: true},
		{ID: "yarn-err", Name: "yarn error", Regex: `(?i)error\s+An unexpected error occurred`, Status: Error, Priority: 800, Enabled: true},
		{ID: "pip-err", Name: "pip error", Regex: `(?i)ERROR: (Could not|Failed)`, Status: Error, Priority: 800, Enabled: true},
		{ID: "cargo-err", Name: "cargo/rust error", Regex: `error\[E\d+\]`, Status: Error, Priority: 800, Enabled: true},
		{ID: "gomod-err", Name: "go build error", Regex: `(?i)^#.*\n?.*\.go:\d+:\d+: `, Status: Error, Priority: 800, Enabled: true},
		{ID: "pkg-install", Name: "package manager installing", Regex: `(?i)(npm|yarn|pnpm|pip|cargo) (install|run|build)`, Status: Working, Priority: 300, Enabled: true},

		// Generic error phrases.
		{ID: "permission-denied", Name: "permission denied", Regex: `(?i)permission denied`, Status: Error, Priority: 850, Enabled: true},
		{ID: "command-not-found", Name: "command not found", Regex: `(?i)command not found`, Status: Error, Priority: 850, Enabled: true},
		{ID: "merge-conflict", Name: "merge conflict", Regex: `(?i)CONFLICT \(.*\)|merge conflict`, Status: Error, Priority: 850, Enabled: true},

		// Generic shell prompt endings (lowest priority: broadest match).
		{ID: "shell-prompt", Name: "shell prompt", Regex: `[$#%❯➜]\s*$`, Status: Idle, Priority: 100, Enabled: true},
	}
}
