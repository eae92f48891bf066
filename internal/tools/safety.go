package tools

import "strings"

// knownSafeCommands is the static allowlist backing the UnlessTrusted
// approval policy. It is intentionally small and conservative: every entry
// is a read-only, side-effect-free invocation. Treat this list as security
// configuration, not a convenience default — extend it only for commands
// that cannot mutate state or exfiltrate data regardless of arguments.
var knownSafeCommands = map[string]bool{
	"ls":     true,
	"cat":    true,
	"pwd":    true,
	"whoami": true,
	"echo":   true,
	"true":   true,
	"date":   true,
}

// IsKnownSafe classifies a command vector as safe to run without explicit
// user approval under the UnlessTrusted policy. It fails closed: any
// command not on the allowlist, or an empty vector, is not safe.
func IsKnownSafe(command []string) bool {
	if len(command) == 0 {
		return false
	}
	name := strings.TrimSpace(command[0])
	return knownSafeCommands[name]
}
