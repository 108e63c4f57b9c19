package certman

import "strings"

// unsafeNameChars are stripped from caller-supplied basenames before they
// become file names. Injection safety comes from argument-vector spawning in
// the runner; this list only keeps names filesystem-clean.
var unsafeNameChars = []string{"/", "'", `"`, `\`, "&", ";", " "}

// SanitizeName removes unsafe characters from a basename, preserving the
// order of everything else. An empty result must be treated as an invalid
// name by callers.
func SanitizeName(name string) string {
	for _, c := range unsafeNameChars {
		name = strings.ReplaceAll(name, c, "")
	}
	return name
}
