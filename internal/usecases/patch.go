// Package usecases contains the application business logic: patch
// extraction, metadata annotation, the post-hoc checkers, and the
// apply-build-test loop. This package orchestrates domain entities and
// interfaces to fulfill the validation pipeline.
package usecases

import (
	"regexp"
	"strings"
)

// Upstream-reference patterns, in priority order. Backported kernel commits
// carry their upstream identity in one of these forms; identifiers shorter
// than 40 hex digits are abbreviations that need expansion.
var upstreamRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^commit ([0-9a-f]{12,40}) upstream\.?\s*$`),
	regexp.MustCompile(`(?m)^\[\s*[Uu]pstream commit ([0-9a-f]{12,40})\s*\]$`),
	regexp.MustCompile(`\(cherry picked from commit ([0-9a-f]{12,40})\)`),
	regexp.MustCompile(`(?m)^commit ([0-9a-f]{12,40})\s*$`),
}

// parseUpstreamRef extracts the upstream commit identifier from a commit
// body or patch text. Returns the identifier (possibly abbreviated) and
// whether one was found.
func parseUpstreamRef(text string) (string, bool) {
	for _, pattern := range upstreamRefPatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// subjectPattern matches the mailbox Subject header, stripping any [PATCH
// n/m] prefix.
var subjectPattern = regexp.MustCompile(`^Subject: (?:\[[^\]]*\] ?)?(.*)$`)

// parseSubject extracts the commit subject from a mailbox patch, joining
// folded continuation lines.
func parseSubject(patch string) string {
	lines := strings.Split(patch, "\n")
	for i, line := range lines {
		m := subjectPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		subject := m[1]
		for j := i + 1; j < len(lines); j++ {
			if !strings.HasPrefix(lines[j], " ") && !strings.HasPrefix(lines[j], "\t") {
				break
			}
			subject += " " + strings.TrimSpace(lines[j])
		}
		return strings.TrimSpace(subject)
	}
	return ""
}

// splitMailbox cuts a mailbox patch into its header, message body, and
// trailing diff part. The header ends at the first blank line; the body ends
// at the "---" separator preceding the diffstat (or at the first diff line
// when no separator exists). Both cut points preserve the original lines so
// the three parts re-join byte-identically.
func splitMailbox(patch string) (header, body, diff string) {
	lines := strings.Split(patch, "\n")

	headerEnd := len(lines)
	for i, line := range lines {
		if line == "" {
			headerEnd = i + 1
			break
		}
	}

	bodyEnd := len(lines)
	for i := headerEnd; i < len(lines); i++ {
		if lines[i] == "---" || strings.HasPrefix(lines[i], "diff --git ") {
			bodyEnd = i
			break
		}
	}

	header = strings.Join(lines[:headerEnd], "\n")
	body = strings.Join(lines[headerEnd:bodyEnd], "\n")
	diff = strings.Join(lines[bodyEnd:], "\n")
	return header, body, diff
}

// joinMailbox reassembles the parts produced by splitMailbox.
func joinMailbox(header, body, diff string) string {
	parts := make([]string, 0, 3)
	if header != "" {
		parts = append(parts, header)
	}
	if body != "" {
		parts = append(parts, body)
	}
	if diff != "" {
		parts = append(parts, diff)
	}
	return strings.Join(parts, "\n")
}

// signoffPattern matches a Signed-off-by trailer line.
var signoffPattern = regexp.MustCompile(`(?m)^Signed-off-by:\s*(.+?)\s*$`)

// lastSignoff returns the most recent (last) Signed-off-by identity in the
// given message text, or empty when none exists.
func lastSignoff(text string) string {
	matches := signoffPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1][1]
}

// fullIDLen is the length of a complete content-addressed identifier.
const fullIDLen = 40
