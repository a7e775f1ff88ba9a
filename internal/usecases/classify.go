package usecases

import "regexp"

// kabiKeywordPattern is the subject heuristic for ABI-fix patches. It is a
// text heuristic inherited from the shell pipeline; the PatchClassifier
// interface exists so a stronger signal can replace it.
var kabiKeywordPattern = regexp.MustCompile(`(?i)\bkabi\b`)

// KabiKeywordClassifier classifies a patch as an ABI-fix when its subject
// mentions KABI and its body carries no parsable upstream reference: a
// deliberate local reconciliation rather than a backport.
type KabiKeywordClassifier struct{}

// IsAbiFix implements domain.PatchClassifier.
func (KabiKeywordClassifier) IsAbiFix(subject, body string) bool {
	if !kabiKeywordPattern.MatchString(subject) {
		return false
	}
	_, hasRef := parseUpstreamRef(body)
	return !hasRef
}
