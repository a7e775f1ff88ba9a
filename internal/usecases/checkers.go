package usecases

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/precheck-ci/patch-precheck/internal/domain"
)

// CheckResult is one checker's outcome for one commit.
type CheckResult struct {
	Name    string
	Outcome domain.CheckOutcome
	Reason  string
}

// DependencyChecker verifies that every upstream fix required by an applied
// commit has also been applied to the local tree.
type DependencyChecker struct {
	source  domain.SourceRepository
	history domain.ReferenceHistory
	logger  Logger
}

// NewDependencyChecker creates a DependencyChecker with the given dependencies.
func NewDependencyChecker(source domain.SourceRepository, history domain.ReferenceHistory, log Logger) *DependencyChecker {
	return &DependencyChecker{source: source, history: history, logger: log}
}

// shortRefLen is the abbreviation length upstream commits use in Fixes tags.
const shortRefLen = 7

// Check inspects each commit's upstream identifier and searches the
// reference history for fixes targeting it. Returns the aggregate outcome
// and per-commit results. When no commit in the set has an upstream
// identifier at all, the aggregate is Skipped.
func (c *DependencyChecker) Check(ctx context.Context, commits []domain.Commit) (domain.CheckOutcome, []CheckResult, error) {
	localLog, err := c.source.Log(ctx)
	if err != nil {
		return domain.CheckFailed, nil, err
	}
	localSubjects := make(map[string]bool, len(localLog))
	for _, commit := range localLog {
		localSubjects[commit.Subject] = true
	}

	aggregate := domain.CheckSkipped
	var results []CheckResult

	for _, commit := range commits {
		upstreamID, ok := parseUpstreamRef(commit.Body)
		if !ok || len(upstreamID) < fullIDLen {
			continue
		}
		if aggregate == domain.CheckSkipped {
			aggregate = domain.CheckPassed
		}

		result, err := c.checkOne(ctx, commit, upstreamID, localSubjects)
		if err != nil {
			return domain.CheckFailed, results, err
		}
		if result.Outcome == domain.CheckFailed {
			aggregate = domain.CheckFailed
		}
		results = append(results, result)
	}

	return aggregate, results, nil
}

// checkOne verifies the fixes of a single commit's upstream identifier.
func (c *DependencyChecker) checkOne(
	ctx context.Context,
	commit domain.Commit,
	upstreamID string,
	localSubjects map[string]bool,
) (CheckResult, error) {
	short := upstreamID[:shortRefLen]

	candidates, err := c.history.CommitsMentioning(ctx, short)
	if err != nil {
		return CheckResult{}, err
	}

	var missing []string
	for _, candidate := range candidates {
		// A commit trivially mentions its own identifier.
		if strings.EqualFold(candidate.ID, upstreamID) {
			continue
		}

		message := candidate.Subject + "\n" + candidate.Body
		if !hasFixesReference(short, message) {
			// Bare mentions (reverts, discussion) are advisory only.
			if mentionsUncommented(short, message) {
				c.logger.Debug(ctx, "advisory upstream mention", map[string]interface{}{
					"commit":  commit.ID,
					"mention": candidate.ID,
				})
			}
			continue
		}

		if !localSubjects[candidate.Subject] {
			missing = append(missing, fmt.Sprintf("%s %s", candidate.ID[:14], candidate.Subject))
		}
	}

	if len(missing) > 0 {
		return CheckResult{
			Name:    "dependency: " + commit.Subject,
			Outcome: domain.CheckFailed,
			Reason:  "missing upstream fixes: " + strings.Join(missing, "; "),
		}, nil
	}

	return CheckResult{Name: "dependency: " + commit.Subject, Outcome: domain.CheckPassed}, nil
}

// hasFixesReference reports whether the message carries a real
// "Fixes: <short>" tag for the given abbreviation.
func hasFixesReference(short, message string) bool {
	pattern := regexp.MustCompile(`(?im)^\s*Fixes:\s*` + regexp.QuoteMeta(short))
	return pattern.MatchString(message)
}

// mentionsUncommented reports whether short appears in the message on a line
// where it is not preceded by '#' (commented-out occurrences do not count).
func mentionsUncommented(short, message string) bool {
	for _, line := range strings.Split(message, "\n") {
		idx := strings.Index(strings.ToLower(line), strings.ToLower(short))
		if idx < 0 {
			continue
		}
		if strings.Contains(line[:idx], "#") {
			continue
		}
		return true
	}
	return false
}

// FormatChecker verifies the structural invariants of annotated commit
// messages after the patches have been applied.
type FormatChecker struct {
	history    domain.ReferenceHistory
	classifier domain.PatchClassifier
	signer     string
	logger     Logger
}

// NewFormatChecker creates a FormatChecker with the given dependencies.
func NewFormatChecker(history domain.ReferenceHistory, classifier domain.PatchClassifier, signer string, log Logger) *FormatChecker {
	return &FormatChecker{history: history, classifier: classifier, signer: signer, logger: log}
}

// Check verifies each applied commit's provenance fields and sign-off.
func (c *FormatChecker) Check(ctx context.Context, commits []domain.Commit) (domain.CheckOutcome, []CheckResult, error) {
	aggregate := domain.CheckPassed
	var results []CheckResult

	for _, commit := range commits {
		result := c.checkOne(ctx, commit)
		if result.Outcome == domain.CheckFailed {
			aggregate = domain.CheckFailed
		}
		results = append(results, result)
	}

	if len(results) == 0 {
		aggregate = domain.CheckSkipped
	}
	return aggregate, results, nil
}

// Required provenance fields for a regular (backport) commit.
var regularFieldPatterns = map[string]*regexp.Regexp{
	"mainline inclusion": regexp.MustCompile(`(?m)^mainline inclusion$`),
	"from":               regexp.MustCompile(`(?m)^from \S+$`),
	"commit":             regexp.MustCompile(`(?m)^commit [0-9a-f]{40}$`),
	"category":           regexp.MustCompile(`(?m)^category: (feature|bugfix|performance|security)$`),
	"bugzilla":           regexp.MustCompile(`(?m)^bugzilla: https://\S+$`),
}

// Required fields for an ABI-fix commit's minimal block.
var abiFixFieldPatterns = map[string]*regexp.Regexp{
	"category": regularFieldPatterns["category"],
	"bugzilla": regularFieldPatterns["bugzilla"],
}

// checkOne validates one commit's message structure.
func (c *FormatChecker) checkOne(ctx context.Context, commit domain.Commit) CheckResult {
	name := "format: " + commit.Subject

	required := regularFieldPatterns
	abiFix := c.classifier.IsAbiFix(commit.Subject, commit.Body)
	if abiFix {
		required = abiFixFieldPatterns
	}

	var problems []string
	for field, pattern := range required {
		if !pattern.MatchString(commit.Body) {
			problems = append(problems, "missing or malformed field: "+field)
		}
	}

	if !abiFix {
		problems = append(problems, c.checkSignoff(ctx, commit)...)
	}

	if len(problems) > 0 {
		return CheckResult{Name: name, Outcome: domain.CheckFailed, Reason: strings.Join(problems, "; ")}
	}
	return CheckResult{Name: name, Outcome: domain.CheckPassed}
}

// checkSignoff verifies that a new sign-off line, distinct from the one
// inherited from the upstream commit, was actually appended. A local commit
// whose most recent sign-off is byte-identical to the upstream commit's most
// recent sign-off means the annotation step did not run or did not take
// effect.
func (c *FormatChecker) checkSignoff(ctx context.Context, commit domain.Commit) []string {
	local := lastSignoff(commit.Body)
	if local == "" {
		return []string{"no sign-off line"}
	}
	if c.signer != "" && local != c.signer {
		return []string{fmt.Sprintf("newest sign-off %q is not the configured signer", local)}
	}

	upstreamID, ok := parseUpstreamRef(commit.Body)
	if !ok || len(upstreamID) < fullIDLen {
		return nil
	}

	upstream, err := c.history.Commit(ctx, upstreamID)
	if err != nil {
		c.logger.Warn(ctx, "could not load upstream commit for sign-off comparison", map[string]interface{}{
			"commit":   commit.ID,
			"upstream": upstreamID,
			"error":    err.Error(),
		})
		return nil
	}

	if upstreamSignoff := lastSignoff(upstream.Body); upstreamSignoff != "" && upstreamSignoff == local {
		return []string{"sign-off inherited from upstream commit, none appended"}
	}
	return nil
}
