package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/precheck-ci/patch-precheck/internal/domain"
)

// Provenance block constants, matching the distribution's submission format.
const (
	blockSeparator   = "--------------------------------"
	mainlineSentinel = "mainline"
	bugzillaURLBase  = "https://gitee.com/src-openeuler/kernel/issues/"
	referenceURLBase = "https://git.kernel.org/torvalds/c/"
)

// AnnotatorConfig carries the submitter-specific values inserted into every
// patch.
type AnnotatorConfig struct {
	// Signer is the submitter identity in "Name <email>" form.
	Signer string

	// Category is the patch category (feature, bugfix, performance, security).
	Category string

	// BugzillaID is the tracking-issue identifier.
	BugzillaID string
}

// Annotator rewrites each patch's header to insert the distribution-required
// provenance fields and a sign-off line. Annotation is idempotent: a second
// pass over an annotated patch is a byte no-op.
type Annotator struct {
	store      domain.PatchStore
	history    domain.ReferenceHistory
	classifier domain.PatchClassifier
	cfg        AnnotatorConfig
	logger     Logger
}

// NewAnnotator creates an Annotator with the given dependencies.
func NewAnnotator(
	store domain.PatchStore,
	history domain.ReferenceHistory,
	classifier domain.PatchClassifier,
	cfg AnnotatorConfig,
	log Logger,
) *Annotator {
	return &Annotator{store: store, history: history, classifier: classifier, cfg: cfg, logger: log}
}

// Annotate rewrites every artifact's patch file in place, updating the
// artifact's tags and upstream identifier as it goes.
func (a *Annotator) Annotate(ctx context.Context, artifacts []domain.PatchArtifact) error {
	for i := range artifacts {
		if err := a.annotateOne(ctx, &artifacts[i]); err != nil {
			return fmt.Errorf("failed to annotate patch %d (%s): %w", artifacts[i].Index, artifacts[i].Subject, err)
		}
	}
	return nil
}

// annotateOne annotates a single patch file.
func (a *Annotator) annotateOne(ctx context.Context, art *domain.PatchArtifact) error {
	original, err := a.store.ReadPatch(art.Path)
	if err != nil {
		return err
	}

	header, body, diff := splitMailbox(original)

	if a.classifier.IsAbiFix(art.Subject, body) {
		body = a.annotateAbiFix(art, body)
	} else {
		body = a.annotateRegular(ctx, art, body)
	}

	annotated := joinMailbox(header, body, diff)
	if annotated == original {
		return nil
	}

	return a.store.RewritePatch(art.Path, annotated)
}

// annotateAbiFix inserts the minimal provenance block and records tags.
// Sign-off insertion is explicitly suppressed: ABI-fix patches are local
// reconciliations, not submissions on someone's behalf.
func (a *Annotator) annotateAbiFix(art *domain.PatchArtifact, body string) string {
	art.Tags["category"] = a.cfg.Category
	art.Tags["bugzilla"] = bugzillaURLBase + a.cfg.BugzillaID

	if hasProvenanceBlock(body) {
		return body
	}

	block := fmt.Sprintf("category: %s\nbugzilla: %s\n", a.cfg.Category, art.Tags["bugzilla"])
	return block + "\n" + body
}

// annotateRegular expands the upstream identifier, inserts the full
// provenance block, and appends the submitter sign-off.
func (a *Annotator) annotateRegular(ctx context.Context, art *domain.PatchArtifact, body string) string {
	body = a.resolveUpstreamID(ctx, art, body)

	if !hasProvenanceBlock(body) {
		body = a.provenanceBlock(ctx, art) + "\n" + body
	} else {
		// Already annotated: recover tags from the existing block so
		// downstream consumers see the same view either way.
		a.recoverTags(art, body)
	}

	signoff := "Signed-off-by: " + a.cfg.Signer
	if !containsLine(body, signoff) {
		body = strings.TrimRight(body, "\n") + "\n" + signoff
	}

	return body
}

// resolveUpstreamID parses the upstream reference from the body and expands
// an abbreviated identifier against the reference history, rewriting it back
// into the patch. Expansion failure is a warning, not an error: the patch
// keeps its abbreviated form.
func (a *Annotator) resolveUpstreamID(ctx context.Context, art *domain.PatchArtifact, body string) string {
	id, ok := parseUpstreamRef(body)
	if !ok {
		return body
	}

	if len(id) < fullIDLen {
		full, err := a.history.ExpandCommitID(ctx, id)
		if err != nil {
			a.logger.Warn(ctx, "could not expand abbreviated upstream identifier", map[string]interface{}{
				"patch":  art.Path,
				"abbrev": id,
				"error":  err.Error(),
			})
		} else {
			body = strings.Replace(body, id, full, 1)
			id = full
		}
	}

	art.UpstreamCommitID = id
	return body
}

// provenanceBlock renders the full provenance block for a regular patch and
// records the inserted tags on the artifact.
func (a *Annotator) provenanceBlock(ctx context.Context, art *domain.PatchArtifact) string {
	from := mainlineSentinel
	if art.UpstreamCommitID != "" && len(art.UpstreamCommitID) == fullIDLen {
		if tag, err := a.history.ContainingTag(ctx, art.UpstreamCommitID); err == nil && tag != "" {
			from = mainlineSentinel + "-" + tag
		}
	}

	bugzilla := bugzillaURLBase + a.cfg.BugzillaID
	art.Tags["from"] = from
	art.Tags["commit"] = art.UpstreamCommitID
	art.Tags["category"] = a.cfg.Category
	art.Tags["bugzilla"] = bugzilla

	var b strings.Builder
	b.WriteString("mainline inclusion\n")
	b.WriteString("from " + from + "\n")
	if art.UpstreamCommitID != "" {
		b.WriteString("commit " + art.UpstreamCommitID + "\n")
	}
	b.WriteString("category: " + a.cfg.Category + "\n")
	b.WriteString("bugzilla: " + bugzilla + "\n")
	b.WriteString("CVE: NA\n")
	b.WriteString("\n")
	if art.UpstreamCommitID != "" {
		b.WriteString("Reference: " + referenceURLBase + art.UpstreamCommitID + "\n")
		b.WriteString("\n")
	}
	b.WriteString(blockSeparator + "\n")
	return b.String()
}

// recoverTags re-reads provenance fields from an already-annotated body.
func (a *Annotator) recoverTags(art *domain.PatchArtifact, body string) {
	for _, line := range strings.Split(body, "\n") {
		switch {
		case strings.HasPrefix(line, "from "):
			art.Tags["from"] = strings.TrimPrefix(line, "from ")
		case strings.HasPrefix(line, "category: "):
			art.Tags["category"] = strings.TrimPrefix(line, "category: ")
		case strings.HasPrefix(line, "bugzilla: "):
			art.Tags["bugzilla"] = strings.TrimPrefix(line, "bugzilla: ")
		case line == blockSeparator:
			return
		}
	}
}

// hasProvenanceBlock reports whether the body already starts with a
// provenance block (full or minimal form).
func hasProvenanceBlock(body string) bool {
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		return line == "mainline inclusion" || strings.HasPrefix(line, "category: ")
	}
	return false
}

// containsLine reports whether text contains the given exact line.
func containsLine(text, line string) bool {
	for _, l := range strings.Split(text, "\n") {
		if l == line {
			return true
		}
	}
	return false
}
