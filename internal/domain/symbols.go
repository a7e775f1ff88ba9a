package domain

// SymbolEntry is one exported symbol from the kernel's symbol manifest.
type SymbolEntry struct {
	// Name is the exported symbol name, unique within a table.
	Name string

	// CRC is the opaque content fingerprint of the ABI-relevant signature.
	CRC string

	// Module is the owning module path (vmlinux for built-ins).
	Module string
}

// SymbolTable maps symbol name to its entry. A table is built fresh per
// comparison, once for the baseline and once for the candidate.
type SymbolTable map[string]SymbolEntry

// ComparisonResult holds the three disjoint difference sets produced by the
// ABI comparator. A symbol appearing in Changed never also appears in Lost.
type ComparisonResult struct {
	// Changed lists symbols whose CRC differs between baseline and candidate.
	Changed []string

	// Lost lists symbols present in baseline but absent from candidate.
	Lost []string

	// Moved lists symbols whose owning module differs but whose CRC matches.
	Moved []string
}

// Clean reports whether the two tables are ABI-identical.
func (r ComparisonResult) Clean() bool {
	return len(r.Changed) == 0 && len(r.Lost) == 0 && len(r.Moved) == 0
}

// Broken reports whether the comparison constitutes a hard ABI failure.
// Moves alone are a warning-level pass: the symbol surface is intact.
func (r ComparisonResult) Broken() bool {
	return len(r.Changed) > 0 || len(r.Lost) > 0
}
