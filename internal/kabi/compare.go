package kabi

import (
	"sort"

	"github.com/precheck-ci/patch-precheck/internal/domain"
)

// Compare diffs a candidate symbol table against a baseline and classifies
// every difference that can break an existing consumer:
//
//   - a symbol whose CRC differs is Changed
//   - a symbol present in baseline but absent from candidate is Lost
//   - a symbol whose owning module differs while its CRC matches is Moved
//
// Symbols newly introduced by the candidate are ignored: additions do not
// break existing consumers. The returned sets are sorted and disjoint with
// respect to Changed/Lost.
func Compare(baseline, candidate domain.SymbolTable) domain.ComparisonResult {
	var result domain.ComparisonResult

	for name, base := range baseline {
		cand, ok := candidate[name]
		if !ok {
			result.Lost = append(result.Lost, name)
			continue
		}
		if cand.CRC != base.CRC {
			result.Changed = append(result.Changed, name)
		}
		if cand.Module != base.Module {
			result.Moved = append(result.Moved, name)
		}
	}

	sort.Strings(result.Changed)
	sort.Strings(result.Lost)
	sort.Strings(result.Moved)

	return result
}
