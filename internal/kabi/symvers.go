// Package kabi implements the kernel ABI surface checks: loading the
// exported-symbol manifest (Module.symvers format) and comparing two symbol
// table snapshots.
package kabi

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/precheck-ci/patch-precheck/internal/domain"
)

// Load parses an exported-symbol manifest in Module.symvers format:
//
//	0x<crc>\t<symbol>\t<module>\t<export type>[\t<namespace>]
//
// Blank lines are skipped. Lines with fewer than three fields are rejected:
// a truncated manifest must not silently shrink the ABI surface.
func Load(r io.Reader) (domain.SymbolTable, error) {
	table := make(domain.SymbolTable)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, fmt.Errorf("symbol manifest line %d: expected at least 3 fields, got %d", lineNo, len(fields))
		}

		entry := domain.SymbolEntry{
			CRC:    fields[0],
			Name:   fields[1],
			Module: fields[2],
		}
		table[entry.Name] = entry
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read symbol manifest: %w", err)
	}

	return table, nil
}

// LoadFile parses the manifest at the given path.
func LoadFile(path string) (domain.SymbolTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open symbol manifest: %w", err)
	}
	defer f.Close()

	return Load(f)
}
