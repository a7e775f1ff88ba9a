package kabi

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/precheck-ci/patch-precheck/internal/domain"
)

func table(entries ...domain.SymbolEntry) domain.SymbolTable {
	t := make(domain.SymbolTable, len(entries))
	for _, e := range entries {
		t[e.Name] = e
	}
	return t
}

func TestCompare_IdenticalTables(t *testing.T) {
	base := table(
		domain.SymbolEntry{Name: "kmalloc", CRC: "0x1111aaaa", Module: "vmlinux"},
		domain.SymbolEntry{Name: "nf_register_net_hook", CRC: "0x2222bbbb", Module: "net/netfilter/nf_conntrack"},
	)

	result := Compare(base, base)

	assert.True(t, result.Clean())
	assert.Empty(t, result.Changed)
	assert.Empty(t, result.Lost)
	assert.Empty(t, result.Moved)
}

func TestCompare_LostSymbol(t *testing.T) {
	base := table(
		domain.SymbolEntry{Name: "kmalloc", CRC: "0x1111aaaa", Module: "vmlinux"},
		domain.SymbolEntry{Name: "old_api", CRC: "0x2222bbbb", Module: "vmlinux"},
	)
	cand := table(
		domain.SymbolEntry{Name: "kmalloc", CRC: "0x1111aaaa", Module: "vmlinux"},
	)

	result := Compare(base, cand)

	assert.Equal(t, []string{"old_api"}, result.Lost)
	assert.Empty(t, result.Changed)
	assert.Empty(t, result.Moved)
	assert.True(t, result.Broken())
}

func TestCompare_ChangedCRC(t *testing.T) {
	base := table(domain.SymbolEntry{Name: "kmalloc", CRC: "0x1111aaaa", Module: "vmlinux"})
	cand := table(domain.SymbolEntry{Name: "kmalloc", CRC: "0xdeadbeef", Module: "vmlinux"})

	result := Compare(base, cand)

	assert.Equal(t, []string{"kmalloc"}, result.Changed)
	assert.Empty(t, result.Lost)
	assert.True(t, result.Broken())
}

func TestCompare_MovedModuleSameCRC(t *testing.T) {
	base := table(domain.SymbolEntry{Name: "helper_fn", CRC: "0x1111aaaa", Module: "drivers/net/a"})
	cand := table(domain.SymbolEntry{Name: "helper_fn", CRC: "0x1111aaaa", Module: "drivers/net/b"})

	result := Compare(base, cand)

	assert.Empty(t, result.Changed)
	assert.Empty(t, result.Lost)
	assert.Equal(t, []string{"helper_fn"}, result.Moved)

	// A move alone keeps the symbol surface intact.
	assert.False(t, result.Broken())
	assert.False(t, result.Clean())
}

func TestCompare_AdditionsIgnored(t *testing.T) {
	base := table(domain.SymbolEntry{Name: "kmalloc", CRC: "0x1111aaaa", Module: "vmlinux"})
	cand := table(
		domain.SymbolEntry{Name: "kmalloc", CRC: "0x1111aaaa", Module: "vmlinux"},
		domain.SymbolEntry{Name: "brand_new_api", CRC: "0x3333cccc", Module: "vmlinux"},
	)

	result := Compare(base, cand)

	assert.True(t, result.Clean())
}

func TestCompare_ChangedNeverAlsoLost(t *testing.T) {
	base := table(
		domain.SymbolEntry{Name: "a_sym", CRC: "0x01", Module: "vmlinux"},
		domain.SymbolEntry{Name: "b_sym", CRC: "0x02", Module: "vmlinux"},
	)
	cand := table(
		domain.SymbolEntry{Name: "a_sym", CRC: "0xff", Module: "vmlinux"},
	)

	result := Compare(base, cand)

	assert.Equal(t, []string{"a_sym"}, result.Changed)
	assert.Equal(t, []string{"b_sym"}, result.Lost)
	assert.NotContains(t, result.Lost, "a_sym")
}

func TestCompare_ResultsSorted(t *testing.T) {
	base := table(
		domain.SymbolEntry{Name: "zeta", CRC: "0x01", Module: "vmlinux"},
		domain.SymbolEntry{Name: "alpha", CRC: "0x02", Module: "vmlinux"},
		domain.SymbolEntry{Name: "mid", CRC: "0x03", Module: "vmlinux"},
	)

	result := Compare(base, table())

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, result.Lost)
}
