package tools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToInt_HandlesAllSupportedShapes(t *testing.T) {
	cases := []struct {
		in   interface{}
		want int
		ok   bool
	}{
		{42, 42, true},
		{int64(7), 7, true},
		{float64(3), 3, true},
		{"9", 9, true},
		{"not-a-number", 0, false},
		{nil, 0, false},
		{3.9, 3, true},
	}
	for _, c := range cases {
		got, ok := toInt(c.in)
		assert.Equal(t, c.ok, ok, "input %v", c.in)
		if c.ok {
			assert.Equal(t, c.want, got, "input %v", c.in)
		}
	}
}

func TestParseDpkgTimestamp_ValidAndInvalidLines(t *testing.T) {
	ts, ok := parseDpkgTimestamp("2026-07-30 10:15:02 install nginx:amd64 <none> 1.24.0-1")
	assert := assert.New(t)
	assert.True(ok)
	assert.Equal(time.Date(2026, 7, 30, 10, 15, 2, 0, time.UTC), ts.UTC())

	_, ok = parseDpkgTimestamp("not a dpkg line")
	assert.False(ok)

	_, ok = parseDpkgTimestamp("")
	assert.False(ok)
}

func TestSplitNonEmpty_DropsBlankLines(t *testing.T) {
	out := splitNonEmpty("a\n\nb\n   \nc")
	assert.Equal(t, []string{"a", "b", "c"}, out)
}

func TestMax0_ClampsNegative(t *testing.T) {
	assert.Equal(t, 0, max0(-5))
	assert.Equal(t, 0, max0(0))
	assert.Equal(t, 3, max0(3))
}

func TestRegisterDefaults_PopulatesExpectedCatalogEntries(t *testing.T) {
	reg := NewRegistry()
	RegisterDefaults(reg)
	catalog := reg.Catalog()

	for _, name := range []string{
		"disk_usage", "memory_usage", "uptime", "recent_installs",
		"journal_warnings", "service_status", "process_list",
	} {
		assert.True(t, catalog.Has(name), "expected %s in catalog", name)
	}

	def, ok := catalog.Lookup("journal_warnings")
	assert.True(t, ok)
	assert.Equal(t, SensitiveRead, def.Security)
	assert.Len(t, def.RequiredParams(), 1)
	assert.Equal(t, "service", def.RequiredParams()[0].Name)

	def, ok = catalog.Lookup("process_list")
	assert.True(t, ok)
	assert.Equal(t, SensitiveRead, def.Security)
}
