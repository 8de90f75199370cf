package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want []string
	}{
		{
			name: "single day",
			from: "2026-08-10",
			to:   "2026-08-10",
			want: []string{"2026-08-10"},
		},
		{
			name: "range crossing month boundary",
			from: "2026-08-30",
			to:   "2026-09-01",
			want: []string{"2026-08-30", "2026-08-31", "2026-09-01"},
		},
		{
			name: "inverted range is empty",
			from: "2026-08-10",
			to:   "2026-08-01",
			want: nil,
		},
		{
			name: "malformed date is empty",
			from: "10/08/2026",
			to:   "2026-08-11",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, daysBetween(tt.from, tt.to))
		})
	}
}

func TestWithDefaultPort(t *testing.T) {
	assert.Equal(t, "ftp.example.gov.br:21", withDefaultPort("ftp.example.gov.br"))
	assert.Equal(t, "ftp.example.gov.br:2121", withDefaultPort("ftp.example.gov.br:2121"))
}

func TestRegionWanted(t *testing.T) {
	assert.True(t, regionWanted("SP", nil))
	assert.True(t, regionWanted("sp", []string{"SP", "RJ"}))
	assert.False(t, regionWanted("MG", []string{"SP", "RJ"}))
}

func TestGazetteAnonymousDefault(t *testing.T) {
	c := NewGazetteClient("ftp.example.gov.br", "", "", "/pub/licitacoes", Options{})
	assert.Equal(t, "anonymous", c.user)
}
