package setup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/tradewars/config"
	"github.com/vadiminshakov/tradewars/internal/domain"
)

func TestParseRoster(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []string
		wantErr bool
	}{
		{name: "defaults", in: "Aurelian:conservative, Pumara:aggressive", want: []string{"Aurelian", "Pumara"}},
		{name: "case insensitive strategy", in: "Ada:AGGRESSIVE", want: []string{"Ada"}},
		{name: "trailing comma", in: "Ada:aggressive,", want: []string{"Ada"}},
		{name: "missing strategy", in: "Ada", wantErr: true},
		{name: "unknown strategy", in: "Ada:reckless", wantErr: true},
		{name: "duplicate", in: "Ada:aggressive,Ada:conservative", wantErr: true},
		{name: "empty", in: " ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bots, err := parseRoster(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			var names []string
			for _, b := range bots {
				names = append(names, b.Name)
				assert.True(t, b.Balance.Equal(domain.DefaultStartingBalance))
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, validateSchedule("@every 1m"))
	assert.NoError(t, validateSchedule("0 */5 * * * *"))
	assert.Error(t, validateSchedule("*/5 * * * *"))
	assert.Error(t, validateSchedule("soon"))
}

func TestWriteConfig_LoadsBack(t *testing.T) {
	for _, k := range []string{"OPENAI_API_KEY", "REDIS_URL", "TRADEWARS_STORAGE", "TRADEWARS_TZ", "TRADEWARS_PRICE_SOURCE", "TRADEWARS_HTTP_ADDR"} {
		t.Setenv(k, "")
	}

	a := defaultAnswers()
	a.PriceSource = config.SourceBybit
	a.TimeZone = "Asia/Tokyo"
	a.Storage = "sqlite"
	a.StorageDSN = filepath.Join(t.TempDir(), "arena.db")
	a.APIKey = "sk-wizard"

	path := filepath.Join(t.TempDir(), DefaultOutput)
	require.NoError(t, WriteConfig(path, a))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.SourceBybit, cfg.PriceSource)
	assert.Equal(t, "Asia/Tokyo", cfg.Location.String())
	assert.Equal(t, "sk-wizard", cfg.LLM.APIKey)
	require.Len(t, cfg.Roster, 2)
	assert.Equal(t, domain.StrategyAggressive, cfg.Roster[1].Strategy)
}

func TestWriteConfig_InvalidRoster(t *testing.T) {
	a := defaultAnswers()
	a.Roster = "nobody"
	err := WriteConfig(filepath.Join(t.TempDir(), DefaultOutput), a)
	assert.Error(t, err)
}
