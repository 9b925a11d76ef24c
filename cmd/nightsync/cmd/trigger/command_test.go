package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/nightsync/internal/cmd/application"
	"github.com/agentstation/nightsync/internal/config"
)

func TestNight(t *testing.T) {
	app := &application.Mock{
		ConfigFunc: func() *config.Config {
			return &config.Config{Sync: config.Sync{Timezone: "America/New_York", DayBoundaryHour: 4}}
		},
	}

	tests := []struct {
		at   string
		want string
	}{
		{"2025-08-16T03:00:00Z", "2025-08-15"}, // 23:00 local
		{"2025-08-16T07:30:00Z", "2025-08-15"}, // 03:30 local, before the boundary
		{"2025-08-16T08:00:00Z", "2025-08-16"}, // 04:00 local
	}
	for _, tt := range tests {
		at, err := time.Parse(time.RFC3339, tt.at)
		require.NoError(t, err)
		night, err := Night(app, at)
		require.NoError(t, err)
		assert.Equal(t, tt.want, night.String(), tt.at)
	}
}

func TestNightUnknownZone(t *testing.T) {
	app := &application.Mock{
		ConfigFunc: func() *config.Config {
			return &config.Config{Sync: config.Sync{Timezone: "Mars/Olympus"}}
		},
	}
	_, err := Night(app, time.Now())
	require.Error(t, err)
}
