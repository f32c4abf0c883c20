package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/racesync/internal/domain"
)

func TestSourceSetDefaults(t *testing.T) {
	t.Parallel()

	s := domain.Source{Name: "runsignup", Strategy: domain.StrategyJSON}
	s.SetDefaults()

	assert.Equal(t, domain.SourceDefaultRetryMax, s.RetryMax)
	assert.Equal(t, domain.SourceDefaultBackoffBaseSeconds, s.BackoffBaseSeconds)
	assert.Equal(t, domain.SourceDefaultRequestTimeoutMs, s.RequestTimeoutMs)
	assert.Equal(t, domain.SourceDefaultMinIntervalSeconds, s.MinIntervalSeconds)
	assert.Equal(t, domain.SourceDefaultPriority, s.Priority)
}

func TestSourceSetDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()

	s := domain.Source{
		Name:               "athlinks",
		Strategy:           domain.StrategyHTML,
		RetryMax:           5,
		Priority:           9,
		MinIntervalSeconds: 3600,
	}
	s.SetDefaults()

	assert.Equal(t, 5, s.RetryMax)
	assert.Equal(t, 9, s.Priority)
	assert.Equal(t, 3600, s.MinIntervalSeconds)
}

func TestSourceDurations(t *testing.T) {
	t.Parallel()

	s := domain.Source{
		RequestTimeoutMs:   2500,
		BackoffBaseSeconds: 10,
		MinIntervalSeconds: 7200,
	}

	assert.Equal(t, 2500*time.Millisecond, s.RequestTimeout())
	assert.Equal(t, 10*time.Second, s.BackoffBase())
	assert.Equal(t, 2*time.Hour, s.MinInterval())

	// Zero values fall back to defaults.
	var zero domain.Source
	assert.Equal(t, 15*time.Second, zero.RequestTimeout())
	assert.Equal(t, 5*time.Second, zero.BackoffBase())
	assert.Equal(t, 24*time.Hour, zero.MinInterval())
}

func TestSourceValidate(t *testing.T) {
	t.Parallel()

	valid := domain.Source{
		Name:     "runsignup",
		Strategy: domain.StrategyJSON,
		StrategyConfig: domain.StrategyConfig{
			Version: domain.StrategyConfigVersion,
		},
	}
	assert.NoError(t, valid.Validate())

	noName := valid
	noName.Name = ""
	assert.Error(t, noName.Validate())

	badStrategy := valid
	badStrategy.Strategy = "soap"
	assert.Error(t, badStrategy.Validate())

	badConfig := valid
	badConfig.StrategyConfig.Version = 0
	assert.Error(t, badConfig.Validate())

	// The manual marker's priority cannot be claimed by a source.
	reservedPriority := valid
	reservedPriority.Priority = domain.ManualPriority
	assert.Error(t, reservedPriority.Validate())
}

func TestBindingDue(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

	never := domain.Binding{}
	assert.True(t, never.Due(now), "binding never checked should be due")

	past := now.Add(-time.Hour)
	due := domain.Binding{NextCheckAt: &past}
	assert.True(t, due.Due(now))

	exactly := now
	atBoundary := domain.Binding{NextCheckAt: &exactly}
	assert.True(t, atBoundary.Due(now), "next_check_at equal to now counts as due")

	future := now.Add(time.Hour)
	notDue := domain.Binding{NextCheckAt: &future}
	assert.False(t, notDue.Due(now))
}
