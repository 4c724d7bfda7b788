package sla_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-mini/internal/sla"
)

func TestIsBreached(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	require.True(t, sla.IsBreached(now.Add(-time.Hour), now))
	require.True(t, sla.IsBreached(now.Add(-time.Nanosecond), now))
	require.False(t, sla.IsBreached(now, now), "exact equality is not a breach")
	require.False(t, sla.IsBreached(now.Add(time.Nanosecond), now))
	require.False(t, sla.IsBreached(now.Add(time.Hour), now))
}

func TestIsBreachedZeroDeadline(t *testing.T) {
	require.False(t, sla.IsBreached(time.Time{}, time.Now()))
}
