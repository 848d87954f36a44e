package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyquest/progress-engine/internal/application/command"
	"github.com/studyquest/progress-engine/internal/domain/shared"
)

type stubRecalculator struct {
	results map[string]error
	calls   []string
}

func (s *stubRecalculator) Handle(_ context.Context, cmd command.RecalculateRanksCommand) (*command.RecalculateRanksResult, error) {
	s.calls = append(s.calls, cmd.Series)
	if err := s.results[cmd.Series]; err != nil {
		return nil, err
	}
	return &command.RecalculateRanksResult{Series: cmd.Series, UpdatedCount: 10}, nil
}

func TestRecalculateRanksJob_DefaultsToDefaultSeries(t *testing.T) {
	stub := &stubRecalculator{}
	job := NewRecalculateRanksJob(stub, nil, RecalculateRanksConfig{})

	require.Nil(t, job.LastStats())
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, []string{""}, stub.calls)
	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.SeriesProcessed)
	assert.Equal(t, 10, stats.EntriesRewritten)
}

func TestRecalculateRanksJob_SkipsHeldAndReportsFailures(t *testing.T) {
	stub := &stubRecalculator{results: map[string]error{
		"s1": shared.ErrRecalculationInProgress,
		"s2": errors.New("db down"),
	}}
	cfg := DefaultRecalculateRanksConfig()
	cfg.Series = []string{"", "s1", "s2"}
	job := NewRecalculateRanksJob(stub, nil, cfg)

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.NotErrorIs(t, err, shared.ErrRecalculationInProgress)

	stats := job.LastStats()
	assert.Equal(t, 1, stats.SeriesProcessed)
	assert.Equal(t, 1, stats.SeriesSkipped)
	assert.Len(t, stats.Errors, 1)
	assert.Equal(t, []string{"", "s1", "s2"}, stub.calls)
}

func TestRecalculateRanksJob_Metadata(t *testing.T) {
	job := NewRecalculateRanksJob(&stubRecalculator{}, nil, DefaultRecalculateRanksConfig())
	assert.Equal(t, "recalculate_ranks", job.Name())
	assert.NotEmpty(t, job.Description())
}
