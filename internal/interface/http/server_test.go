package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/studyquest/progress-engine/internal/application/command"
	"github.com/studyquest/progress-engine/internal/application/query"
	"github.com/studyquest/progress-engine/internal/domain/shared"
	"github.com/studyquest/progress-engine/internal/infrastructure/persistence/memory"
	"github.com/studyquest/progress-engine/internal/infrastructure/scheduler"
	"github.com/studyquest/progress-engine/internal/interface/http/handlers"
)

const testKey = "engine-admin-key"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testKey), bcrypt.MinCost)
	require.NoError(t, err)

	topics := memory.NewProgressRepository()
	archive := memory.NewSessionArchive()
	achievements := memory.NewAchievementRepository()
	missions := memory.NewMissionRepository()
	entries := memory.NewLeaderboardRepository()

	cfg := DefaultConfig()
	cfg.APIKeyHashes = []string{string(hash)}
	cfg.JWTSecret = "test-secret"

	return NewServer(cfg, Dependencies{
		RecordSession:       command.NewRecordSessionHandler(topics, archive),
		CreateGoal:          command.NewCreateGoalHandler(achievements, missions),
		UpdateAchievement:   command.NewUpdateAchievementProgressHandler(achievements),
		UpdateMission:       command.NewUpdateMissionProgressHandler(missions),
		UpdateRank:          command.NewUpdateRankHandler(entries),
		RecalculateRanks:    command.NewRecalculateRanksHandler(entries, memory.NewLocker(), nil),
		GetTopicProgress:    query.NewGetTopicProgressHandler(topics),
		GetSessionHistory:   query.NewGetSessionHistoryHandler(topics, archive),
		GetUserSummary:      query.NewGetUserSummaryHandler(topics, achievements, missions),
		GetLeaderboardEntry: query.NewGetLeaderboardEntryHandler(entries, nil),
		GetTop:              query.NewGetTopHandler(entries, nil, nil),
	})
}

func do(t *testing.T, s *Server, method, path string, body interface{}, auth bool) (*httptest.ResponseRecorder, JSONResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("X-API-Key", testKey)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp JSONResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec, resp
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)

	rec, resp := do(t, s, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_HealthReportsCriticalFailure(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	checker.AddCheck("database", true, func(context.Context) error { return errors.New("down") })
	checker.AddCheck("cache", false, func(context.Context) error { return nil })

	s := NewServer(DefaultConfig(), Dependencies{HealthChecker: checker})

	rec, _ := do(t, s, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/ready", nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/live", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_WritesRequireCredentials(t *testing.T) {
	s := newTestServer(t)
	body := RecordSessionRequest{Score: 80, TimeSpentSeconds: 600}

	rec, _ := do(t, s, http.MethodPost, "/api/v1/users/u1/topics/algebra/sessions", body, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/u1/topics/algebra/sessions", bytes.NewBufferString(`{"score":80}`))
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_BearerTokenIsAccepted(t *testing.T) {
	s := newTestServer(t)
	token, err := s.auth.IssueToken("ops", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/leaderboard/recalculate", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RecordSessionThenRead(t *testing.T) {
	s := newTestServer(t)

	rec, resp := do(t, s, http.MethodPost, "/api/v1/users/u1/topics/algebra/sessions",
		RecordSessionRequest{Score: 85, TimeSpentSeconds: 900, WeakAreas: []string{"fractions"}}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, resp.Success)

	rec, resp = do(t, s, http.MethodGet, "/api/v1/users/u1/topics/algebra", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "beginner", data["mastery_level"])
	assert.EqualValues(t, 1, data["total_sessions"])

	rec, resp = do(t, s, http.MethodGet, "/api/v1/users/u1/topics/algebra/sessions", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data, 1)

	rec, resp = do(t, s, http.MethodGet, "/api/v1/users/u1/summary", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, resp.Data.(map[string]interface{})["topic_count"])
}

func TestServer_ErrorMapping(t *testing.T) {
	s := newTestServer(t)

	rec, resp := do(t, s, http.MethodGet, "/api/v1/users/u1/topics/missing", nil, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not_found", resp.Error.Code)

	rec, _ = do(t, s, http.MethodPost, "/api/v1/users/u1/topics/algebra/sessions",
		RecordSessionRequest{Score: 140}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, s, http.MethodPut, "/api/v1/users/u1/rank", RankUpdateRequest{}, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/missions/m1/progress", bytes.NewBufferString(`{"nope":1}`))
	req.Header.Set("X-API-Key", testKey)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_MissionFlow(t *testing.T) {
	s := newTestServer(t)

	rec, resp := do(t, s, http.MethodPost, "/api/v1/users/u1/missions", CreateGoalRequest{
		Code:      "weekly-practice",
		Target:    5,
		ExpiresAt: time.Now().Add(24 * time.Hour).UTC(),
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := resp.Data.(map[string]interface{})["id"].(string)

	rec, resp = do(t, s, http.MethodPut, "/api/v1/missions/"+id+"/progress", GoalProgressRequest{Progress: 7}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]interface{})
	assert.EqualValues(t, 5, data["progress"])
	assert.Equal(t, true, data["became_completed"])

	rec, resp = do(t, s, http.MethodPut, "/api/v1/missions/"+id+"/progress", GoalProgressRequest{Progress: 5}, true)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_completed", resp.Error.Code)
}

func TestServer_LeaderboardFlow(t *testing.T) {
	s := newTestServer(t)

	for _, u := range []struct {
		id     string
		points int
	}{{"alice", 600}, {"bob", 500}, {"carol", 400}} {
		rec, resp := do(t, s, http.MethodGet, "/api/v1/users/"+u.id+"/rank", nil, false)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 999999, resp.Data.(map[string]interface{})["global_rank"])

		points := u.points
		rec, _ = do(t, s, http.MethodPut, "/api/v1/users/"+u.id+"/rank", RankUpdateRequest{TotalPoints: &points}, true)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec, _ := do(t, s, http.MethodPost, "/api/v1/leaderboard/recalculate", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := do(t, s, http.MethodGet, "/api/v1/leaderboard/top?limit=2", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := resp.Data.([]interface{})
	require.Len(t, rows, 2)
	first := rows[0].(map[string]interface{})
	assert.Equal(t, "alice", first["user_id"])
	assert.EqualValues(t, 1, first["global_rank"])
}

type flakyJob struct{ calls int }

func (j *flakyJob) Name() string        { return "recalculate_ranks" }
func (j *flakyJob) Description() string { return "Recalculates ranks" }
func (j *flakyJob) Run(context.Context) error {
	j.calls++
	if j.calls == 2 {
		return errors.New("lock lost")
	}
	return nil
}

func TestServer_Jobs(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte(testKey), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.APIKeyHashes = []string{string(hash)}

	sched := scheduler.NewScheduler(scheduler.DefaultSchedulerConfig())
	require.NoError(t, sched.Register(&flakyJob{}, scheduler.Every(time.Hour)))
	for i := 0; i < 2; i++ {
		_, _ = sched.RunNow(context.Background(), "recalculate_ranks")
	}

	s := NewServer(cfg, Dependencies{Scheduler: sched})

	rec, resp := do(t, s, http.MethodGet, "/api/v1/jobs", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]interface{})
	require.Len(t, data["jobs"], 1)
	metrics := data["metrics"].(map[string]interface{})
	assert.Equal(t, 2.0, metrics["total_executions"])
	assert.Equal(t, 1.0, metrics["total_failures"])

	rec, resp = do(t, s, http.MethodGet, "/api/v1/jobs/recalculate_ranks", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	job := resp.Data.(map[string]interface{})
	assert.Equal(t, "Recalculates ranks", job["description"])
	assert.Equal(t, 1.0, job["fail_count"])
	runs := job["runs"].([]interface{})
	require.Len(t, runs, 2)
	assert.Equal(t, true, runs[0].(map[string]interface{})["success"])
	assert.Equal(t, "lock lost", runs[1].(map[string]interface{})["error"])

	rec, resp = do(t, s, http.MethodGet, "/api/v1/jobs/missing", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", resp.Error.Code)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{shared.ErrInvalidScore, http.StatusBadRequest},
		{shared.ErrEntryNotFound, http.StatusNotFound},
		{shared.ErrMissionExpired, http.StatusGone},
		{shared.ErrMissionCompleted, http.StatusConflict},
		{shared.ErrRecalculationInProgress, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		got, _ := statusFor(c.err)
		assert.Equal(t, c.code, got, c.err.Error())
	}
}
