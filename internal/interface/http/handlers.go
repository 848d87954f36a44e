package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/studyquest/progress-engine/internal/application/command"
	"github.com/studyquest/progress-engine/internal/application/query"
	"github.com/studyquest/progress-engine/internal/domain/goal"
	"github.com/studyquest/progress-engine/internal/domain/leaderboard"
	"github.com/studyquest/progress-engine/internal/domain/shared"
	"github.com/studyquest/progress-engine/internal/infrastructure/scheduler"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"uptime": s.Uptime().String(),
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil && !s.deps.HealthChecker.Check(r.Context()).Ready {
		writeJSONError(w, http.StatusServiceUnavailable, "not_ready", "A critical dependency is unavailable")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetTopicProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetTopicProgress == nil {
		writeUnavailable(w)
		return
	}
	vars := mux.Vars(r)
	dto, err := s.deps.GetTopicProgress.Handle(r.Context(), query.GetTopicProgressQuery{
		UserID:  vars["userID"],
		TopicID: vars["topicID"],
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

func (s *Server) handleGetSessionHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetSessionHistory == nil {
		writeUnavailable(w)
		return
	}
	vars := mux.Vars(r)
	sessions, err := s.deps.GetSessionHistory.Handle(r.Context(), query.GetTopicProgressQuery{
		UserID:  vars["userID"],
		TopicID: vars["topicID"],
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sessions)
}

// RecordSessionRequest is the body of a session submission.
type RecordSessionRequest struct {
	Score            float64  `json:"score"`
	TimeSpentSeconds int64    `json:"time_spent_seconds"`
	WeakAreas        []string `json:"weak_areas"`
	StrongAreas      []string `json:"strong_areas"`
}

func (s *Server) handleRecordSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.RecordSession == nil {
		writeUnavailable(w)
		return
	}

	var req RecordSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	vars := mux.Vars(r)
	res, err := s.deps.RecordSession.Handle(r.Context(), command.RecordSessionCommand{
		UserID:      vars["userID"],
		TopicID:     vars["topicID"],
		Score:       req.Score,
		TimeSpent:   time.Duration(req.TimeSpentSeconds) * time.Second,
		WeakAreas:   req.WeakAreas,
		StrongAreas: req.StrongAreas,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"progress":          query.ToTopicProgressDTO(res.Progress, time.Now().UTC()),
		"mastery_changed":   res.MasteryChanged,
		"previous_level":    res.PreviousLevel,
		"archived_sessions": res.ArchivedSessions,
	})
}

func (s *Server) handleGetUserSummary(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetUserSummary == nil {
		writeUnavailable(w)
		return
	}
	summary, err := s.deps.GetUserSummary.Handle(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}

// ══════════════════════════════════════════════════════════════════════════════
// GOAL HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// CreateGoalRequest is the body of an achievement or mission assignment.
type CreateGoalRequest struct {
	Code      string    `json:"code"`
	Title     string    `json:"title"`
	Target    int       `json:"target"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GoalProgressRequest carries the new absolute progress of a goal.
type GoalProgressRequest struct {
	Progress int `json:"progress"`
}

// GoalResponse is the API view of an achievement or mission.
type GoalResponse struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Code            string     `json:"code"`
	Title           string     `json:"title"`
	Progress        int        `json:"progress"`
	Target          int        `json:"target"`
	Ratio           float64    `json:"ratio"`
	Completed       bool       `json:"completed"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	BecameCompleted bool       `json:"became_completed,omitempty"`
}

func achievementResponse(a *goal.Achievement) GoalResponse {
	return goalResponse(a.ID, a.UserID, a.Code, a.Title, a.Target)
}

func missionResponse(m *goal.Mission) GoalResponse {
	resp := goalResponse(m.ID, m.UserID, m.Code, m.Title, m.Target)
	expires := m.ExpiresAt
	resp.ExpiresAt = &expires
	return resp
}

func goalResponse(id, userID, code, title string, t goal.Target) GoalResponse {
	return GoalResponse{
		ID:          id,
		UserID:      userID,
		Code:        code,
		Title:       title,
		Progress:    t.Progress,
		Target:      t.Goal,
		Ratio:       t.Ratio(),
		Completed:   t.Completed,
		CompletedAt: t.CompletedAt,
	}
}

func (s *Server) handleCreateAchievement(w http.ResponseWriter, r *http.Request) {
	if s.deps.CreateGoal == nil {
		writeUnavailable(w)
		return
	}
	var req CreateGoalRequest
	if !decodeBody(w, r, &req) {
		return
	}

	a, err := s.deps.CreateGoal.CreateAchievement(r.Context(), createGoalCommand(mux.Vars(r)["userID"], req))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, achievementResponse(a))
}

func (s *Server) handleCreateMission(w http.ResponseWriter, r *http.Request) {
	if s.deps.CreateGoal == nil {
		writeUnavailable(w)
		return
	}
	var req CreateGoalRequest
	if !decodeBody(w, r, &req) {
		return
	}

	m, err := s.deps.CreateGoal.CreateMission(r.Context(), createGoalCommand(mux.Vars(r)["userID"], req))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, missionResponse(m))
}

func createGoalCommand(userID string, req CreateGoalRequest) command.CreateGoalCommand {
	return command.CreateGoalCommand{
		UserID:    userID,
		Code:      req.Code,
		Title:     req.Title,
		Target:    req.Target,
		ExpiresAt: req.ExpiresAt,
	}
}

func (s *Server) handleUpdateAchievement(w http.ResponseWriter, r *http.Request) {
	if s.deps.UpdateAchievement == nil {
		writeUnavailable(w)
		return
	}
	var req GoalProgressRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.deps.UpdateAchievement.Handle(r.Context(), command.UpdateGoalProgressCommand{
		GoalID:   mux.Vars(r)["goalID"],
		Progress: req.Progress,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	resp := achievementResponse(res.Goal)
	resp.BecameCompleted = res.BecameCompleted
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleUpdateMission(w http.ResponseWriter, r *http.Request) {
	if s.deps.UpdateMission == nil {
		writeUnavailable(w)
		return
	}
	var req GoalProgressRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.deps.UpdateMission.Handle(r.Context(), command.UpdateGoalProgressCommand{
		GoalID:   mux.Vars(r)["goalID"],
		Progress: req.Progress,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	resp := missionResponse(res.Goal)
	resp.BecameCompleted = res.BecameCompleted
	writeJSON(w, r, http.StatusOK, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// EntryResponse is the API view of a leaderboard entry.
type EntryResponse struct {
	UserID         string                 `json:"user_id"`
	Series         string                 `json:"series"`
	GlobalRank     int                    `json:"global_rank"`
	NationalRank   int                    `json:"national_rank"`
	RegionalRank   int                    `json:"regional_rank"`
	BadgeCount     int                    `json:"badge_count"`
	Streak         int                    `json:"streak"`
	LongestStreak  int                    `json:"longest_streak"`
	TotalPoints    int                    `json:"total_points"`
	TopPerformance bool                   `json:"top_performance"`
	MostImproved   bool                   `json:"most_improved"`
	History        []leaderboard.Snapshot `json:"history"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

func entryResponse(e *leaderboard.Entry) EntryResponse {
	return EntryResponse{
		UserID:         e.UserID,
		Series:         e.Series,
		GlobalRank:     e.GlobalRank,
		NationalRank:   e.NationalRank,
		RegionalRank:   e.RegionalRank,
		BadgeCount:     e.BadgeCount,
		Streak:         e.Streak,
		LongestStreak:  e.LongestStreak,
		TotalPoints:    e.TotalPoints,
		TopPerformance: e.TopPerformance,
		MostImproved:   e.MostImproved,
		History:        e.History,
		UpdatedAt:      e.UpdatedAt,
	}
}

// RankUpdateRequest carries optional rank and counter updates.
type RankUpdateRequest struct {
	NationalRank *int `json:"national_rank"`
	RegionalRank *int `json:"regional_rank"`
	GlobalRank   *int `json:"global_rank"`
	BadgeCount   *int `json:"badge_count"`
	Streak       *int `json:"streak"`
	TotalPoints  *int `json:"total_points"`
}

func (s *Server) handleGetRank(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetLeaderboardEntry == nil {
		writeUnavailable(w)
		return
	}
	e, err := s.deps.GetLeaderboardEntry.Handle(r.Context(), mux.Vars(r)["userID"], r.URL.Query().Get("series"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, entryResponse(e))
}

func (s *Server) handleUpdateRank(w http.ResponseWriter, r *http.Request) {
	if s.deps.UpdateRank == nil {
		writeUnavailable(w)
		return
	}
	var req RankUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	e, err := s.deps.UpdateRank.Handle(r.Context(), command.UpdateRankCommand{
		UserID: mux.Vars(r)["userID"],
		Series: r.URL.Query().Get("series"),
		Update: leaderboard.RankUpdate(req),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, entryResponse(e))
}

func (s *Server) handleGetTop(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetTop == nil {
		writeUnavailable(w)
		return
	}
	rows, err := s.deps.GetTop.Handle(r.Context(), r.URL.Query().Get("series"), getQueryParamInt(r, "limit", query.DefaultTopLimit))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	out := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		out[i] = map[string]interface{}{
			"user_id":      row.UserID,
			"global_rank":  row.GlobalRank,
			"total_points": row.TotalPoints,
		}
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	if s.deps.RecalculateRanks == nil {
		writeUnavailable(w)
		return
	}
	res, err := s.deps.RecalculateRanks.Handle(r.Context(), command.RecalculateRanksCommand{
		Series: r.URL.Query().Get("series"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"run_id":        res.RunID,
		"series":        res.Series,
		"updated_count": res.UpdatedCount,
		"duration_ms":   res.Duration.Milliseconds(),
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scheduler == nil {
		writeUnavailable(w)
		return
	}

	jobs := s.deps.Scheduler.ListJobs()
	out := make([]map[string]interface{}, len(jobs))
	for i, j := range jobs {
		out[i] = jobView(j)
	}

	m := s.deps.Scheduler.GetMetrics().Snapshot()
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"jobs": out,
		"metrics": map[string]interface{}{
			"total_executions":    m.TotalExecutions,
			"total_failures":      m.TotalFailures,
			"success_rate":        m.SuccessRate,
			"average_duration_ms": m.AverageDuration.Milliseconds(),
		},
	})
}

// handleGetJob reports one job with its runs still held in the history.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scheduler == nil {
		writeUnavailable(w)
		return
	}

	info, err := s.deps.Scheduler.GetJobInfo(mux.Vars(r)["name"])
	if errors.Is(err, scheduler.ErrJobNotFound) {
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	runs := make([]map[string]interface{}, 0)
	for _, res := range s.deps.Scheduler.GetHistory(0) {
		if res.JobName != info.Name {
			continue
		}
		run := map[string]interface{}{
			"started_at":  res.StartedAt,
			"duration_ms": res.Duration.Milliseconds(),
			"success":     res.Success,
			"manual":      res.Manual,
		}
		if res.Error != nil {
			run["error"] = res.Error.Error()
		}
		runs = append(runs, run)
	}

	view := jobView(*info)
	view["description"] = info.Description
	view["runs"] = runs
	writeJSON(w, r, http.StatusOK, view)
}

func jobView(j scheduler.JobInfo) map[string]interface{} {
	item := map[string]interface{}{
		"name":       j.Name,
		"schedule":   j.Schedule,
		"next_run":   j.NextRun,
		"run_count":  j.RunCount,
		"fail_count": j.FailCount,
	}
	if j.LastResult != nil {
		item["last_success"] = j.LastResult.Success
		item["last_run"] = j.LastResult.StartedAt
	}
	return item
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody decodes a JSON body, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeUnavailable(w http.ResponseWriter) {
	writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "This endpoint is not configured")
}

// writeDomainError maps domain error kinds to HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"request_id", getRequestID(r.Context()),
			"error", err,
		)
		writeJSONError(w, status, code, "Internal error")
		return
	}

	msg := err.Error()
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		msg = de.Message
	}
	writeJSONError(w, status, code, msg)
}

func statusFor(err error) (int, string) {
	switch {
	case shared.IsValidation(err):
		return http.StatusBadRequest, "validation_error"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, shared.ErrExpired):
		return http.StatusGone, "expired"
	case errors.Is(err, shared.ErrAlreadyCompleted):
		return http.StatusConflict, "already_completed"
	case shared.IsConflict(err):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
