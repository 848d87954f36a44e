// Package memory provides in-process implementations of the repository ports.
// They back tests and single-instance deployments without PostgreSQL. Every
// read returns a copy and every mutation runs under the store mutex, which
// gives the same atomic read-modify-write the SQL adapters provide.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/studyquest/progress-engine/internal/domain/progress"
	"github.com/studyquest/progress-engine/internal/domain/shared"
)

type topicKey struct {
	userID  string
	topicID string
}

// ProgressRepository is an in-memory progress.Repository.
type ProgressRepository struct {
	mu      sync.Mutex
	records map[topicKey]*progress.TopicProgress
}

// NewProgressRepository creates an empty repository.
func NewProgressRepository() *ProgressRepository {
	return &ProgressRepository{records: make(map[topicKey]*progress.TopicProgress)}
}

// Get implements progress.Repository.
func (r *ProgressRepository) Get(ctx context.Context, userID, topicID string) (*progress.TopicProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.records[topicKey{userID, topicID}]
	if !ok {
		return nil, shared.ErrTopicProgressNotFound
	}
	return cloneTopic(p), nil
}

// ListByUser implements progress.Repository.
func (r *ProgressRepository) ListByUser(ctx context.Context, userID string) ([]*progress.TopicProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*progress.TopicProgress, 0)
	for k, p := range r.records {
		if k.userID == userID {
			out = append(out, cloneTopic(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TopicID < out[j].TopicID })
	return out, nil
}

// Upsert implements progress.Repository.
func (r *ProgressRepository) Upsert(ctx context.Context, userID, topicID string, mutate func(p *progress.TopicProgress) error) (*progress.TopicProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := topicKey{userID, topicID}
	var working *progress.TopicProgress
	if existing, ok := r.records[key]; ok {
		working = cloneTopic(existing)
	} else {
		working = progress.NewTopicProgress(userID, topicID, time.Time{})
	}

	if err := mutate(working); err != nil {
		return nil, err
	}

	r.records[key] = working
	return cloneTopic(working), nil
}

func cloneTopic(p *progress.TopicProgress) *progress.TopicProgress {
	c := *p
	c.PracticeSessions = append([]progress.PracticeSession(nil), p.PracticeSessions...)
	c.WeakAreas = append(progress.LabelSet(nil), p.WeakAreas...)
	c.StrongAreas = append(progress.LabelSet(nil), p.StrongAreas...)
	if p.LastStudied != nil {
		t := *p.LastStudied
		c.LastStudied = &t
	}
	return &c
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION ARCHIVE
// ══════════════════════════════════════════════════════════════════════════════

// SessionArchive is an in-memory progress.SessionArchive.
type SessionArchive struct {
	mu       sync.Mutex
	sessions map[topicKey][]progress.PracticeSession
}

// NewSessionArchive creates an empty archive.
func NewSessionArchive() *SessionArchive {
	return &SessionArchive{sessions: make(map[topicKey][]progress.PracticeSession)}
}

// Append implements progress.SessionArchive. Sessions already archived
// under the same (date, seq) are skipped.
func (a *SessionArchive) Append(ctx context.Context, userID, topicID string, sessions []progress.PracticeSession) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := topicKey{userID, topicID}
	existing := a.sessions[key]
	for _, s := range sessions {
		dup := false
		for _, e := range existing {
			if e.Seq == s.Seq && e.Date.Equal(s.Date) {
				dup = true
				break
			}
		}
		if !dup {
			existing = append(existing, s)
		}
	}
	sort.SliceStable(existing, func(i, j int) bool {
		if !existing[i].Date.Equal(existing[j].Date) {
			return existing[i].Date.Before(existing[j].Date)
		}
		return existing[i].Seq < existing[j].Seq
	})
	a.sessions[key] = existing
	return nil
}

// List implements progress.SessionArchive.
func (a *SessionArchive) List(ctx context.Context, userID, topicID string) ([]progress.PracticeSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]progress.PracticeSession(nil), a.sessions[topicKey{userID, topicID}]...), nil
}
