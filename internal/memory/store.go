// Package memory is an in-process Store used by tests and by local runs
// without PostgreSQL.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
)

// Store keeps every table in maps guarded by one mutex.
type Store struct {
	mu sync.RWMutex

	users     map[string]domain.User
	prompts   map[string]domain.Prompt
	matches   map[string]domain.Match
	resources map[string][]domain.SubmittedResource
	evals     map[string][]domain.Evaluation
	models    map[string]domain.AIModel
	settings  map[string]string

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:     make(map[string]domain.User),
		prompts:   make(map[string]domain.Prompt),
		matches:   make(map[string]domain.Match),
		resources: make(map[string][]domain.SubmittedResource),
		evals:     make(map[string][]domain.Evaluation),
		models:    make(map[string]domain.AIModel),
		settings:  make(map[string]string),
		now:       time.Now,
	}
}

func (s *Store) UpsertUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.users[user.ID]; ok {
		user.CreatedAt = existing.CreatedAt
	} else {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	s.users[user.ID] = user
	return &user, nil
}

func (s *Store) GetUser(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &user, nil
}

// SavePrompt inserts or replaces a prompt. A blank id gets a fresh one.
func (s *Store) SavePrompt(_ context.Context, p domain.Prompt) (*domain.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.prompts[p.ID] = p
	return &p, nil
}

func (s *Store) GetPrompt(_ context.Context, promptID string) (*domain.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prompts[promptID]
	if !ok {
		return nil, domain.ErrPromptNotFound
	}
	return &p, nil
}

func (s *Store) ListPromptsByLevel(_ context.Context, level int, exclude []string) ([]domain.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	var out []domain.Prompt
	for _, p := range s.prompts {
		if p.Level != level {
			continue
		}
		if _, ok := skip[p.ID]; ok {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CountPrompts(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.prompts), nil
}

func (s *Store) PlayedPrompts(_ context.Context, userID string) ([]domain.PlayedPrompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := s.ownedBy(userID)
	sort.SliceStable(owned, func(i, j int) bool {
		return completedAt(owned[i]).After(completedAt(owned[j]))
	})

	out := make([]domain.PlayedPrompt, 0, len(owned))
	for _, m := range owned {
		out = append(out, domain.PlayedPrompt{PromptID: m.PromptID, Level: s.prompts[m.PromptID].Level})
	}
	return out, nil
}

func (s *Store) CreateMatch(_ context.Context, nm domain.NewMatch) (*domain.Match, []domain.SubmittedResource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if nm.UserID != nil && s.hasMatchForPrompt(*nm.UserID, nm.PromptID, "") {
		return nil, nil, domain.ErrPromptAlreadyCompleted
	}

	m := domain.Match{
		ID:          uuid.NewString(),
		UserID:      nm.UserID,
		PromptID:    nm.PromptID,
		IsAnonymous: nm.IsAnonymous,
		TimeElapsed: nm.TimeElapsed,
		StartedAt:   nm.StartedAt,
		CompletedAt: nm.CompletedAt,
	}
	s.matches[m.ID] = m

	now := s.now()
	resources := make([]domain.SubmittedResource, 0, len(nm.URLs))
	for _, u := range nm.URLs {
		resources = append(resources, domain.SubmittedResource{
			ID:        uuid.NewString(),
			MatchID:   m.ID,
			URL:       u,
			CreatedAt: now,
		})
	}
	s.resources[m.ID] = resources

	out := make([]domain.SubmittedResource, len(resources))
	copy(out, resources)
	return &m, out, nil
}

func (s *Store) GetMatch(_ context.Context, matchID string) (*domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.matches[matchID]
	if !ok {
		return nil, domain.ErrMatchNotFound
	}
	return &m, nil
}

func (s *Store) AssignMatchOwner(_ context.Context, matchID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[matchID]
	if !ok {
		return domain.ErrMatchNotFound
	}
	if m.UserID != nil && *m.UserID != userID {
		return domain.ErrMatchAlreadyOwned
	}
	if s.hasMatchForPrompt(userID, m.PromptID, matchID) {
		return domain.ErrPromptAlreadyCompleted
	}

	owner := userID
	m.UserID = &owner
	m.IsAnonymous = false
	s.matches[matchID] = m
	return nil
}

func (s *Store) HasMatchForPrompt(_ context.Context, userID, promptID, excludeMatchID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasMatchForPrompt(userID, promptID, excludeMatchID), nil
}

func (s *Store) ListResources(_ context.Context, matchID string) ([]domain.SubmittedResource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.SubmittedResource, len(s.resources[matchID]))
	copy(out, s.resources[matchID])
	return out, nil
}

func (s *Store) ListUserMatches(_ context.Context, userID string) ([]domain.MatchHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := s.ownedBy(userID)
	sort.SliceStable(owned, func(i, j int) bool {
		return owned[i].StartedAt.After(owned[j].StartedAt)
	})

	out := make([]domain.MatchHistoryEntry, 0, len(owned))
	for _, m := range owned {
		p := s.prompts[m.PromptID]
		out = append(out, domain.MatchHistoryEntry{
			ID:          m.ID,
			StartedAt:   m.StartedAt,
			CompletedAt: m.CompletedAt,
			BaseScore:   m.BaseScore,
			TimeElapsed: m.TimeElapsed,
			TimeBonus:   m.TimeBonus,
			PromptTitle: p.Title,
			PromptLevel: p.Level,
		})
	}
	return out, nil
}

func (s *Store) ListUnevaluatedMatches(_ context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []domain.Match
	for id, m := range s.matches {
		if m.EvaluatedAt == nil && len(s.resources[id]) > 0 && len(s.evals[id]) == 0 {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].StartedAt.Before(pending[j].StartedAt) })

	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	ids := make([]string, len(pending))
	for i, m := range pending {
		ids[i] = m.ID
	}
	return ids, nil
}

func (s *Store) ListEvaluations(_ context.Context, matchID string) ([]domain.EvaluationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	urls := make(map[string]string)
	for _, r := range s.resources[matchID] {
		urls[r.ID] = r.URL
	}

	out := make([]domain.EvaluationResult, 0, len(s.evals[matchID]))
	for _, e := range s.evals[matchID] {
		out = append(out, domain.EvaluationResult{
			ID:          e.ID,
			ResourceID:  e.ResourceID,
			URL:         urls[e.ResourceID],
			Score:       e.Score,
			Explanation: e.Explanation,
		})
	}
	return out, nil
}

func (s *Store) SaveEvaluation(_ context.Context, matchID string, evals []domain.Evaluation, base, bonus int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[matchID]
	if !ok {
		return false, domain.ErrMatchNotFound
	}
	if m.EvaluatedAt != nil || len(s.evals[matchID]) > 0 {
		return false, nil
	}

	now := s.now()
	m.BaseScore = base
	m.TimeBonus = bonus
	m.EvaluatedAt = &now
	s.matches[matchID] = m

	stored := make([]domain.Evaluation, len(evals))
	copy(stored, evals)
	s.evals[matchID] = stored
	return true, nil
}

// SetConfigValue stores an app_config entry.
func (s *Store) SetConfigValue(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func (s *Store) GetConfigValue(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings[key], nil
}

// SaveAIModel inserts or replaces a model row.
func (s *Store) SaveAIModel(_ context.Context, model domain.AIModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[model.ID] = model
	return nil
}

func (s *Store) GetAIModel(_ context.Context, modelID string) (*domain.AIModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.models[modelID]
	if !ok {
		return nil, domain.ErrModelNotFound
	}
	return &m, nil
}

func (s *Store) ListStandingRows(_ context.Context, includeMatchID string) ([]domain.StandingRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.Match, 0, len(s.matches))
	for _, m := range s.matches {
		owned := m.UserID != nil && !m.IsAnonymous
		if owned || (includeMatchID != "" && m.ID == includeMatchID) {
			matches = append(matches, m)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].StartedAt.Before(matches[j].StartedAt) })

	rows := make([]domain.StandingRow, 0, len(matches))
	for _, m := range matches {
		row := domain.StandingRow{
			MatchID:     m.ID,
			IsAnonymous: m.IsAnonymous,
			BaseScore:   int64(m.BaseScore),
			TimeBonus:   int64(m.TimeBonus),
		}
		if m.UserID != nil {
			row.UserID = *m.UserID
			row.Username = s.users[*m.UserID].Username
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// caller holds s.mu
func (s *Store) ownedBy(userID string) []domain.Match {
	var out []domain.Match
	for _, m := range s.matches {
		if m.OwnedBy(userID) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// caller holds s.mu
func (s *Store) hasMatchForPrompt(userID, promptID, excludeMatchID string) bool {
	for id, m := range s.matches {
		if id != excludeMatchID && m.PromptID == promptID && m.OwnedBy(userID) {
			return true
		}
	}
	return false
}

func completedAt(m domain.Match) time.Time {
	if m.CompletedAt != nil {
		return *m.CompletedAt
	}
	return m.StartedAt
}
