package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"tap-arena/internal/game"
	"tap-arena/internal/ledger"
	"tap-arena/internal/store"
)

type scoreKey struct {
	roundID string
	userID  string
}

// MemoryStore is an in-process stand-in for the Postgres store with the same
// row-locking behaviour: one exclusive lock per score row and per round row, held
// until commit or rollback, with waits bounded by LockTimeout.
type MemoryStore struct {
	LockTimeout time.Duration
	// FailBegin makes BeginTap fail, simulating an unavailable database.
	FailBegin error
	// SkipScoreCreate makes CreateScore a no-op so the relock finds nothing.
	SkipScoreCreate bool

	mu     sync.Mutex
	users  map[string]store.User
	rounds map[string]game.Round
	scores map[scoreKey]game.ParticipantScore
	locks  map[string]chan struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		LockTimeout: 2 * time.Second,
		users:       map[string]store.User{},
		rounds:      map[string]game.Round{},
		scores:      map[scoreKey]game.ParticipantScore{},
		locks:       map[string]chan struct{}{},
	}
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) EnsureUser(ctx context.Context, username, passwordHash string, role game.Role) (store.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, false, nil
		}
	}
	u := store.User{
		ID:           store.NewID(),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	m.users[u.ID] = u
	return u, true, nil
}

func (m *MemoryStore) GetUserByUsername(ctx context.Context, username string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

func (m *MemoryStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m *MemoryStore) CreateRound(ctx context.Context, start, end time.Time) (game.Round, error) {
	r := game.Round{
		ID:        store.NewID(),
		StartTime: start.UTC(),
		EndTime:   end.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	m.PutRound(r)
	return r, nil
}

// PutRound inserts or replaces a round as-is.
func (m *MemoryStore) PutRound(r game.Round) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds[r.ID] = r
}

func (m *MemoryStore) GetRound(ctx context.Context, id string) (game.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[id]
	if !ok {
		return game.Round{}, store.ErrNotFound
	}
	return r, nil
}

func (m *MemoryStore) ListRounds(ctx context.Context, limit, offset int) ([]game.Round, error) {
	m.mu.Lock()
	out := make([]game.Round, 0, len(m.rounds))
	for _, r := range m.rounds {
		out = append(out, r)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartTime.After(out[j].StartTime)
	})
	if offset >= len(out) {
		return []game.Round{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) GetParticipantScore(ctx context.Context, roundID, userID string) (game.ParticipantScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps, ok := m.scores[scoreKey{roundID, userID}]
	if !ok {
		return game.ParticipantScore{}, store.ErrNotFound
	}
	return ps, nil
}

// Scores returns every committed score row of a round.
func (m *MemoryStore) Scores(roundID string) []game.ParticipantScore {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []game.ParticipantScore
	for k, ps := range m.scores {
		if k.roundID == roundID {
			out = append(out, ps)
		}
	}
	return out
}

func (m *MemoryStore) RoundWinner(ctx context.Context, roundID string) (store.RoundWinner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *game.ParticipantScore
	for k, ps := range m.scores {
		if k.roundID != roundID || ps.Score <= 0 {
			continue
		}
		if best == nil || ps.Score > best.Score || (ps.Score == best.Score && ps.UpdatedAt.Before(best.UpdatedAt)) {
			cp := ps
			best = &cp
		}
	}
	if best == nil {
		return store.RoundWinner{}, store.ErrNotFound
	}
	return store.RoundWinner{UserID: best.UserID, Username: m.users[best.UserID].Username, Score: best.Score}, nil
}

func (m *MemoryStore) BeginTap(ctx context.Context) (ledger.Tx, error) {
	if m.FailBegin != nil {
		return nil, m.FailBegin
	}
	return &memTx{
		m:      m,
		held:   map[string]chan struct{}{},
		scores: map[scoreKey]game.ParticipantScore{},
		totals: map[string]int64{},
	}, nil
}

func (m *MemoryStore) lockChan(name string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.locks[name]
	if !ok {
		ch = make(chan struct{}, 1)
		m.locks[name] = ch
	}
	return ch
}

type memTx struct {
	m       *MemoryStore
	held    map[string]chan struct{}
	created []scoreKey
	scores  map[scoreKey]game.ParticipantScore
	totals  map[string]int64
	done    bool
}

func (t *memTx) lock(ctx context.Context, name string) error {
	if _, ok := t.held[name]; ok {
		return nil
	}
	ch := t.m.lockChan(name)
	timer := time.NewTimer(t.m.LockTimeout)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		t.held[name] = ch
		return nil
	case <-timer.C:
		return ledger.ErrLockAcquisitionFailed
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.Join(ledger.ErrLockAcquisitionFailed, ctx.Err())
		}
		return ctx.Err()
	}
}

func (t *memTx) LockScore(ctx context.Context, roundID, userID string) (*game.ParticipantScore, error) {
	key := scoreKey{roundID, userID}
	if err := t.lock(ctx, "score:"+roundID+"/"+userID); err != nil {
		return nil, err
	}
	if ps, ok := t.scores[key]; ok {
		return &ps, nil
	}
	t.m.mu.Lock()
	ps, ok := t.m.scores[key]
	t.m.mu.Unlock()
	if !ok {
		return nil, ledger.ErrScoreNotFound
	}
	return &ps, nil
}

func (t *memTx) CreateScore(ctx context.Context, roundID, userID string) error {
	if t.m.SkipScoreCreate {
		return nil
	}
	key := scoreKey{roundID, userID}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if _, ok := t.m.scores[key]; ok {
		return nil
	}
	t.m.scores[key] = game.ParticipantScore{
		ID:        store.NewID(),
		RoundID:   roundID,
		UserID:    userID,
		UpdatedAt: time.Now().UTC(),
	}
	t.created = append(t.created, key)
	return nil
}

func (t *memTx) SaveScore(ctx context.Context, score *game.ParticipantScore) error {
	score.UpdatedAt = time.Now().UTC()
	t.scores[scoreKey{score.RoundID, score.UserID}] = *score
	return nil
}

func (t *memTx) AddRoundTotal(ctx context.Context, roundID string, points int64) (int64, error) {
	if err := t.lock(ctx, "round:"+roundID); err != nil {
		return 0, err
	}
	total, err := t.RoundTotal(ctx, roundID)
	if err != nil {
		return 0, err
	}
	total += points
	t.totals[roundID] = total
	return total, nil
}

func (t *memTx) RoundTotal(ctx context.Context, roundID string) (int64, error) {
	if total, ok := t.totals[roundID]; ok {
		return total, nil
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	r, ok := t.m.rounds[roundID]
	if !ok {
		return 0, store.ErrNotFound
	}
	return r.TotalScore, nil
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.m.mu.Lock()
	for k, ps := range t.scores {
		t.m.scores[k] = ps
	}
	for id, total := range t.totals {
		r := t.m.rounds[id]
		r.TotalScore = total
		t.m.rounds[id] = r
	}
	t.m.mu.Unlock()
	t.finish()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.m.mu.Lock()
	for _, k := range t.created {
		delete(t.m.scores, k)
	}
	t.m.mu.Unlock()
	t.finish()
	return nil
}

func (t *memTx) finish() {
	t.done = true
	for _, ch := range t.held {
		<-ch
	}
	t.held = nil
}
