package services

import (
	"context"
	"fmt"
	"sync"

	"lesson-booking/internal/status"
	"lesson-booking/internal/store"
	"lesson-booking/models"
)

// memStore is an in-memory Store for the service tests. The guarded
// update checks its precondition under the same lock that commits the
// write, mirroring the single conditional UPDATE of the real store, so
// the concurrency tests exercise the actual race the services defend
// against.
type memStore struct {
	mu      sync.Mutex
	txMu    sync.Mutex
	lessons map[string]*models.Lesson
	orders  map[string]*models.Order
	users   map[string]*models.User
	seq     int

	// forcedConflicts[id] makes the next n guarded writes on a lesson
	// report a lost race regardless of the stored state.
	forcedConflicts map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		lessons:         map[string]*models.Lesson{},
		orders:          map[string]*models.Order{},
		users:           map[string]*models.User{},
		forcedConflicts: map[string]int{},
	}
}

func (m *memStore) addUser(email string) {
	m.users[email] = &models.User{ID: email, Email: email}
}

func (m *memStore) addLesson(l *models.Lesson) *models.Lesson {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == "" {
		m.seq++
		l.ID = fmt.Sprintf("lesson%d", m.seq)
	}
	if l.Participants == nil {
		l.Participants = []models.Participant{}
	}
	m.lessons[l.ID] = l.Clone()
	return l
}

func (m *memStore) forceConflicts(lessonID string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forcedConflicts[lessonID] = n
}

func (m *memStore) lesson(id string) *models.Lesson {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lessons[id].Clone()
}

func (m *memStore) FindLesson(ctx context.Context, id string) (*models.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lessons[id]
	if !ok {
		return nil, status.NotFound("lesson %s", id)
	}
	return l.Clone(), nil
}

func (m *memStore) FindLessons(ctx context.Context) ([]*models.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Lesson, 0, len(m.lessons))
	for _, l := range m.lessons {
		out = append(out, l.Clone())
	}
	return out, nil
}

func (m *memStore) FindLessonsByOwner(ctx context.Context, email string) ([]*models.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Lesson{}
	for _, l := range m.lessons {
		if l.CreatedBy == email {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

func (m *memStore) FindLessonsByParticipant(ctx context.Context, email string) ([]*models.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Lesson{}
	for _, l := range m.lessons {
		if l.ParticipantIndex(email) >= 0 {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

func (m *memStore) FindDuplicateLesson(ctx context.Context, l *models.Lesson) (*models.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.lessons {
		if existing.Name == l.Name && existing.Topic == l.Topic && existing.Location == l.Location &&
			existing.Capacity == l.Capacity && existing.Price == l.Price && existing.Image == l.Image {
			return existing.Clone(), nil
		}
	}
	return nil, status.NotFound("no duplicate of lesson %q", l.Name)
}

func (m *memStore) InsertLesson(ctx context.Context, l *models.Lesson) (*models.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	created := l.Clone()
	created.ID = fmt.Sprintf("lesson%d", m.seq)
	m.lessons[created.ID] = created.Clone()
	return created, nil
}

func (m *memStore) UpdateLessonGuarded(ctx context.Context, l *models.Lesson, expect store.Expect) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n := m.forcedConflicts[l.ID]; n > 0 {
		m.forcedConflicts[l.ID] = n - 1
		return false, nil
	}

	cur, ok := m.lessons[l.ID]
	if !ok {
		return false, nil
	}
	if cur.Capacity != expect.Capacity || cur.AvailableSeats != expect.AvailableSeats ||
		cur.SeatRevision != expect.Revision {
		return false, nil
	}

	l.SeatRevision = expect.Revision + 1
	m.lessons[l.ID] = l.Clone()
	return true, nil
}

func (m *memStore) DeleteLesson(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lessons[id]; !ok {
		return status.NotFound("lesson %s", id)
	}
	delete(m.lessons, id)
	return nil
}

func (m *memStore) InsertOrder(ctx context.Context, o *models.Order) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	created := *o
	created.ID = fmt.Sprintf("order%d", m.seq)
	created.Lessons = make([]models.OrderLesson, len(o.Lessons))
	copy(created.Lessons, o.Lessons)
	stored := created
	m.orders[created.ID] = &stored
	return &created, nil
}

func (m *memStore) FindOrder(ctx context.Context, id string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, status.NotFound("order %s", id)
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) FindOrders(ctx context.Context) ([]*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Order, 0, len(m.orders))
	for _, o := range m.orders {
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, status.NotFound("user %s", email)
	}
	cp := *u
	return &cp, nil
}

// WithTransaction serializes transactions and restores a snapshot when
// fn fails, giving the tests real rollback semantics.
func (m *memStore) WithTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapLessons := make(map[string]*models.Lesson, len(m.lessons))
	for id, l := range m.lessons {
		snapLessons[id] = l.Clone()
	}
	snapOrders := make(map[string]*models.Order, len(m.orders))
	for id, o := range m.orders {
		cp := *o
		snapOrders[id] = &cp
	}
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.lessons = snapLessons
		m.orders = snapOrders
		m.mu.Unlock()
		return err
	}
	return nil
}
