package stubserver

import (
	"sync"
	"time"

	"counselgo/client/internal/models"
)

// meetingRecord — зустріч плюс живий стан сесії, який не входить у публічну
// модель.
type meetingRecord struct {
	models.Meeting
	ClientJoined    bool
	CounselorJoined bool
	GraceEnd        *time.Time
	GraceRole       string
	Rating          *models.RateRequest
}

func (r *meetingRecord) joined(role string) bool {
	if role == models.RoleCounselor {
		return r.CounselorJoined
	}
	return r.ClientJoined
}

func (r *meetingRecord) setJoined(role string, joined bool) {
	if role == models.RoleCounselor {
		r.CounselorJoined = joined
		return
	}
	r.ClientJoined = joined
}

// memoryStore keeps every meeting in process memory. Mutations happen under
// the store lock; callers receive copies of the public model.
type memoryStore struct {
	mu       sync.Mutex
	meetings map[string]*meetingRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{meetings: make(map[string]*meetingRecord)}
}

func (s *memoryStore) put(rec *meetingRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meetings[rec.ID] = rec
}

// update застосовує fn під замком та повертає копію публічної моделі.
func (s *memoryStore) update(id string, fn func(*meetingRecord) error) (*models.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.meetings[id]
	if !ok {
		return nil, errMeetingNotFound
	}
	if err := fn(rec); err != nil {
		return nil, err
	}
	rec.UpdatedAt = time.Now()
	meeting := rec.Meeting
	return &meeting, nil
}

func (s *memoryStore) get(id string) (*meetingRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.meetings[id]
	if !ok {
		return nil, false
	}
	clone := *rec
	return &clone, true
}

// find повертає копії записів, що проходять фільтр.
func (s *memoryStore) find(match func(*meetingRecord) bool) []meetingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []meetingRecord
	for _, rec := range s.meetings {
		if match(rec) {
			out = append(out, *rec)
		}
	}
	return out
}

// activeFor знаходить нетермінальну зустріч користувача в заданій ролі.
func (s *memoryStore) activeFor(userID, role string) (*meetingRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.meetings {
		if models.Terminal(rec.Status) {
			continue
		}
		if role == models.RoleCounselor && rec.CounselorID == userID {
			clone := *rec
			return &clone, true
		}
		if role == models.RoleClient && rec.ClientID == userID {
			clone := *rec
			return &clone, true
		}
	}
	return nil, false
}

// slotTaken перевіряє, чи слот консультанта вже зайнято живою зустріччю.
func (s *memoryStore) slotTaken(counselorID, date, timeOfDay, exceptID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slotTakenLocked(counselorID, date, timeOfDay, exceptID)
}

// slotTakenLocked — варіант для викликів зсередини update, коли замок
// уже тримається.
func (s *memoryStore) slotTakenLocked(counselorID, date, timeOfDay, exceptID string) bool {
	for _, rec := range s.meetings {
		if rec.ID == exceptID || models.Terminal(rec.Status) {
			continue
		}
		if rec.CounselorID == counselorID && rec.MeetingDate == date && rec.MeetingTime == timeOfDay {
			return true
		}
	}
	return false
}
