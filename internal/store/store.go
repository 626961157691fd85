package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldsignals/disaster-feed-sync/internal/domain"
	"github.com/fieldsignals/disaster-feed-sync/internal/observability"
)

// Blob keys. KeyTriageCache is owned by the classification cache but listed
// here so Purge clears it with everything else.
const (
	KeyIncidents     = "incidents"
	KeyUser          = "user"
	KeyNotifications = "notifications"
	KeyLastSync      = "last_sync"
	KeyTriageCache   = "triage_cache"
)

// ErrNotFound is returned when a resolution targets an unknown incident ID.
var ErrNotFound = errors.New("incident not found")

// ErrNoUser is returned when resolution is attempted without an active user;
// the removal does not happen because the transaction cannot complete.
var ErrNoUser = errors.New("no active user")

// Store is the shared, persisted incident collection plus the session state
// that travels with it (user, notifications, log journal, last-sync marker).
//
// Ordering is insertion order, newest-first: inserts prepend and records are
// never re-sorted by timestamp. Every mutation persists the full state; a
// failed persist is logged and swallowed so the in-memory state stays
// authoritative for the session.
type Store struct {
	mu      sync.Mutex
	blobs   BlobStore
	logger  *slog.Logger
	metrics *observability.Metrics

	incidents     []domain.Incident
	user          *domain.User
	notifications []domain.Notification
	logs          []domain.LogEntry
	lastSync      time.Time
	hydrated      bool
}

// New creates an empty Store backed by the given blob store.
func New(blobs BlobStore, logger *slog.Logger, metrics *observability.Metrics) *Store {
	return &Store{
		blobs:   blobs,
		logger:  logger,
		metrics: metrics,
	}
}

// Load hydrates the store from persisted blobs. Absent or corrupt blobs yield
// empty state, never an error.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.incidents = loadJSON[[]domain.Incident](s, KeyIncidents)
	s.notifications = loadJSON[[]domain.Notification](s, KeyNotifications)

	if u := loadJSON[*domain.User](s, KeyUser); u != nil {
		s.user = u
	}
	if data, err := s.blobs.Load(KeyLastSync); err == nil && len(data) > 0 {
		if millis, err := strconv.ParseInt(string(data), 10, 64); err == nil {
			s.lastSync = time.UnixMilli(millis)
		}
	}

	s.hydrated = true
	s.metrics.IncidentStoreSize.Set(float64(len(s.incidents)))
	s.logger.Info("store hydrated",
		"incidents", len(s.incidents),
		"notifications", len(s.notifications),
		"has_user", s.user != nil,
	)
}

// loadJSON reads and decodes one blob, treating absence and corruption as the
// zero value.
func loadJSON[T any](s *Store, key string) T {
	var out T
	data, err := s.blobs.Load(key)
	if err != nil || len(data) == 0 {
		if err != nil {
			s.logger.Warn("blob load failed, starting empty", "key", key, "error", err)
		}
		return out
	}
	if err := json.Unmarshal(data, &out); err != nil {
		s.logger.Warn("blob corrupt, starting empty", "key", key, "error", err)
		var zero T
		return zero
	}
	return out
}

// CheckReadiness reports whether the store has been hydrated.
func (s *Store) CheckReadiness() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hydrated {
		return errors.New("store not hydrated yet")
	}
	return nil
}

// Incidents returns a copy of the ordered incident list, newest-first.
func (s *Store) Incidents() []domain.Incident {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Incident, len(s.incidents))
	copy(out, s.incidents)
	return out
}

// Merge prepends candidates whose IDs are not yet present, preserving the
// candidates' relative order. Duplicates are skipped without error. Returns
// the records actually inserted.
func (s *Store) Merge(candidates []domain.Incident) []domain.Incident {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[string]struct{}, len(s.incidents))
	for _, inc := range s.incidents {
		existing[inc.ID] = struct{}{}
	}

	fresh := make([]domain.Incident, 0, len(candidates))
	for _, c := range candidates {
		if _, dup := existing[c.ID]; dup {
			s.metrics.DuplicatesSkipped.Inc()
			continue
		}
		existing[c.ID] = struct{}{}
		fresh = append(fresh, c)
	}

	if len(fresh) == 0 {
		return nil
	}

	s.incidents = append(append([]domain.Incident{}, fresh...), s.incidents...)
	s.metrics.IncidentsMerged.Add(float64(len(fresh)))
	s.metrics.IncidentStoreSize.Set(float64(len(s.incidents)))

	for _, inc := range fresh {
		if inc.Status == domain.TriageRed {
			s.addNotificationLocked(domain.Notification{
				Title:      "RED signal detected",
				Message:    inc.Text,
				Type:       domain.LogAlert,
				IncidentID: inc.ID,
			})
		}
	}

	s.persistLocked()
	return fresh
}

// Insert adds a single incident (manual or voice injection) through the same
// dedup contract as Merge and emits the creation log line.
func (s *Store) Insert(inc domain.Incident) bool {
	inserted := s.Merge([]domain.Incident{inc})
	if len(inserted) == 0 {
		return false
	}
	s.AddLog(fmt.Sprintf("Signal %s secured.", shortID(inc.ID)), domain.LogAlert)
	return true
}

// Resolve removes the incident and credits the active user in one logical
// transaction: either the record is removed and the user updated, or nothing
// changes.
func (s *Store) Resolve(id string) (domain.Incident, error) {
	s.mu.Lock()

	idx := -1
	for i, inc := range s.incidents {
		if inc.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return domain.Incident{}, ErrNotFound
	}
	if s.user == nil {
		s.mu.Unlock()
		return domain.Incident{}, ErrNoUser
	}

	resolved := s.incidents[idx]
	s.incidents = append(s.incidents[:idx], s.incidents[idx+1:]...)
	s.user.SolvedIncidents = append(s.user.SolvedIncidents, resolved.ID)
	s.user.TotalRiskMitigated += resolved.RiskScore

	s.metrics.IncidentsResolved.Inc()
	s.metrics.IncidentStoreSize.Set(float64(len(s.incidents)))
	s.addNotificationLocked(domain.Notification{
		Title:      "Threat neutralized",
		Message:    resolved.Text,
		Type:       domain.LogSuccess,
		IncidentID: resolved.ID,
	})
	s.persistLocked()
	s.mu.Unlock()

	s.AddLog(fmt.Sprintf("Threat %s neutralized.", id), domain.LogSuccess)
	return resolved, nil
}

// User returns a copy of the active user, or nil when logged out.
func (s *Store) User() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	u.SolvedIncidents = append([]string{}, s.user.SolvedIncidents...)
	return &u
}

// SetUser installs the active user and persists.
func (s *Store) SetUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &u
	s.persistLocked()
}

// AddLog appends one journal entry. The journal is session-scoped and not
// persisted.
func (s *Store) AddLog(message string, level domain.LogLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, domain.LogEntry{
		ID:        uuid.NewString()[:8],
		Timestamp: domain.NowMillis(),
		Message:   message,
		Level:     level,
	})
}

// Logs returns a copy of the session log journal, oldest-first.
func (s *Store) Logs() []domain.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.LogEntry, len(s.logs))
	copy(out, s.logs)
	return out
}

// Notifications returns a copy of the notification list, newest-first.
func (s *Store) Notifications() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// LastSync reports when the last sync cycle completed (zero if never).
func (s *Store) LastSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}

// TouchLastSync records a completed sync cycle and persists the marker.
func (s *Store) TouchLastSync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSync = domain.Now()
	s.persistLocked()
}

// Purge clears all persisted keys and resets in-memory state. Used by the
// logout teardown path.
func (s *Store) Purge() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, key := range []string{KeyIncidents, KeyUser, KeyNotifications, KeyLastSync, KeyTriageCache} {
		if err := s.blobs.Delete(key); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.incidents = nil
	s.user = nil
	s.notifications = nil
	s.logs = nil
	s.lastSync = time.Time{}
	s.metrics.IncidentStoreSize.Set(0)
	return firstErr
}

func (s *Store) addNotificationLocked(n domain.Notification) {
	n.ID = uuid.NewString()[:8]
	n.Timestamp = domain.NowMillis()
	s.notifications = append([]domain.Notification{n}, s.notifications...)
}

// persistLocked writes the full state. Write failures are counted and logged
// but never surfaced; the session continues in memory.
func (s *Store) persistLocked() {
	save := func(key string, v any) {
		data, err := json.Marshal(v)
		if err == nil {
			err = s.blobs.Save(key, data)
		}
		if err != nil {
			s.metrics.PersistenceErrors.Inc()
			s.logger.Warn("persist failed", "key", key, "error", err)
		}
	}

	save(KeyIncidents, s.incidents)
	save(KeyNotifications, s.notifications)
	if s.user != nil {
		save(KeyUser, s.user)
	}
	if err := s.blobs.Save(KeyLastSync, []byte(strconv.FormatInt(domain.NowMillis(), 10))); err != nil {
		s.metrics.PersistenceErrors.Inc()
		s.logger.Warn("persist failed", "key", KeyLastSync, "error", err)
	}
}

// shortID trims an incident ID down to its disambiguator for log lines.
func shortID(id string) string {
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == '-' {
			return id[i+1:]
		}
	}
	return id
}
