package session

import (
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// ErrInvalidID is returned for session ids that cannot be used in a
// collection name.
var ErrInvalidID = errors.New("invalid session id")

var idPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// Binding ties a session to the collection holding its current upload.
type Binding struct {
	SessionID    string
	CollectionID string
	Filename     string
}

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

// ValidateID checks a client supplied session id.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return ErrInvalidID
	}
	return nil
}

func newSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// State is the per-client view of a session: the most recent filename and
// the collection it was assigned. One State lives for one websocket
// connection, one terminal session, or one API session id.
type State struct {
	mu         sync.Mutex
	id         string
	filename   string
	collection string
	ready      bool
	suffix     func() string
}

func NewState(id string) *State {
	if id == "" {
		id = NewID()
	}
	return &State{id: id, suffix: newSuffix}
}

func (s *State) ID() string {
	return s.id
}

// Observe records an incoming upload. A filename different from the last
// one is a new-file event: it rotates the collection id and the new
// collection is not queryable until MarkReady. fresh reports the rotation.
func (s *State) Observe(filename string) (b Binding, fresh bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collection == "" || filename != s.filename {
		s.filename = filename
		s.collection = s.id + "_" + s.suffix()
		s.ready = false
		fresh = true
	}
	return s.binding(), fresh
}

// MarkReady flags b's collection as holding data. It is a no-op when a
// newer upload already replaced b.
func (s *State) MarkReady(b Binding) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.CollectionID == s.collection {
		s.ready = true
	}
}

// Current returns the binding to query. ok is false until at least one
// ingestion into the current collection succeeded.
func (s *State) Current() (b Binding, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return Binding{SessionID: s.id}, false
	}
	return s.binding(), true
}

func (s *State) binding() Binding {
	return Binding{SessionID: s.id, CollectionID: s.collection, Filename: s.filename}
}

// Manager holds States for clients that identify themselves by session id
// across requests. Entries expire after ttl of inactivity; zero keeps them
// for the process lifetime.
type Manager struct {
	mu     sync.Mutex
	states *cache.Cache
	ttl    time.Duration
}

func NewManager(ttl time.Duration) *Manager {
	expiration := ttl
	cleanup := ttl
	if ttl <= 0 {
		expiration = cache.NoExpiration
		cleanup = 0
	}
	return &Manager{
		states: cache.New(expiration, cleanup),
		ttl:    expiration,
	}
}

// Get returns the State for id, creating it on first use. An empty id
// starts a new session.
func (m *Manager) Get(id string) (*State, error) {
	if id == "" {
		id = NewID()
	} else if err := ValidateID(id); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.states.Get(id); ok {
		st := v.(*State)
		m.states.Set(id, st, m.ttl)
		return st, nil
	}

	st := NewState(id)
	m.states.Set(id, st, m.ttl)
	return st, nil
}

// Lookup returns an existing State without creating one.
func (m *Manager) Lookup(id string) (*State, bool) {
	if ValidateID(id) != nil {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.states.Get(id)
	if !ok {
		return nil, false
	}
	m.states.Set(id, v, m.ttl)
	return v.(*State), true
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	return m.states.ItemCount()
}
