package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"filedesk/internal/account"
	"filedesk/internal/files"
)

// Memory is an in-process MetadataStore and account.Store.
type Memory struct {
	mu       sync.RWMutex
	nextID   int64
	files    map[int64]files.FileRecord
	names    map[string]int64
	nextUser int64
	users    map[string]account.User
	now      func() time.Time
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		files: make(map[int64]files.FileRecord),
		names: make(map[string]int64),
		users: make(map[string]account.User),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Insert(_ context.Context, rec *files.FileRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.names[rec.StoredFilename]; dup {
		return 0, fmt.Errorf("file %s: %w", rec.StoredFilename, ErrConflict)
	}
	m.nextID++
	rec.ID = m.nextID
	rec.UploadedAt = m.now()
	m.files[rec.ID] = *rec
	m.names[rec.StoredFilename] = rec.ID
	return rec.ID, nil
}

func (m *Memory) GetByID(_ context.Context, id int64) (*files.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.files[id]
	if !ok {
		return nil, files.ErrRecordNotFound
	}
	return &rec, nil
}

func (m *Memory) List(_ context.Context, f files.ListFilter) ([]files.FileRecord, error) {
	m.mu.RLock()
	out := []files.FileRecord{}
	for _, rec := range m.files {
		if f.Matches(&rec) {
			out = append(out, rec)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *Memory) DeleteByID(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.files[id]
	if !ok {
		return false, nil
	}
	delete(m.files, id)
	delete(m.names, rec.StoredFilename)
	return true, nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// CreateUser adds a user. The password must already be hashed, or be a
// legacy plaintext value.
func (m *Memory) CreateUser(_ context.Context, u *account.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.users[u.Username]; dup {
		return fmt.Errorf("user %s: %w", u.Username, ErrConflict)
	}
	m.nextUser++
	u.ID = m.nextUser
	u.Role = files.ParseRole(u.UserType)
	m.users[u.Username] = *u
	return nil
}

func (m *Memory) FindByUsername(_ context.Context, username string) (*account.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return nil, account.ErrUserNotFound
	}
	return &u, nil
}

func (m *Memory) UpdatePassword(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, u := range m.users {
		if u.ID == id {
			u.PasswordHash = hash
			m.users[name] = u
			return nil
		}
	}
	return account.ErrUserNotFound
}

func (m *Memory) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, u := range m.users {
		if u.ID == id {
			t := at
			u.LastLogin = &t
			m.users[name] = u
			return nil
		}
	}
	return account.ErrUserNotFound
}
