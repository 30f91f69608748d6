package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process implementation of the three stores, used by tests
// and local development. A single mutex keeps the maps consistent.
type Memory struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]User
	tokens   map[string]memToken
	messages []Message
}

type memToken struct {
	userID    int64
	expiresAt time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		nextID: 1,
		users:  make(map[int64]User),
		tokens: make(map[string]memToken),
	}
}

func (m *Memory) Create(_ context.Context, username, email, passwordHash string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == username || u.Email == email {
			return User{}, ErrDuplicate
		}
	}

	now := time.Now()
	u := User{
		ID:           m.nextID,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		LastSeen:     now,
		IsActive:     true,
	}
	m.users[u.ID] = u
	m.nextID++
	return u, nil
}

func (m *Memory) GetByID(_ context.Context, id int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) GetByUsername(_ context.Context, username string) (User, error) {
	return m.findUser(func(u User) bool { return u.Username == username })
}

func (m *Memory) GetByEmail(_ context.Context, email string) (User, error) {
	return m.findUser(func(u User) bool { return u.Email == email })
}

func (m *Memory) findUser(match func(User) bool) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *Memory) ListOthers(_ context.Context, id int64) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var users []User
	for _, u := range m.users {
		if u.ID != id {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (m *Memory) UpdateProfile(_ context.Context, id int64, email, imageURL *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	if email != nil {
		u.Email = *email
	}
	if imageURL != nil {
		u.ImageURL = *imageURL
	}
	m.users[id] = u
	return nil
}

func (m *Memory) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	m.users[id] = u
	return nil
}

func (m *Memory) SetActive(_ context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsActive = active
	m.users[id] = u
	return nil
}

func (m *Memory) TouchLastSeen(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.LastSeen = time.Now()
	m.users[id] = u
	return nil
}

func (m *Memory) Save(_ context.Context, userID int64, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = memToken{userID: userID, expiresAt: expiresAt}
	return nil
}

func (m *Memory) Delete(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tokens[token]
	delete(m.tokens, token)
	return ok, nil
}

func (m *Memory) Verify(_ context.Context, token string, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[token]
	if !ok || t.userID != userID {
		return false, nil
	}
	return t.expiresAt.After(time.Now()), nil
}

func (m *Memory) CreateMessage(ctx context.Context, authorID int64, content string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	username := ""
	if u, ok := m.users[authorID]; ok {
		username = u.Username
	}
	m.messages = append(m.messages, Message{
		ID:        int64(len(m.messages) + 1),
		AuthorID:  authorID,
		Username:  username,
		Content:   content,
		Timestamp: at,
	})
	return nil
}

func (m *Memory) ListOldestFirst(_ context.Context) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	messages := make([]Message, len(m.messages))
	copy(messages, m.messages)
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
	return messages, nil
}

// MemoryMessages adapts Memory to the MessageStore interface (its Create
// method name collides with UserStore's).
type MemoryMessages struct{ *Memory }

func (m MemoryMessages) Create(ctx context.Context, authorID int64, content string, at time.Time) error {
	return m.CreateMessage(ctx, authorID, content, at)
}
