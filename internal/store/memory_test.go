package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryUsers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	alice, err := m.Create(ctx, "alice", "alice@example.com", "hash-a")
	require.NoError(t, err)
	require.Equal(t, int64(1), alice.ID)
	require.True(t, alice.IsActive)

	_, err = m.Create(ctx, "alice", "other@example.com", "hash-b")
	require.ErrorIs(t, err, ErrDuplicate)
	_, err = m.Create(ctx, "other", "alice@example.com", "hash-b")
	require.ErrorIs(t, err, ErrDuplicate)

	got, err := m.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", got.Username)

	got, err = m.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, alice.ID, got.ID)

	got, err = m.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, alice.ID, got.ID)

	_, err = m.GetByID(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = m.GetByUsername(ctx, "nobody")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryListOthers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	alice, err := m.Create(ctx, "alice", "alice@example.com", "h")
	require.NoError(t, err)
	_, err = m.Create(ctx, "carol", "carol@example.com", "h")
	require.NoError(t, err)
	_, err = m.Create(ctx, "bob", "bob@example.com", "h")
	require.NoError(t, err)

	others, err := m.ListOthers(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, others, 2)
	require.Equal(t, "bob", others[0].Username)
	require.Equal(t, "carol", others[1].Username)
}

func TestMemoryUpdateProfile(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	alice, err := m.Create(ctx, "alice", "alice@example.com", "h")
	require.NoError(t, err)

	email := "new@example.com"
	image := "http://minio/parley-uploads/a.png"
	require.NoError(t, m.UpdateProfile(ctx, alice.ID, &email, &image))

	got, err := m.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, "new@example.com", got.Email)
	require.Equal(t, image, got.ImageURL)

	// nil fields leave the stored values untouched
	require.NoError(t, m.UpdateProfile(ctx, alice.ID, nil, nil))
	got, err = m.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, "new@example.com", got.Email)

	require.ErrorIs(t, m.UpdateProfile(ctx, 999, &email, nil), ErrNotFound)
}

func TestMemoryTokens(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Save(ctx, 1, "tok-1", time.Now().Add(time.Hour)))

	ok, err := m.Verify(ctx, "tok-1", 1)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = m.Verify(ctx, "tok-1", 2)
	require.NoError(t, err)
	require.False(t, ok)

	deleted, err := m.Delete(ctx, "tok-1")
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = m.Delete(ctx, "tok-1")
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestMemoryExpiredToken(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Save(ctx, 1, "tok-old", time.Now().Add(-time.Minute)))
	ok, err := m.Verify(ctx, "tok-old", 1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryMessages(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	messages := MemoryMessages{m}

	alice, err := m.Create(ctx, "alice", "alice@example.com", "h")
	require.NoError(t, err)

	base := time.Now()
	require.NoError(t, messages.Create(ctx, alice.ID, "second", base.Add(time.Second)))
	require.NoError(t, messages.Create(ctx, alice.ID, "first", base))

	list, err := messages.ListOldestFirst(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "first", list[0].Content)
	require.Equal(t, "second", list[1].Content)
	require.Equal(t, "alice", list[0].Username)
}
