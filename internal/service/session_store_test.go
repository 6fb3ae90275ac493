package service

import (
	"sync"
	"testing"

	"github.com/cloo-solutions/askdoc/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_CreateGetDelete(t *testing.T) {
	store := NewSessionStoreWithGenerator(&sequenceUUID{ids: []string{"s-1", "s-2"}})

	first := store.Create()
	second := store.Create()
	assert.Equal(t, "s-1", first.ID)
	assert.Equal(t, "s-2", second.ID)
	assert.Equal(t, 2, store.Len())

	got, err := store.Get("s-1")
	require.NoError(t, err)
	assert.Same(t, first, got)

	require.NoError(t, store.Delete("s-1"))
	_, err = store.Get("s-1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, store.Delete("s-1"), domain.ErrSessionNotFound)
}

func TestSessionStore_GetOrCreate(t *testing.T) {
	store := NewSessionStore()

	a := store.GetOrCreate("cli")
	a.Append(domain.ChatTurn{Role: domain.RoleUser, Content: "hi"})
	b := store.GetOrCreate("cli")
	assert.Same(t, a, b)
	assert.Equal(t, 1, b.Len())

	fresh := store.GetOrCreate("")
	assert.NotEmpty(t, fresh.ID)
	assert.NotEqual(t, "cli", fresh.ID)
}

func TestSessionStore_Concurrent(t *testing.T) {
	store := NewSessionStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := store.Create()
			_, _ = store.Get(s.ID)
			store.GetOrCreate("shared").Append(domain.ChatTurn{Role: domain.RoleUser, Content: "x"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 51, store.Len())
	shared, err := store.Get("shared")
	require.NoError(t, err)
	assert.Equal(t, 50, shared.Len())
}
