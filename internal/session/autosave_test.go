package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmarren/courier/internal/adapters/id"
	"github.com/pmarren/courier/internal/domain"
	"github.com/pmarren/courier/internal/domain/models"
)

// countingStore is an in-memory KVStore that counts writes per key.
type countingStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	sets    map[string]int
	failSet error
}

func newCountingStore() *countingStore {
	return &countingStore{data: map[string][]byte{}, sets: map[string]int{}}
}

func (c *countingStore) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.data[key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return data, nil
}

func (c *countingStore) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSet != nil {
		return c.failSet
	}
	c.data[key] = value
	c.sets[key]++
	return nil
}

func (c *countingStore) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *countingStore) setCount(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets[key]
}

func (c *countingStore) snapshot(t *testing.T) []*models.ChatSession {
	t.Helper()
	data, err := c.Get(context.Background(), SessionsKey)
	require.NoError(t, err)
	var sessions []*models.ChatSession
	require.NoError(t, json.Unmarshal(data, &sessions))
	return sessions
}

func TestAutosaverDebouncesBursts(t *testing.T) {
	kv := newCountingStore()
	store := newTestStore()
	saver := NewAutosaver(context.Background(), store, kv, WithDebounce(50*time.Millisecond))
	defer saver.Close()

	sess := store.CreateSession("Chat", "")
	for i := 0; i < 4; i++ {
		require.NoError(t, store.AppendMessage(sess.ID, models.NewUserMessage(id.New().GenerateMessageID(), sess.ID, "m")))
	}

	// Five mutations inside one debounce window collapse into one write.
	assert.Equal(t, 0, kv.setCount(SessionsKey))
	require.Eventually(t, func() bool {
		return kv.setCount(SessionsKey) == 1
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, kv.setCount(SessionsKey))

	sessions := kv.snapshot(t)
	require.Len(t, sessions, 1)
	assert.Equal(t, 4, sessions[0].MessageCount)
}

func TestAutosaverDeleteWritesThrough(t *testing.T) {
	kv := newCountingStore()
	store := newTestStore()
	saver := NewAutosaver(context.Background(), store, kv, WithDebounce(time.Hour))
	defer saver.Close()

	sess := store.CreateSession("Chat", "")
	require.NoError(t, store.DeleteSession(sess.ID))

	// Deletion bypasses the debounce window.
	assert.Equal(t, 1, kv.setCount(SessionsKey))
	assert.Empty(t, kv.snapshot(t))
}

func TestAutosaverSwitchDoesNotPersist(t *testing.T) {
	kv := newCountingStore()
	store := newTestStore()
	saver := NewAutosaver(context.Background(), store, kv, WithDebounce(20*time.Millisecond))
	defer saver.Close()

	a := store.CreateSession("A", "")
	store.CreateSession("B", "")
	require.Eventually(t, func() bool {
		return kv.setCount(SessionsKey) >= 1
	}, 2*time.Second, 10*time.Millisecond)
	writes := kv.setCount(SessionsKey)

	require.NoError(t, store.SwitchSession(a.ID))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, writes, kv.setCount(SessionsKey))
}

func TestAutosaverLoadsSnapshotAtStartup(t *testing.T) {
	kv := newCountingStore()
	persisted := []*models.ChatSession{models.NewChatSession("cs_a", "Restored", "gpt-test")}
	data, err := json.Marshal(persisted)
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), SessionsKey, data))

	store := newTestStore()
	saver := NewAutosaver(context.Background(), store, kv)
	defer saver.Close()

	require.Equal(t, 1, store.Count())
	assert.Equal(t, "cs_a", store.CurrentSession().ID)
}

func TestAutosaverToleratesCorruptSnapshot(t *testing.T) {
	kv := newCountingStore()
	require.NoError(t, kv.Set(context.Background(), SessionsKey, []byte("[broken")))

	store := newTestStore()
	saver := NewAutosaver(context.Background(), store, kv)
	defer saver.Close()

	assert.Zero(t, store.Count())
}

func TestAutosaverDisabledSkipsWrites(t *testing.T) {
	kv := newCountingStore()
	store := newTestStore()
	saver := NewAutosaver(context.Background(), store, kv, WithDebounce(20*time.Millisecond))
	defer saver.Close()

	saver.SetEnabled(false)
	assert.False(t, saver.Enabled())
	assert.Equal(t, []byte("false"), kv.data[AutosaveKey])

	store.CreateSession("Chat", "")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, kv.setCount(SessionsKey))
}

func TestAutosaverPreferenceLoadedAtStartup(t *testing.T) {
	kv := newCountingStore()
	require.NoError(t, kv.Set(context.Background(), AutosaveKey, []byte("false")))

	store := newTestStore()
	saver := NewAutosaver(context.Background(), store, kv)
	defer saver.Close()

	assert.False(t, saver.Enabled())
}

func TestAutosaverReportsWriteFailure(t *testing.T) {
	kv := newCountingStore()
	kv.failSet = errors.New("disk full")

	var mu sync.Mutex
	var reported error
	store := newTestStore()
	saver := NewAutosaver(context.Background(), store, kv,
		WithDebounce(10*time.Millisecond),
		WithSaveErrorCallback(func(err error) {
			mu.Lock()
			reported = err
			mu.Unlock()
		}))
	defer saver.Close()

	store.CreateSession("Chat", "")
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reported != nil
	}, 2*time.Second, 5*time.Millisecond)
}

func TestAutosaverCloseFlushesPendingWrite(t *testing.T) {
	kv := newCountingStore()
	store := newTestStore()
	saver := NewAutosaver(context.Background(), store, kv, WithDebounce(time.Hour))

	store.CreateSession("Chat", "")
	assert.Equal(t, 0, kv.setCount(SessionsKey))

	saver.Close()
	assert.Equal(t, 1, kv.setCount(SessionsKey))
}

func TestAutosaverImportMergesById(t *testing.T) {
	kv := newCountingStore()
	store := newTestStore()
	saver := NewAutosaver(context.Background(), store, kv, WithDebounce(time.Hour))
	defer saver.Close()

	existing := store.CreateSession("Existing", "")
	bystander := store.CreateSession("Bystander", "")

	imported := models.NewChatSession(existing.ID, "Imported title", "gpt-test")
	imported.Messages = []*models.ChatMessage{models.NewUserMessage("cm_i", existing.ID, "imported")}
	imported.Touch()
	data, err := json.Marshal([]*models.ChatSession{imported})
	require.NoError(t, err)

	require.True(t, saver.Import(data))

	// Updated in place, no duplicate, bystander untouched.
	require.Equal(t, 2, store.Count())
	got, err := store.Session(existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "Imported title", got.Title)
	other, err := store.Session(bystander.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bystander", other.Title)

	// Import persists immediately.
	assert.Equal(t, 1, kv.setCount(SessionsKey))
}

func TestAutosaverImportRejectsGarbage(t *testing.T) {
	kv := newCountingStore()
	store := newTestStore()
	saver := NewAutosaver(context.Background(), store, kv)
	defer saver.Close()

	store.CreateSession("Keep", "")
	assert.False(t, saver.Import([]byte("not json")))
	assert.Equal(t, 1, store.Count())
}

func TestAutosaverExportRoundTrip(t *testing.T) {
	kv := newCountingStore()
	store := newTestStore()
	saver := NewAutosaver(context.Background(), store, kv)
	defer saver.Close()

	sess := store.CreateSession("Chat", "gpt-test")
	require.NoError(t, store.AppendMessage(sess.ID, models.NewUserMessage("cm_1", sess.ID, "hi")))

	data, err := saver.Export()
	require.NoError(t, err)

	var sessions []*models.ChatSession
	require.NoError(t, json.Unmarshal(data, &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, sess.ID, sessions[0].ID)

	assert.Equal(t, int64(len(data)), saver.SizeBytes())
	assert.NotEmpty(t, saver.SizeHuman())
}

func TestAutosaverClearAll(t *testing.T) {
	kv := newCountingStore()
	store := newTestStore()
	saver := NewAutosaver(context.Background(), store, kv, WithDebounce(time.Hour))
	defer saver.Close()

	store.CreateSession("Chat", "")
	saver.Close()
	require.Equal(t, 1, kv.setCount(SessionsKey))

	saver.ClearAll()
	_, err := kv.Get(context.Background(), SessionsKey)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}
