package credentials

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	cred, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, cred.Empty())

	require.NoError(t, store.Save(ctx, Credential{Access: "a1", Refresh: "r1"}))
	cred, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Credential{Access: "a1", Refresh: "r1"}, cred)

	// full overwrite, an empty refresh clears the stored one
	require.NoError(t, store.Save(ctx, Credential{Access: "a2"}))
	cred, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Credential{Access: "a2"}, cred)

	require.NoError(t, store.Clear(ctx))
	cred, err = store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, cred.Empty())

	// clearing an empty slot is fine
	require.NoError(t, store.Clear(ctx))
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	storeContract(t, store)

	require.NoError(t, store.Close())
	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, store.Save(context.Background(), Credential{Access: "x"}), ErrClosed)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	storeContract(t, store)
}

func TestFileStore_PermissionsAndFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), Credential{Access: "acc", Refresh: "ref"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"access":"acc","refresh":"ref"}`, string(content))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestFileStore_Corrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store, err := NewFileStore(path)
	require.NoError(t, err)
	_, err = store.Load(context.Background())
	assert.ErrorContains(t, err, "unmarshal credential file")
}

func TestNewFileStore_NoPath(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	storeContract(t, store)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "confhub.db")

	store, err := NewSQLiteStore(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, Credential{Access: "persisted", Refresh: "r"}))
	require.NoError(t, store.Close())

	// migrations are idempotent
	store, err = NewSQLiteStore(ctx, dsn)
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	cred, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Credential{Access: "persisted", Refresh: "r"}, cred)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	slot, err := Open(ctx, OpenParams{Kind: KindMemory})
	require.NoError(t, err)
	require.NoError(t, slot.Close())

	slot, err = Open(ctx, OpenParams{Kind: KindFile, FilePath: filepath.Join(t.TempDir(), "c.json")})
	require.NoError(t, err)
	require.NoError(t, slot.Close())

	slot, err = Open(ctx, OpenParams{Kind: KindSQLite, SQLiteDSN: filepath.Join(t.TempDir(), "db", "c.db")})
	require.NoError(t, err)
	require.NoError(t, slot.Close())

	_, err = Open(ctx, OpenParams{Kind: KindRedis})
	assert.ErrorContains(t, err, "redis client not set")

	_, err = Open(ctx, OpenParams{Kind: "cookie"})
	assert.ErrorContains(t, err, "unknown credential store kind")
}
