package kv

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract checks the behaviour every backend must share.
func runStoreContract(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		v, ok, err := s.Get(ctx, "tradewars:missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, v)
	})

	t.Run("set then get", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		require.NoError(t, s.Set(ctx, "tradewars:bots", []byte(`[{"name":"Aurelian"}]`)))

		v, ok, err := s.Get(ctx, "tradewars:bots")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `[{"name":"Aurelian"}]`, string(v))
	})

	t.Run("overwrite", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		require.NoError(t, s.Set(ctx, "tradewars:last_reset", []byte("Mon Jan 01 2024")))
		require.NoError(t, s.Set(ctx, "tradewars:last_reset", []byte("Tue Jan 02 2024")))

		v, ok, err := s.Get(ctx, "tradewars:last_reset")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Tue Jan 02 2024", string(v))
	})

	t.Run("keys are independent", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		require.NoError(t, s.Set(ctx, "tradewars:trades", []byte("[1]")))
		require.NoError(t, s.Set(ctx, "tradewars:winners", []byte("[2]")))

		trades, _, err := s.Get(ctx, "tradewars:trades")
		require.NoError(t, err)
		winners, _, err := s.Get(ctx, "tradewars:winners")
		require.NoError(t, err)
		assert.Equal(t, "[1]", string(trades))
		assert.Equal(t, "[2]", string(winners))
	})

	t.Run("empty value is present", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		require.NoError(t, s.Set(ctx, "empty", []byte{}))
		v, ok, err := s.Get(ctx, "empty")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, v)
	})

	t.Run("closed store", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Close())

		_, _, err := s.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrClosed)
		assert.ErrorIs(t, s.Set(ctx, "k", []byte("v")), ErrClosed)
	})

	t.Run("concurrent writers", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, s.Set(ctx, fmt.Sprintf("key-%d", i), []byte(fmt.Sprint(i))))
			}(i)
		}
		wg.Wait()

		for i := 0; i < 8; i++ {
			v, ok, err := s.Get(ctx, fmt.Sprintf("key-%d", i))
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, fmt.Sprint(i), string(v))
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestFileStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		s, err := NewFileStore(t.TempDir())
		require.NoError(t, err)
		return s
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "kv.db"))
		require.NoError(t, err)
		return s
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	value := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", value))
	value[0] = 'x'

	got, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	got[1] = 'y'

	again, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "tradewars:bots", []byte("[]")))
	require.NoError(t, s.Close())

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	v, ok, err := reopened.Get(ctx, "tradewars:bots")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", string(v))
}

func TestSanitizeKey(t *testing.T) {
	assert.Equal(t, "tradewars_price_history", sanitizeKey("tradewars:price_history"))
	assert.Equal(t, "a_b", sanitizeKey(" A//B "))
	assert.Equal(t, "_", sanitizeKey(""))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, BackendMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, BackendFile, t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(ctx, BackendSQLite, filepath.Join(t.TempDir(), "db.sqlite"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, "etcd", "")
	assert.Error(t, err)
}
