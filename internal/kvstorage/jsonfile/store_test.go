package jsonfile

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datastore-lite/internal/exithook"
	"datastore-lite/internal/kvstorage"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func openTestStore(t *testing.T, path string, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger), WithExitHooks(nil)}, opts...)
	s, err := Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func tempPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "ut_test.json")
}

// requireSizeExact checks the running size against a real encode.
func requireSizeExact(t *testing.T, s *Store) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := encodeDocument(s.doc)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), s.encodedSize, "document %s", data)
}

func TestOpen_CreatesEmptyFile(t *testing.T) {
	path := tempPath(t)
	s := openTestStore(t, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
	assert.Equal(t, int64(2), s.Size())
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Dirty())
	assert.Equal(t, kvstorage.DefaultCapacity, s.Capacity())
	assert.True(t, filepath.IsAbs(s.Path()))
}

func TestOpen_DefaultPath(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	s := openTestStore(t, "")
	want, err := filepath.Abs(filepath.Join("data_store", "data_store.json"))
	require.NoError(t, err)
	assert.Equal(t, want, s.Path())
	assert.FileExists(t, want)
}

func TestOpen_LoadsExisting(t *testing.T) {
	path := tempPath(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"KEY1":"val1","KEY2":"val2"}`), 0644))

	s := openTestStore(t, path)
	assert.Equal(t, []string{"KEY1", "KEY2"}, s.Keys())
	assert.Equal(t, int64(29), s.Size())
	assert.False(t, s.Dirty())
}

func TestOpen_NormalizesStoredKeys(t *testing.T) {
	path := tempPath(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"key1":"val1"}`), 0644))

	s := openTestStore(t, path)
	assert.Equal(t, []string{"KEY1"}, s.Keys())
	assert.True(t, s.Dirty())
	requireSizeExact(t, s)
}

func TestOpen_CollidingKeys(t *testing.T) {
	path := tempPath(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"key1":"a","KEY1":"b"}`), 0644))

	_, err := Open(path, WithLogger(quietLogger), WithExitHooks(nil))
	assert.ErrorIs(t, err, kvstorage.ErrCorrupt)
}

func TestOpen_Corrupt(t *testing.T) {
	for _, content := range []string{`{"a":`, `{"a":1}`, `[1,2]`} {
		path := tempPath(t)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		s, err := Open(path, WithLogger(quietLogger), WithExitHooks(nil))
		assert.Nil(t, s, content)
		assert.ErrorIs(t, err, kvstorage.ErrCorrupt, content)
	}
}

func TestOpen_CorruptReleasesLock(t *testing.T) {
	path := tempPath(t)
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0644))
	_, err := Open(path, WithLogger(quietLogger), WithExitHooks(nil))
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0644))
	openTestStore(t, path)
}

func TestOpen_EmptyFile(t *testing.T) {
	path := tempPath(t)
	require.NoError(t, os.WriteFile(path, nil, 0644))

	s := openTestStore(t, path)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, int64(2), s.Size())
}

// Scenario A.
func TestInsert_Duplicate(t *testing.T) {
	s := openTestStore(t, tempPath(t))

	r := s.Insert("key1", "val1")
	assert.True(t, r.Status)
	assert.Equal(t, "Successfully inserted", r.Message)

	r = s.Insert("key2", "val2")
	assert.True(t, r.Status)

	r = s.Insert("key1", "val3")
	assert.False(t, r.Status)
	assert.Equal(t, "Key already exists", r.Message)
	assert.ErrorIs(t, r.Err, kvstorage.ErrDuplicateKey)

	assert.Equal(t, "val1", s.Read("key1").Data)
}

func TestInsert_CaseInsensitive(t *testing.T) {
	s := openTestStore(t, tempPath(t))

	require.True(t, s.Insert("foo", "1").OK())
	r := s.Insert("FOO", "2")
	assert.False(t, r.OK())
	assert.ErrorIs(t, r.Err, kvstorage.ErrDuplicateKey)
	assert.Equal(t, []string{"FOO"}, s.Keys())

	assert.Equal(t, "1", s.Read("Foo").Data)
}

// Scenario B.
func TestRead_Missing(t *testing.T) {
	s := openTestStore(t, tempPath(t))
	require.True(t, s.Insert("key1", "val1").OK())

	r := s.Read("key1")
	assert.True(t, r.Status)
	assert.Equal(t, "val1", r.Data)

	r = s.Read("key3")
	assert.False(t, r.Status)
	assert.Equal(t, "Key does not exists", r.Message)
	assert.ErrorIs(t, r.Err, kvstorage.ErrKeyNotFound)
}

// Scenario C.
func TestDelete_Twice(t *testing.T) {
	s := openTestStore(t, tempPath(t))
	require.True(t, s.Insert("key1", "val1").OK())

	r := s.Delete("key1")
	assert.True(t, r.Status)
	assert.Equal(t, "Deleted successfully", r.Message)

	r = s.Delete("key1")
	assert.False(t, r.Status)
	assert.Equal(t, "Key does not exists", r.Message)
	assert.ErrorIs(t, r.Err, kvstorage.ErrKeyNotFound)
	assert.Equal(t, int64(2), s.Size())
}

// Scenario D.
func TestInsert_NoSpace(t *testing.T) {
	s := openTestStore(t, tempPath(t), WithCapacity(10))

	r := s.Insert("key1", "Some test value")
	assert.False(t, r.Status)
	assert.Equal(t, "No enough space to store", r.Message)
	assert.ErrorIs(t, r.Err, kvstorage.ErrCapacityExceeded)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, int64(2), s.Size())
	assert.False(t, s.Dirty())
}

func TestInsert_ExactFit(t *testing.T) {
	// {"A":"b"} is 9 bytes; a second entry needs 1 separator + 7 bytes.
	s := openTestStore(t, tempPath(t), WithCapacity(17))

	require.True(t, s.Insert("a", "b").OK())
	assert.Equal(t, int64(9), s.Size())
	require.True(t, s.Insert("c", "d").OK())
	assert.Equal(t, int64(17), s.Size())

	r := s.Insert("e", "")
	assert.ErrorIs(t, r.Err, kvstorage.ErrCapacityExceeded)
	requireSizeExact(t, s)
}

// Scenario E.
func TestOpen_TooLarge(t *testing.T) {
	path := tempPath(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"KEY1":"val1"}`), 0644))

	s, err := Open(path, WithCapacity(1), WithLogger(quietLogger), WithExitHooks(nil))
	assert.Nil(t, s)
	assert.ErrorIs(t, err, kvstorage.ErrTooLarge)

	// Size equal to capacity is also rejected.
	_, err = Open(path, WithCapacity(15), WithLogger(quietLogger), WithExitHooks(nil))
	assert.ErrorIs(t, err, kvstorage.ErrTooLarge)

	openTestStore(t, path, WithCapacity(16))
}

func TestOpen_TooLargeAfterNormalization(t *testing.T) {
	path := tempPath(t)
	// U+0390 uppercases to three code points, tripling the key's length.
	key := strings.Repeat("\u0390", 8)
	raw := `{"` + key + `":""}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))
	require.Greater(t, len(kvstorage.NormalizeKey(key)), len(key))

	capacity := int64(len(raw) + 2)
	s, err := Open(path, WithCapacity(capacity), WithLogger(quietLogger), WithExitHooks(nil))
	assert.Nil(t, s)
	assert.ErrorIs(t, err, kvstorage.ErrTooLarge)

	// The lock was released on the way out.
	big := openTestStore(t, path, WithCapacity(1024))
	assert.LessOrEqual(t, big.Size(), big.Capacity())
	assert.True(t, big.Dirty())
}

func TestOpen_TooLargeDoesNotLock(t *testing.T) {
	path := tempPath(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"KEY1":"val1"}`), 0644))

	holder := openTestStore(t, path)
	_, err := Open(path, WithCapacity(1), WithLogger(quietLogger), WithExitHooks(nil))
	assert.ErrorIs(t, err, kvstorage.ErrTooLarge)
	assert.NotErrorIs(t, err, kvstorage.ErrLocked)
	assert.Equal(t, 1, holder.Len())
}

// P4.
func TestOpen_Exclusive(t *testing.T) {
	path := tempPath(t)
	first := openTestStore(t, path)

	second, err := Open(path, WithLogger(quietLogger), WithExitHooks(nil))
	assert.Nil(t, second)
	assert.ErrorIs(t, err, kvstorage.ErrLocked)

	require.NoError(t, first.Close())
	third := openTestStore(t, path)
	assert.NotNil(t, third)
}

// P3.
func TestSave_RoundTrip(t *testing.T) {
	path := tempPath(t)
	s, err := Open(path, WithLogger(quietLogger), WithExitHooks(nil))
	require.NoError(t, err)

	want := map[string]string{}
	for i := 0; i < 20; i++ {
		k, v := fmt.Sprintf("key%d", i), fmt.Sprintf("value <%d> & \"q\" é\n", i)
		require.True(t, s.Insert(k, v).OK())
		want[kvstorage.NormalizeKey(k)] = v
	}
	for i := 0; i < 20; i += 3 {
		require.True(t, s.Delete(fmt.Sprintf("KEY%d", i)).OK())
		delete(want, fmt.Sprintf("KEY%d", i))
	}
	require.NoError(t, s.Save())
	assert.False(t, s.Dirty())
	size := s.Size()
	require.NoError(t, s.Close())

	got, err := ReadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, size, info.Size())

	reopened := openTestStore(t, path)
	assert.Equal(t, size, reopened.Size())
	for k, v := range want {
		assert.Equal(t, v, reopened.Read(k).Data)
	}
}

func TestInsert_InvalidUTF8(t *testing.T) {
	path := tempPath(t)
	s, err := Open(path, WithLogger(quietLogger), WithExitHooks(nil))
	require.NoError(t, err)

	for _, kv := range [][2]string{{"a\xff", "one"}, {"a\xfe", "two"}, {"key", "bad\xc3"}} {
		r := s.Insert(kv[0], kv[1])
		assert.False(t, r.OK(), "Insert(%q, %q)", kv[0], kv[1])
		assert.ErrorIs(t, r.Err, kvstorage.ErrInvalidUTF8)
		assert.Equal(t, "Key and value must be valid UTF-8", r.Message)
	}
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Dirty())

	require.True(t, s.Insert("a\u00ff", "one").OK())
	require.NoError(t, s.Close())

	reopened := openTestStore(t, path)
	assert.Equal(t, 1, reopened.Len())
	assert.Equal(t, "one", reopened.Read("a\u00ff").Data)
}

func TestSave_ShrinksFile(t *testing.T) {
	path := tempPath(t)
	s := openTestStore(t, path)
	require.True(t, s.Insert("long", "a fairly long value that takes space").OK())
	require.NoError(t, s.Save())

	require.True(t, s.Delete("long").OK())
	require.NoError(t, s.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestSave_CompactFormat(t *testing.T) {
	path := tempPath(t)
	s := openTestStore(t, path)
	require.True(t, s.Insert("b", "2").OK())
	require.True(t, s.Insert("a", "<1>").OK())
	require.NoError(t, s.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"A":"<1>","B":"2"}`, string(data))
}

// P5.
func TestSave_Idempotent(t *testing.T) {
	path := tempPath(t)
	s := openTestStore(t, path)
	require.True(t, s.Insert("key1", "val1").OK())
	require.NoError(t, s.Save())

	before, err := os.Stat(path)
	require.NoError(t, err)
	old := before.ModTime().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))
	stale, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, s.Save())
	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, stale.ModTime(), after.ModTime())
}

func TestSave_ClearsDirty(t *testing.T) {
	path := tempPath(t)
	s := openTestStore(t, path)

	require.True(t, s.Insert("key1", "val1").OK())
	require.True(t, s.Delete("key1").OK())
	require.True(t, s.Dirty())
	require.NoError(t, s.Save())
	assert.False(t, s.Dirty())

	require.True(t, s.Insert("key1", "val2").OK())
	assert.True(t, s.Dirty())
}

func TestMutationsDoNotTouchDisk(t *testing.T) {
	path := tempPath(t)
	s := openTestStore(t, path)
	require.True(t, s.Insert("key1", "val1").OK())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestClose_SavesAndIsIdempotent(t *testing.T) {
	path := tempPath(t)
	s, err := Open(path, WithLogger(quietLogger), WithExitHooks(nil))
	require.NoError(t, err)
	require.True(t, s.Insert("key1", "val1").OK())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"KEY1":"val1"}`, string(data))

	r := s.Insert("key2", "val2")
	assert.False(t, r.OK())
	assert.ErrorIs(t, r.Err, kvstorage.ErrClosed)
	assert.ErrorIs(t, s.Read("key1").Err, kvstorage.ErrClosed)
	assert.ErrorIs(t, s.Delete("key1").Err, kvstorage.ErrClosed)
	assert.NoError(t, s.Save())
}

func TestExitHookClosesStore(t *testing.T) {
	path := tempPath(t)
	hooks := &exithook.Registry{}
	s, err := Open(path, WithLogger(quietLogger), WithExitHooks(hooks))
	require.NoError(t, err)
	assert.Equal(t, 1, hooks.Len())
	require.True(t, s.Insert("key1", "val1").OK())

	require.NoError(t, hooks.Run())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"KEY1":"val1"}`, string(data))
	openTestStore(t, path)
}

func TestCloseUnregistersExitHook(t *testing.T) {
	hooks := &exithook.Registry{}
	s, err := Open(tempPath(t), WithLogger(quietLogger), WithExitHooks(hooks))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.Equal(t, 0, hooks.Len())
}

func TestSizeTracking_Exact(t *testing.T) {
	s := openTestStore(t, tempPath(t))
	rng := rand.New(rand.NewSource(1))
	values := []string{"", "plain", "quote\"d", "back\\slash", "tab\there", "ctl\x01", "<html>&", "é世", "\U0001F600"}

	var live []string
	for i := 0; i < 500; i++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			idx := rng.Intn(len(live))
			require.True(t, s.Delete(live[idx]).OK())
			live = append(live[:idx], live[idx+1:]...)
		} else {
			k := fmt.Sprintf("k%d%s", i, values[rng.Intn(len(values))])
			require.True(t, s.Insert(k, values[rng.Intn(len(values))]).OK())
			live = append(live, k)
		}
		requireSizeExact(t, s)
	}
}

// P1 and P2 under concurrent use.
func TestConcurrentInserts(t *testing.T) {
	s := openTestStore(t, tempPath(t), WithCapacity(4096))

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := map[string]int{}
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("key%d", i%50)
				if i%2 == 0 {
					key = fmt.Sprintf("KEY%d", i%50)
				}
				if s.Insert(key, "value").OK() {
					mu.Lock()
					successes[kvstorage.NormalizeKey(key)]++
					mu.Unlock()
				}
				s.Read(key)
			}
		}()
	}
	wg.Wait()

	for k, n := range successes {
		assert.Equal(t, 1, n, "key %s inserted %d times", k, n)
	}
	assert.LessOrEqual(t, s.Size(), s.Capacity())
	assert.Equal(t, len(successes), s.Len())
	requireSizeExact(t, s)
}

func TestCapacityNeverExceeded(t *testing.T) {
	s := openTestStore(t, tempPath(t), WithCapacity(200))
	for i := 0; i < 100; i++ {
		r := s.Insert(fmt.Sprintf("key%d", i), "0123456789")
		if !r.OK() {
			require.True(t, errors.Is(r.Err, kvstorage.ErrCapacityExceeded))
		}
		require.LessOrEqual(t, s.Size(), int64(200))
	}
	requireSizeExact(t, s)
}
