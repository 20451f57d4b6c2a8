package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey(t *testing.T) {
	now := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)

	key := NewKey(now, "Report.PDF")
	assert.True(t, strings.HasPrefix(key, "2024/03/09/"), key)
	assert.True(t, strings.HasSuffix(key, ".pdf"), key)

	assert.NotEqual(t, key, NewKey(now, "Report.PDF"))
	assert.NotContains(t, NewKey(now, "../../etc/passwd"), "..")
}

func TestLocalRoundTrip(t *testing.T) {
	st, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, st.Save(ctx, "2024/01/01/a.txt", strings.NewReader("hello"), 5))

	obj, err := st.Open(ctx, "2024/01/01/a.txt")
	require.NoError(t, err)
	body, err := io.ReadAll(obj.Body)
	require.NoError(t, obj.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, int64(5), obj.Size)

	// keys are never overwritten
	assert.Error(t, st.Save(ctx, "2024/01/01/a.txt", strings.NewReader("again"), 5))

	require.NoError(t, st.Delete(ctx, "2024/01/01/a.txt"))
	_, err = st.Open(ctx, "2024/01/01/a.txt")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	require.NoError(t, st.Delete(ctx, "2024/01/01/a.txt"))
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	st, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	err = st.Save(context.Background(), "../outside.txt", strings.NewReader("x"), 1)
	assert.Error(t, err)
}
