package maskedmemory

import (
	"bytes"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackage_Lifecycle(t *testing.T) {
	err := Init(0)
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	require.NoError(t, Init(10*time.Millisecond))
	require.NoError(t, Init(10*time.Millisecond))

	require.NoError(t, Deinit())

	err = Deinit()
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	_, err = Alloc(1024)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestPackage_Operations(t *testing.T) {
	require.NoError(t, Init(10*time.Millisecond))

	defer func() {
		assert.NoError(t, Deinit())
	}()

	h, err := Alloc(1024)
	require.NoError(t, err)
	require.NoError(t, Free(h))

	h, err = Alloc(6)
	require.NoError(t, err)

	plain := []byte("foobar")
	require.NoError(t, Set(h, plain))
	assert.Equal(t, make([]byte, 6), plain)

	first := snapshot(t, std, h)
	assert.NotEqual(t, []byte("foobar"), first)

	// wait for the refresher to move the encoding on
	assert.Eventually(t, func() bool {
		return !bytes.Equal(first, snapshot(t, std, h))
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, Refresh())

	got, err := Get(h)
	require.NoError(t, err)
	assert.Equal(t, []byte("foobar"), got)

	x, err := TimedGet(h, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []byte("foobar"), x.Bytes())
	assert.Eventually(t, x.Expired, 2*time.Second, 5*time.Millisecond)
	assert.NoError(t, x.Close())

	h, err = Realloc(h, 3)
	require.NoError(t, err)

	got, err = Get(h)
	require.NoError(t, err)
	assert.Equal(t, []byte("foo"), got)

	require.NoError(t, Free(h))
}
