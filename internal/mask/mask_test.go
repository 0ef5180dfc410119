package mask

import (
	"crypto/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomPad(t *testing.T, n int) []byte {
	pad := make([]byte, PadSize(n))
	_, err := rand.Read(pad)
	require.NoError(t, err)

	return pad
}

func TestPadSize(t *testing.T) {
	assert.Equal(t, 0, PadSize(0))
	assert.Equal(t, 3, PadSize(1))
	assert.Equal(t, 96, PadSize(32))
}

func TestMaskUnmask(t *testing.T) {
	plaintext := []byte("S.B.B.H.K.K! Aqui fala o Chapolin")
	pad := randomPad(t, len(plaintext))

	masked := make([]byte, len(plaintext))
	require.NoError(t, Mask(masked, plaintext, pad))
	assert.NotEqual(t, plaintext, masked)

	recovered := make([]byte, len(plaintext))
	require.NoError(t, Unmask(recovered, masked, pad))
	assert.Equal(t, plaintext, recovered)
}

func TestMask_UsesEverySubkey(t *testing.T) {
	plaintext := []byte{0x00, 0x00}
	pad := []byte{
		0x01, 0x10,
		0x02, 0x20,
		0x04, 0x40,
	}

	masked := make([]byte, 2)
	require.NoError(t, Mask(masked, plaintext, pad))
	assert.Equal(t, []byte{0x07, 0x70}, masked)

	key := make([]byte, 2)
	require.NoError(t, Key(key, pad))
	assert.Equal(t, masked, key)
}

func TestUnmask_Prefix(t *testing.T) {
	plaintext := []byte("foobar")
	pad := randomPad(t, len(plaintext))

	masked := make([]byte, len(plaintext))
	require.NoError(t, Mask(masked, plaintext, pad))

	prefix := make([]byte, 3)
	require.NoError(t, Unmask(prefix, masked, pad))
	assert.Equal(t, []byte("foo"), prefix)
}

func TestRemask(t *testing.T) {
	plaintext := []byte("thisismy32bytesecretthatiwilluse")
	oldPad := randomPad(t, len(plaintext))

	masked := make([]byte, len(plaintext))
	require.NoError(t, Mask(masked, plaintext, oldPad))

	for i := 0; i < 10; i++ {
		before := append([]byte(nil), masked...)
		newPad := randomPad(t, len(plaintext))

		require.NoError(t, Remask(masked, oldPad, newPad))
		assert.NotEqual(t, before, masked)

		expected := make([]byte, len(plaintext))
		require.NoError(t, Mask(expected, plaintext, newPad))
		assert.Equal(t, expected, masked)

		oldPad = newPad
	}

	recovered := make([]byte, len(plaintext))
	require.NoError(t, Unmask(recovered, masked, oldPad))
	assert.Equal(t, plaintext, recovered)
}

func TestLengthErrors(t *testing.T) {
	tests := []struct {
		Name string
		Err  maskError
		Call func() error
	}{
		{
			Name: "mask dst too short",
			Err:  errLength,
			Call: func() error { return Mask(make([]byte, 1), make([]byte, 2), make([]byte, 6)) },
		},
		{
			Name: "mask pad too short",
			Err:  errPadLength,
			Call: func() error { return Mask(make([]byte, 2), make([]byte, 2), make([]byte, 2)) },
		},
		{
			Name: "remask old pad mismatch",
			Err:  errPadLength,
			Call: func() error { return Remask(make([]byte, 2), make([]byte, 3), make([]byte, 6)) },
		},
		{
			Name: "remask new pad mismatch",
			Err:  errPadLength,
			Call: func() error { return Remask(make([]byte, 2), make([]byte, 6), make([]byte, 9)) },
		},
		{
			Name: "unmask dst too long",
			Err:  errLength,
			Call: func() error { return Unmask(make([]byte, 3), make([]byte, 2), make([]byte, 6)) },
		},
		{
			Name: "unmask pad mismatch",
			Err:  errPadLength,
			Call: func() error { return Unmask(make([]byte, 2), make([]byte, 2), make([]byte, 5)) },
		},
		{
			Name: "key pad mismatch",
			Err:  errPadLength,
			Call: func() error { return Key(make([]byte, 2), make([]byte, 5)) },
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.Name, func(t *testing.T) {
			err := tt.Call()
			if assert.Error(t, err) {
				assert.True(t, errors.Is(err, tt.Err))
			}
		})
	}
}
