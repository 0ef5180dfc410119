//go:build race_tests

package maskedmemory

import (
	"io/ioutil"
	"runtime"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const raceSecret = "thisismy32bytesecretthatiwilluse"

func BenchmarkEngine_GetConcurrentRefresh(b *testing.B) {
	e := NewEngine(nil)
	require.NoError(b, e.Init(time.Millisecond))

	defer e.Deinit()

	h, err := e.Alloc(len(raceSecret))
	require.NoError(b, err)
	require.NoError(b, e.Set(h, []byte(raceSecret)))

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			got, err := e.Get(h)
			if assert.NoError(b, err) {
				assert.Equal(b, []byte(raceSecret), got)
			}
		}
	})
}

func BenchmarkExposure_WithBytesConcurrentClose(b *testing.B) {
	runRaceTest(b, func(x *Exposure) {
		err := x.WithBytes(func(bytes []byte) error {
			if len(bytes) > 0 {
				assert.Equal(b, []byte(raceSecret), bytes)
			}

			return nil
		})
		if err != nil {
			assert.True(b, errors.Is(err, ErrExposureClosed))
		}
	})
}

func BenchmarkExposure_ReaderConcurrentClose(b *testing.B) {
	runRaceTest(b, func(x *Exposure) {
		bytes, err := ioutil.ReadAll(x.NewReader())
		if err != nil {
			assert.EqualError(b, err, "exposure has already been destroyed")
		} else if len(bytes) > 0 {
			assert.Equal(b, []byte(raceSecret), bytes)
		}
	})
}

// runRaceTest runs testFunc in parallel against an exposure whose wiper fires and which is closed while the
// benchmark is still running.
func runRaceTest(b *testing.B, testFunc func(x *Exposure)) {
	e := NewEngine(nil)
	require.NoError(b, e.Init(time.Millisecond))

	defer e.Deinit()

	h, err := e.Alloc(len(raceSecret))
	require.NoError(b, err)
	require.NoError(b, e.Set(h, []byte(raceSecret)))

	x, err := e.TimedGet(h, 5*time.Millisecond)
	if assert.NoError(b, err) {
		defer x.Close()

		ready := make(chan bool)
		done := make(chan bool)

		go func(ch chan bool) {
			count := 0

			for {
				select {
				case <-ch:
					count++
				case <-done:
					return
				}

				if count >= runtime.GOMAXPROCS(0)/2 {
					assert.NoError(b, x.Close())
				}
			}
		}(ready)

		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			ready <- true

			for pb.Next() {
				testFunc(x)
			}
		})

		close(done)

		// short runs may finish before the closer has fired
		assert.NoError(b, x.Close())
		assert.True(b, x.IsClosed())
	}
}
