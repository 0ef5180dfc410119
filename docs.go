/*
Package maskedmemory keeps secrets XOR-masked while they sit in process memory.

Callers allocate a fixed-size segment, set its content once and read it back only when needed. At rest the content
is stored as plaintext XOR a random pad, in memory that is locked against swapping, excluded from core dumps and
marked no-access between operations. A background refresher draws a fresh pad for every segment on a fixed cadence
and re-masks in place without reconstructing the plaintext, so two memory snapshots taken a refresh interval apart
do not share an encoding.

	package main

	import (
		"fmt"
		"time"

		"github.com/godaddy/asherah/go/maskedmemory"
	)

	func main() {
		if err := maskedmemory.Init(maskedmemory.DefaultRefreshInterval); err != nil {
			panic("unexpected error!")
		}
		defer maskedmemory.Deinit()

		secret := getSecretFromStore()

		h, err := maskedmemory.Alloc(len(secret))
		if err != nil {
			panic("unexpected error!")
		}
		defer maskedmemory.Free(h)

		// secret is wiped once it has been masked into the segment
		if err := maskedmemory.Set(h, secret); err != nil {
			panic("unexpected error!")
		}

		// the exposed copy wipes itself after five seconds
		x, err := maskedmemory.TimedGet(h, 5*time.Second)
		if err != nil {
			panic("unexpected error!")
		}
		defer x.Close()

		err = x.WithBytes(func(b []byte) error {
			doSomethingWithSecretBytes(b)
			return nil
		})
		if err != nil {
			panic("unexpected error!")
		}
	}
*/
package maskedmemory
