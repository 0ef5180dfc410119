// Package mask implements the XOR masking primitive used to hold segment contents at rest.
//
// A pad is made of Subkeys independently drawn sub-keys, each as long as the plaintext. The effective key is the
// XOR of all sub-keys, so no single random draw fully determines the mask.
package mask

import (
	"github.com/pkg/errors"
)

// Subkeys is the number of sub-keys combined into one pad.
const Subkeys = 3

type maskError string

func (e maskError) Error() string {
	return string(e)
}

const (
	errLength    maskError = "buffer length mismatch"
	errPadLength maskError = "pad length mismatch"
)

// PadSize returns the pad length required to mask n bytes.
func PadSize(n int) int {
	return Subkeys * n
}

// Mask writes plaintext XOR key(pad) into dst. dst and plaintext must be the same length and pad must be
// PadSize(len(plaintext)) bytes long.
func Mask(dst, plaintext, pad []byte) error {
	n := len(plaintext)

	if len(dst) != n {
		return errors.Wrapf(errLength, "mask: dst has %d bytes, plaintext has %d", len(dst), n)
	}

	if len(pad) != PadSize(n) {
		return errors.Wrapf(errPadLength, "mask: pad has %d bytes, want %d", len(pad), PadSize(n))
	}

	for i := 0; i < n; i++ {
		dst[i] = plaintext[i] ^ pad[i] ^ pad[n+i] ^ pad[2*n+i]
	}

	return nil
}

// Remask swaps the pad protecting masked from oldPad to newPad in place. The result equals plaintext XOR
// key(newPad) and the plaintext is never formed along the way.
func Remask(masked, oldPad, newPad []byte) error {
	n := len(masked)

	if len(oldPad) != PadSize(n) || len(newPad) != PadSize(n) {
		return errors.Wrapf(errPadLength, "remask: pads have %d and %d bytes, want %d",
			len(oldPad), len(newPad), PadSize(n))
	}

	for i := 0; i < n; i++ {
		masked[i] ^= oldPad[i] ^ oldPad[n+i] ^ oldPad[2*n+i] ^ newPad[i] ^ newPad[n+i] ^ newPad[2*n+i]
	}

	return nil
}

// Unmask writes the first len(dst) bytes of plaintext recovered from masked into dst. dst may be shorter than
// masked but never longer.
func Unmask(dst, masked, pad []byte) error {
	n := len(masked)

	if len(dst) > n {
		return errors.Wrapf(errLength, "unmask: dst has %d bytes, masked has %d", len(dst), n)
	}

	if len(pad) != PadSize(n) {
		return errors.Wrapf(errPadLength, "unmask: pad has %d bytes, want %d", len(pad), PadSize(n))
	}

	for i := range dst {
		dst[i] = masked[i] ^ pad[i] ^ pad[n+i] ^ pad[2*n+i]
	}

	return nil
}

// Key writes the effective key of pad into dst, which must be len(pad)/Subkeys bytes long.
func Key(dst, pad []byte) error {
	n := len(dst)

	if len(pad) != PadSize(n) {
		return errors.Wrapf(errPadLength, "key: pad has %d bytes, want %d", len(pad), PadSize(n))
	}

	for i := 0; i < n; i++ {
		dst[i] = pad[i] ^ pad[n+i] ^ pad[2*n+i]
	}

	return nil
}
