// Package secrets holds helpers shared by types that expose plaintext through a callback.
package secrets

// BytesWrapper contains the WithBytes method that provides scoped access to an internal byte slice.
type BytesWrapper interface {
	WithBytes(action func([]byte) error) (err error)
}
