package cache

import (
	"bytes"
	"crypto/rand"
)

func newByteReader(b []byte) *bytes.Reader { return bytes.NewReader(b) }

func randBytes(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return b
}
