package storage

import "math/rand"

// Ambiguous characters (0/O, 1/I/l) are excluded so identifiers survive
// being read aloud or retyped.
const objectIDAlphabet = "23456789ABCDEFGHJKLMNPQRSTWXYZabcdefghijkmnopqrstuvwxyz"

// Container ids double as S3 bucket names, where strict naming allows only
// lowercase letters, digits and hyphens.
const containerIDAlphabet = "23456789abcdefghijkmnopqrstuvwxyz"

const idLength = 17

// NewRemoteID generates a random identifier for remote objects. Collision
// probability at this length is negligible; no uniqueness re-check is
// performed against the remote store.
func NewRemoteID() string {
	return randomID(objectIDAlphabet)
}

// NewContainerID generates a random identifier usable as a remote container
// (S3 bucket) name.
func NewContainerID() string {
	return randomID(containerIDAlphabet)
}

func randomID(alphabet string) string {
	buf := make([]byte, idLength)
	for i := range buf {
		buf[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(buf)
}
