package client

import (
	"fmt"
	"math/rand/v2"
	"os"
)

// Identity is the broker-facing identity of a client process.
type Identity struct {
	Hostname      string
	Name          string // optional
	Disambiguator int    // 0..99
	PID           int
}

// NewIdentity builds an identity for the current process.
func NewIdentity(name string) Identity {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}

	return Identity{
		Hostname:      host,
		Name:          name,
		Disambiguator: rand.IntN(100),
		PID:           os.Getpid(),
	}
}

// String returns "{hostname}-{name}-{n}-{pid}", leaving out the name when it is empty.
func (id Identity) String() string {
	if id.Name == "" {
		return fmt.Sprintf("%s-%d-%d", id.Hostname, id.Disambiguator, id.PID)
	}
	return fmt.Sprintf("%s-%s-%d-%d", id.Hostname, id.Name, id.Disambiguator, id.PID)
}
