// Package id provides identifier generation for jobs and requests.
package id

import "github.com/google/uuid"

// UUIDGenerator implements quiz.IDGenerator using random UUIDs.
type UUIDGenerator struct{}

// New returns a UUIDGenerator.
func New() *UUIDGenerator {
	return &UUIDGenerator{}
}

// NewID returns a fresh UUIDv4 string.
func (UUIDGenerator) NewID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
