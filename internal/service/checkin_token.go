package service

import (
	"crypto/rand"
	"encoding/hex"
)

// checkinTokenBytes yields a 20 character hex token.
const checkinTokenBytes = 10

func newCheckinToken() (string, error) {
	bytes := make([]byte, checkinTokenBytes)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
