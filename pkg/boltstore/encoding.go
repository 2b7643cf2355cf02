package boltstore

import (
	"bytes"
	"encoding/gob"
)

func init() {
	gob.Register(Account{})
}

// encodeAccount serializes an Account to bytes using gob.
func encodeAccount(acc *Account) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(acc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeAccount deserializes bytes back into an Account.
func decodeAccount(data []byte) (*Account, error) {
	var acc Account
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&acc); err != nil {
		return nil, err
	}
	return &acc, nil
}
