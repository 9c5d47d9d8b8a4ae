package hashid

import (
	hashids "github.com/speps/go-hashids/v2"
)

// Codec reversibly maps internal numeric IDs to opaque URL tokens so that
// admin URLs do not leak sequential database identifiers. Tokens are
// obfuscation only; authorization still happens at the access gate.
type Codec struct {
	h *hashids.HashID
}

// New builds a codec from the deployment salt and minimum token length.
func New(salt string, minLength int) (*Codec, error) {
	data := hashids.NewData()
	data.Salt = salt
	data.MinLength = minLength
	h, err := hashids.NewWithData(data)
	if err != nil {
		return nil, err
	}
	return &Codec{h: h}, nil
}

// Encode returns the opaque token for id.
func (c *Codec) Encode(id uint) string {
	token, err := c.h.EncodeInt64([]int64{int64(id)})
	if err != nil {
		// Only reachable with a malformed alphabet, which New rejects.
		return ""
	}
	return token
}

// Decode recovers the id from a token. The second return value is false for
// malformed or foreign tokens; Decode never panics or errors on bad input.
func (c *Codec) Decode(token string) (uint, bool) {
	if token == "" {
		return 0, false
	}
	ids, err := c.h.DecodeInt64WithError(token)
	if err != nil || len(ids) != 1 || ids[0] < 0 {
		return 0, false
	}
	// Round-trip check rejects tokens that decode but were not produced by
	// this codec (wrong salt, truncated input).
	if c.Encode(uint(ids[0])) != token {
		return 0, false
	}
	return uint(ids[0]), true
}
