package sharecode

import (
	"fmt"

	hashids "github.com/speps/go-hashids/v2"
)

// Encoder derives short public codes from place ids, so approved places can
// be shared without exposing raw sequence numbers.
type Encoder struct {
	h *hashids.HashID
}

func NewEncoder(salt string) (*Encoder, error) {
	data := hashids.NewData()
	data.Salt = salt
	data.MinLength = 8

	h, err := hashids.NewWithData(data)
	if err != nil {
		return nil, err
	}
	return &Encoder{h: h}, nil
}

func (e *Encoder) Encode(id int64) (string, error) {
	return e.h.EncodeInt64([]int64{id})
}

func (e *Encoder) Decode(code string) (int64, error) {
	ids, err := e.h.DecodeInt64WithError(code)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("share code %q decodes to nothing", code)
	}
	return ids[0], nil
}
