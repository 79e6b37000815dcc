package registration

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/speps/go-hashids/v2"
)

// ReferenceGenerator issues short opaque reference ids. A process wide
// counter is mixed in so two ids generated in the same millisecond differ.
type ReferenceGenerator struct {
	h       *hashids.HashID
	counter atomic.Int64
	now     func() time.Time
}

func NewReferenceGenerator(salt string) (*ReferenceGenerator, error) {
	if salt == "" {
		salt = uuid.NewString()
	}

	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = 10

	h, err := hashids.NewWithData(hd)
	if err != nil {
		return nil, err
	}
	return &ReferenceGenerator{h: h, now: time.Now}, nil
}

func (g *ReferenceGenerator) New() (string, error) {
	n := g.counter.Add(1)
	return g.h.EncodeInt64([]int64{g.now().UnixMilli(), n})
}
