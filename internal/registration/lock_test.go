package registration

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()

	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("r1")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
	assert.Empty(t, k.locks)
}

func TestReferenceGenerator(t *testing.T) {
	g, err := NewReferenceGenerator("")
	assert.NoError(t, err)

	a, err := g.New()
	assert.NoError(t, err)
	b, err := g.New()
	assert.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.GreaterOrEqual(t, len(a), 10)
	assert.Regexp(t, `^[A-Za-z0-9]+$`, a)
}
