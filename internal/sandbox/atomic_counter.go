package sandbox

import (
	"strconv"
	"sync/atomic"
)

type atomicCounter struct {
	n atomic.Uint64
}

func newAtomicCounter() *atomicCounter {
	return &atomicCounter{}
}

func (c *atomicCounter) next() string {
	return strconv.FormatUint(c.n.Add(1), 10)
}
