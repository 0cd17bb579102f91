package pool

import (
	"bytes"
	"sync"
)

// BufferPool holds buffers used to encode frames before they are uploaded or served.
var BufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

func GetBuffer() *bytes.Buffer {
	return BufferPool.Get().(*bytes.Buffer)
}

// PutBuffer resets buf and returns it to the pool.
func PutBuffer(buf *bytes.Buffer) {
	buf.Reset()
	BufferPool.Put(buf)
}
