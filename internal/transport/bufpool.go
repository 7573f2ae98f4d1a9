package transport

import "sync"

// maxDatagramSize is the largest UDP datagram we read in one ReadFrom call.
// RTPS messages that exceed this are fragmented at the writer (DATAFRAG), so
// a single-packet buffer this size comfortably covers any one submessage.
const maxDatagramSize = 65536

var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, maxDatagramSize)
		return &b
	},
}

// GetBuffer returns a pooled, maxDatagramSize-length buffer. Adapted from the
// teacher's internal/transport buffer pool (referenced by udp.go's Receive)
// to keep the receive path allocation-free after warmup.
func GetBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

// PutBuffer returns a buffer obtained from GetBuffer to the pool.
func PutBuffer(buf *[]byte) {
	bufferPool.Put(buf)
}
