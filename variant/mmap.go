package variant

import mmap "github.com/edsrzf/mmap-go"

// mmapAlloc reserves an anonymous mmap region sized n, used by the
// extra-size arena for large out-of-line string/byte-sequence buffers.
func mmapAlloc(n int) ([]byte, error) {
	if n <= 0 {
		n = 1
	}
	m, err := mmap.MapRegion(nil, n, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, err
	}
	return []byte(m), nil
}

// mmapFree releases a region previously returned by mmapAlloc.
func mmapFree(buf []byte) error {
	m := mmap.MMap(buf)
	return m.Unmap()
}
