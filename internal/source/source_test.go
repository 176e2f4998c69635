package source

import "testing"

func TestCopyPackedRowsRemovesStridePadding(t *testing.T) {
	// 2x2 plane, row bytes 4, stride 6 (2 padding bytes per row).
	src := []byte{
		1, 2, 3, 4, 0, 0,
		5, 6, 7, 8, 0, 0,
	}
	dst := make([]byte, 8)
	copyPackedRows(dst, src, 2, 4, 6)

	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("dst[%d] = %d, want %d", i, dst[i], want[i])
		}
	}
}

func TestCopyPackedRowsNoPadding(t *testing.T) {
	src := []byte{1, 2, 3, 4, 5, 6}
	dst := make([]byte, 6)
	copyPackedRows(dst, src, 1, 6, 6)

	for i := range src {
		if dst[i] != src[i] {
			t.Fatalf("dst[%d] = %d, want %d", i, dst[i], src[i])
		}
	}
}
