package pool

import "testing"

func TestGetBufferSizes(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantCap int
	}{
		{"zero", 0, SmallBufferSize},
		{"page header", 27, SmallBufferSize},
		{"small boundary", SmallBufferSize, SmallBufferSize},
		{"page payload", SmallBufferSize + 1, PageBufferSize},
		{"page boundary", PageBufferSize, PageBufferSize},
		{"oversized", PageBufferSize + 1, PageBufferSize + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := GetBuffer(tt.size)
			if len(buf) != tt.size {
				t.Errorf("len = %d, want %d", len(buf), tt.size)
			}
			if cap(buf) != tt.wantCap {
				t.Errorf("cap = %d, want %d", cap(buf), tt.wantCap)
			}
			PutBuffer(buf)
		})
	}
}

func TestPutBufferReuse(t *testing.T) {
	buf := GetBuffer(27)
	for i := range buf {
		buf[i] = 0xAA
	}
	PutBuffer(buf)

	again := GetBuffer(64)
	if cap(again) != SmallBufferSize {
		t.Errorf("cap = %d, want %d", cap(again), SmallBufferSize)
	}
	PutBuffer(again)
}
