package checksum

import "testing"

func TestOf(t *testing.T) {
	fp := Of([]byte("abc"))
	if fp.Sum != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Errorf("sum = %q", fp.Sum)
	}
	if fp.Size != 3 {
		t.Errorf("size = %d, want 3", fp.Size)
	}
}

func TestOf_Empty(t *testing.T) {
	fp := Of(nil)
	if fp.Size != 0 || len(fp.Sum) != 64 {
		t.Errorf("unexpected fingerprint %+v", fp)
	}
}
