package digest

import (
	"bytes"
	"crypto/sha256"
	"testing"
)

func TestNewKnownAlgorithms(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			h, err := New(name)
			if err != nil {
				t.Fatalf("New(%q): %v", name, err)
			}
			h.Write([]byte("some bytes"))
			if len(h.Sum(nil)) == 0 {
				t.Error("empty digest")
			}
		})
	}
}

func TestNewUnknown(t *testing.T) {
	if _, err := New("md5"); err == nil {
		t.Error("expected error for unsupported algorithm")
	}
}

func TestSha256MatchesStdlib(t *testing.T) {
	data := []byte("the quick brown fox")

	h, err := New(Default)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.Write(data)

	want := sha256.Sum256(data)
	if !bytes.Equal(h.Sum(nil), want[:]) {
		t.Error("sha256 digest does not match crypto/sha256")
	}
}

func TestIncrementalEqualsOneShot(t *testing.T) {
	data := make([]byte, 10000)
	for i := range data {
		data[i] = byte(i)
	}

	for _, name := range Names() {
		one, _ := New(name)
		one.Write(data)

		inc, _ := New(name)
		for i := 0; i < len(data); i += 777 {
			end := i + 777
			if end > len(data) {
				end = len(data)
			}
			inc.Write(data[i:end])
		}

		if !bytes.Equal(one.Sum(nil), inc.Sum(nil)) {
			t.Errorf("%s: incremental digest differs from one-shot", name)
		}
	}
}
