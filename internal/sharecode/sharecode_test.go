package sharecode

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	encoder, err := NewEncoder("unit-test-salt")
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}

	for _, id := range []int64{1, 42, 987654321} {
		code, err := encoder.Encode(id)
		if err != nil {
			t.Fatalf("encode %d: %v", id, err)
		}
		if len(code) < 8 {
			t.Fatalf("code %q shorter than minimum length", code)
		}
		got, err := encoder.Decode(code)
		if err != nil {
			t.Fatalf("decode %q: %v", code, err)
		}
		if got != id {
			t.Fatalf("round trip: want=%d got=%d", id, got)
		}
	}
}

func TestDecodeGarbage(t *testing.T) {
	encoder, err := NewEncoder("unit-test-salt")
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}

	if _, err := encoder.Decode("!!!not-a-code!!!"); err == nil {
		t.Fatalf("garbage code decoded without error")
	}
}

func TestSaltChangesCodes(t *testing.T) {
	first, err := NewEncoder("salt-one")
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}
	second, err := NewEncoder("salt-two")
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}

	codeOne, _ := first.Encode(7)
	codeTwo, _ := second.Encode(7)
	if codeOne == codeTwo {
		t.Fatalf("different salts produced the same code %q", codeOne)
	}
}
