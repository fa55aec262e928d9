package phone

import "testing"

func TestNormalizeE164IndonesianMobile(t *testing.T) {
	if got := NormalizeE164(" 0811 1111 1111 "); got != "+6281111111111" {
		t.Fatalf("expected +6281111111111, got %q", got)
	}
}

func TestNormalizeE164KeepsUnparseableInput(t *testing.T) {
	if got := NormalizeE164(" call driver "); got != "call driver" {
		t.Fatalf("expected trimmed input back, got %q", got)
	}
}

func TestNormalizeOptionalBlank(t *testing.T) {
	blank := "   "
	if NormalizeOptional(&blank) != nil {
		t.Fatal("expected nil for blank phone")
	}
	if NormalizeOptional(nil) != nil {
		t.Fatal("expected nil for nil phone")
	}
}
