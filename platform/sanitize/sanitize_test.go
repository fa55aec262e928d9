package sanitize

import "testing"

func TestTextStripsMarkupAndControls(t *testing.T) {
	got := Text("  <b>Arrived</b> at\x07 site &lt;script&gt;x&lt;/script&gt; ")
	if got != "Arrived at site x" {
		t.Fatalf("unexpected sanitized text %q", got)
	}
}

func TestRemarkTruncatesAndNilsBlank(t *testing.T) {
	blank := "   <i></i> "
	if Remark(&blank, 10) != nil {
		t.Fatal("expected nil for blank remark")
	}

	long := "仓库已经发车了，司机联系中"
	got := Remark(&long, 5)
	if got == nil || *got != "仓库已经发" {
		t.Fatalf("expected rune-safe truncation, got %v", got)
	}
}
