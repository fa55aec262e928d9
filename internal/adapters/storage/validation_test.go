package storage

import (
	"strings"
	"testing"
)

func TestValidateContentType(t *testing.T) {
	if err := ValidateContentType("image/JPEG; charset=binary"); err != nil {
		t.Fatalf("expected jpeg to be allowed: %v", err)
	}
	if err := ValidateContentType("application/pdf"); err == nil {
		t.Fatal("expected pdf to be rejected")
	}
}

func TestValidateFileSize(t *testing.T) {
	if err := ValidateFileSize(0, 10); err == nil {
		t.Fatal("expected empty file to be rejected")
	}
	if err := ValidateFileSize(11, 10); err == nil {
		t.Fatal("expected oversized file to be rejected")
	}
	if err := ValidateFileSize(10, 10); err != nil {
		t.Fatalf("expected limit to be inclusive: %v", err)
	}
}

func TestObjectKeyKeepsExtensionAndFolder(t *testing.T) {
	key := ObjectKey("dn/DN1", `C:\photos\arrival.JPG`)
	if !strings.HasPrefix(key, "dn/DN1/arrival_") || !strings.HasSuffix(key, ".jpg") {
		t.Fatalf("unexpected key %q", key)
	}
	if ObjectKey("dn/DN1", "arrival.jpg") == key {
		t.Fatal("expected unique keys")
	}
}
