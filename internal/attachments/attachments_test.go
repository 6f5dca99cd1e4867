package attachments

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ferrule/courier/internal/conversation"
)

func TestMediaType(t *testing.T) {
	tests := []struct {
		name string
		att  conversation.Attachment
		want string
	}{
		{"explicit wins", conversation.Attachment{MediaType: "image/png", Filename: "x.jpg"}, "image/png"},
		{"jpg extension", conversation.Attachment{Filename: "cat.jpg"}, "image/jpeg"},
		{"jpeg extension", conversation.Attachment{Filename: "cat.JPEG"}, "image/jpeg"},
		{"png extension", conversation.Attachment{Filename: "shot.png"}, "image/png"},
		{"webp extension", conversation.Attachment{Filename: "pic.webp"}, "image/webp"},
		{"gif extension", conversation.Attachment{Filename: "anim.gif"}, "image/gif"},
		{"path fallback", conversation.Attachment{Path: "/tmp/snap.png"}, "image/png"},
		{"unknown extension", conversation.Attachment{Filename: "doc.bin"}, "image/jpeg"},
		{"no name at all", conversation.Attachment{}, "image/jpeg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MediaType(tt.att, nil); got != tt.want {
				t.Errorf("MediaType = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveInlineData(t *testing.T) {
	data := []byte{0xFF, 0xD8, 0xFF}
	got, err := Resolve(conversation.Attachment{Data: data, Path: "/nonexistent"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("inline data not preferred: got %v", got)
	}
}

func TestResolvePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.png")
	if err := os.WriteFile(path, []byte("pngbytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Resolve(conversation.Attachment{Path: path})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if string(got) != "pngbytes" {
		t.Errorf("Resolve = %q", got)
	}
}

func TestResolveErrors(t *testing.T) {
	if _, err := Resolve(conversation.Attachment{Path: filepath.Join(t.TempDir(), "missing.png")}); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Resolve(conversation.Attachment{Filename: "ghost.png"}); err == nil {
		t.Error("expected error for attachment with no source")
	}
}
