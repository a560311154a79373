package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWalker_Walk(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{
		"b.yaml",
		"a/recipes.yml",
		"a/notes.txt",
		"drafts/wip.yaml",
	} {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := NewWalker(nil, []string{"drafts/"}).Walk(root)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		filepath.Join(root, "a", "recipes.yml"),
		filepath.Join(root, "b.yaml"),
	}
	if len(files) != len(want) {
		t.Fatalf("expected %v, got %v", want, files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("position %d: got %s, want %s", i, files[i], want[i])
		}
	}
}
