package appfs

import (
	"io/fs"
	"testing"
)

// The shared email layouts are underscore-prefixed, which plain embed
// patterns skip; the "all:" prefix must keep them in.
func TestFSIncludesUnderscoredAssets(t *testing.T) {
	files := []string{
		"assets/templates/email/_base.txt",
		"assets/templates/email/_base.gohtml",
		"assets/templates/email/password-reset.txt",
		"assets/common-passwords.txt.gz",
		"migrations/000001_init.up.sql",
		"migrations/000001_init.down.sql",
	}
	for _, name := range files {
		if _, err := fs.Stat(FS, name); err != nil {
			t.Errorf("Stat(%q) error = %v", name, err)
		}
	}
}
