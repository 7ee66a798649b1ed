package pipeline

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"Bohemian Rhapsody":         "Bohemian_Rhapsody",
		"AC/DC - Back in Black":     "AC_DC_-_Back_in_Black",
		"song.mp3":                  "song.mp3",
		"what's up?":                "what_s_up_",
		"Größenwahn":                "Größenwahn",
		"残酷な天使のテーゼ":                 "残酷な天使のテーゼ",
		"already_safe-name.0":       "already_safe-name.0",
		"tabs\tand\nnewlines":       "tabs_and_newlines",
		"slashes/are\\not/welcome":  "slashes_are_not_welcome",
		"quotes\"and'percent%signs": "quotes_and_percent_signs",
	}

	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanup_RemovesFilesAndDirs(t *testing.T) {
	dir := t.TempDir()

	file := filepath.Join(dir, "artifact.mp3")
	if err := os.WriteFile(file, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	workDir := filepath.Join(dir, "work")
	if err := os.MkdirAll(filepath.Join(workDir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	Cleanup(file, workDir, "", filepath.Join(dir, "never-existed"))

	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Errorf("expected %s removed", file)
	}
	if _, err := os.Stat(workDir); !os.IsNotExist(err) {
		t.Errorf("expected %s removed", workDir)
	}
}
