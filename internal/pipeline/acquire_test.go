package pipeline

import (
	"strings"
	"testing"
)

func TestTrimmedFileName(t *testing.T) {
	cases := map[string]string{
		"/dl/task-1/Thunderstruck.wav":         "trimmed_Thunderstruck.wav",
		"/dl/task-1/AC_DC - Thunderstruck.wav": "trimmed_AC_DC_-_Thunderstruck.wav",
		"/uploads/3f2a.mp3":                    "trimmed_3f2a.wav",
		"/dl/task-1/残酷な天使のテーゼ.wav":            "trimmed_残酷な天使のテーゼ.wav",
	}

	for in, want := range cases {
		got := trimmedFileName(in)
		if got != want {
			t.Errorf("trimmedFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTrimmedFileName_NeverContainsSeparators(t *testing.T) {
	// Provider titles with path separators must not leak into the trim
	// output name; only the already-downloaded file's base name is used.
	inputs := []string{
		"/dl/task-1/AC⧸DC - Thunderstruck.wav",
		"/dl/task-1/a b'c\"d.wav",
		"relative file.wav",
	}

	for _, in := range inputs {
		got := trimmedFileName(in)
		if strings.ContainsAny(got, `/\`) {
			t.Errorf("trimmedFileName(%q) = %q contains a path separator", in, got)
		}
		if !strings.HasPrefix(got, "trimmed_") || !strings.HasSuffix(got, ".wav") {
			t.Errorf("trimmedFileName(%q) = %q has wrong shape", in, got)
		}
	}
}
