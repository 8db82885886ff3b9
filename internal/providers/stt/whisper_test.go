package stt

import "testing"

func TestWhisperLanguage(t *testing.T) {
	cases := map[string]string{
		"en-US": "en",
		"bn-BD": "bn",
		"en":    "en",
		"":      "",
	}
	for in, want := range cases {
		if got := whisperLanguage(in); got != want {
			t.Errorf("whisperLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
