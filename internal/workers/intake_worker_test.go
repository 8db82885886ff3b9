package workers

import (
	"encoding/base64"
	"testing"
)

func TestParseIntakeMsg(t *testing.T) {
	ok := map[string]any{
		"job_id":       "j1",
		"patient_id":   "p1",
		"ext":          ".wav",
		"language":     "en",
		"audio_base64": base64.StdEncoding.EncodeToString([]byte("RIFF")),
	}
	m, err := parseIntakeMsg(ok)
	if err != nil {
		t.Fatalf("parseIntakeMsg: %v", err)
	}
	if m.JobID != "j1" || m.PatientID != "p1" || string(m.Audio) != "RIFF" || m.Language != "en" {
		t.Fatalf("msg = %+v", m)
	}

	bad := []map[string]any{
		{"patient_id": "p1", "audio_base64": "UklGRg=="},
		{"job_id": "j1", "patient_id": "p1", "audio_base64": "%%%"},
		{"job_id": "j1", "patient_id": "p1", "audio_base64": ""},
	}
	for i, v := range bad {
		if _, err := parseIntakeMsg(v); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}
