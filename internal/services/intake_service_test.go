package services

import (
	"context"
	"errors"
	"testing"

	"github.com/yoockh/yoocare/internal/models"
	"github.com/yoockh/yoocare/internal/quota"
	"github.com/yoockh/yoocare/internal/retry"
	"github.com/yoockh/yoocare/internal/utils"
)

type pipelineFixture struct {
	llm      *scriptedLLM
	quota    *quota.Manager
	channel  *fakeChannel
	audits   *fakeAuditStore
	assign   *MemoryAssignmentStore
	patients *fakePatients
	voices   *fakeVoices
	stt      *fakeSTT
	pre      *fakePreprocessor
}

const riskHint = "medical triage assistant"

func newPipeline(t *testing.T, riskJSON string) (IntakeService, *pipelineFixture) {
	t.Helper()

	f := &pipelineFixture{
		llm: &scriptedLLM{byHint: map[string]string{
			"medical conversation analyzer": `{"patient_context": "My chest has been hurting since this morning."}`,
			riskHint:                        riskJSON,
		}},
		quota:   quota.NewManager(quota.NewMemoryStore(), map[string]int{"m": 100}, 0.8),
		channel: &fakeChannel{},
		audits:  &fakeAuditStore{},
		assign:  NewMemoryAssignmentStore(map[string]int64{"d-card-a": 3, "d-card-b": 1}),
		patients: &fakePatients{byID: map[string]*models.Patient{
			"p1": {ID: "p1", FullName: "Pat", Age: 61, Gender: "male", Symptoms: []string{"hypertension"}},
		}},
		voices: &fakeVoices{},
		stt: &fakeSTT{tr: models.Transcript{Language: "en-US", Segments: []models.Segment{
			{Start: 0, End: 2, Text: "Doctor: What's wrong?"},
			{Start: 2, End: 5, Text: "Patient: My chest has been hurting since this morning."},
		}}},
		pre: &fakePreprocessor{},
	}

	m, l := testMetrics(), testLogger()
	matcher := NewSpecialistMatcher(SpecialistMatcherConfig{}, &fakeDirectory{entries: catalogFixture()}, embedFixture(), m, l)
	if err := matcher.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	svc := NewIntakeService(IntakeDeps{
		Preprocessor: f.pre,
		Patients:     f.patients,
		Voices:       f.voices,
		Transcriber:  NewTranscriber(f.stt, retry.None),
		Extractor: NewContextExtractor(ContextExtractorConfig{Model: "m"}, f.llm, f.quota,
			&fakeEmbedder{dim: 4}, &fakeRetriever{examples: []string{"I have chest pain"}}, m, l),
		Analyzer:   NewRiskAnalyzer(RiskAnalyzerConfig{Model: "m"}, f.llm, f.quota, m, l),
		Matcher:    matcher,
		Balancer:   NewAssignmentBalancer(f.assign, m),
		Dispatcher: NewAlertDispatcher(f.channel, 0, m, l),
		Auditor:    NewAuditRecorder(f.audits),
		Metrics:    m,
		Logger:     l,
	})
	return svc, f
}

func submit(svc IntakeService, stages *[]string) (*IntakeResult, error) {
	return svc.Submit(context.Background(), IntakeRequest{
		RunID:     "run-1",
		PatientID: "p1",
		Audio:     []byte("RIFF...."),
		Ext:       "WAV",
		OnStage: func(s string) {
			if stages != nil {
				*stages = append(*stages, s)
			}
		},
	})
}

func TestSubmitHighUrgencyAlertsLeastLoadedDoctor(t *testing.T) {
	svc, f := newPipeline(t, `[{"symptoms":["chest pain"],"disease":"Angina","probability":80,"urgency":"High","recommended_specialist":"heart doctor","advice":"Go to ER"}]`)

	var stages []string
	res, err := submit(svc, &stages)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if res.Transcript != "Doctor: What's wrong? Patient: My chest has been hurting since this morning." {
		t.Fatalf("transcript = %q", res.Transcript)
	}
	if res.PatientContext != "My chest has been hurting since this morning." {
		t.Fatalf("context = %q", res.PatientContext)
	}
	if res.MatchedDoctorID == nil || *res.MatchedDoctorID != "d-card-b" {
		t.Fatalf("matched doctor = %v, want least loaded d-card-b", res.MatchedDoctorID)
	}
	if !res.AlertSent || len(res.Alert.Method) != 1 || res.Alert.Method[0] != "email" {
		t.Fatalf("alert = %+v", res.Alert)
	}
	if f.assign.Count("d-card-b") != 2 || f.assign.Count("d-card-a") != 3 {
		t.Fatalf("counters a=%d b=%d", f.assign.Count("d-card-a"), f.assign.Count("d-card-b"))
	}
	if res.Status != models.AuditStatusCompleted || res.AuditID != "audit-run-1" {
		t.Fatalf("status=%q audit=%q", res.Status, res.AuditID)
	}

	if len(f.audits.entries) != 1 {
		t.Fatalf("audit entries = %d", len(f.audits.entries))
	}
	a := f.audits.entries[0]
	if a.Disease != "Angina" || a.VoiceURL != "gs://voice/p1.wav" || len(a.Keywords) != 1 || !a.Alert.Sent {
		t.Fatalf("audit = %+v", a)
	}

	want := []string{StageValidate, StagePatient, StageStore, StagePreprocess, StageTranscribe,
		StageExtract, StageAnalyze, StageMatch, StageAssign, StageAlert, StageAudit}
	if len(stages) != len(want) {
		t.Fatalf("stages = %v", stages)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Fatalf("stage %d = %q, want %q", i, stages[i], want[i])
		}
	}
}

func TestSubmitLowUrgencyNeverAlerts(t *testing.T) {
	svc, f := newPipeline(t, `[{"symptoms":["rash"],"disease":"Eczema","probability":60,"urgency":"low","recommended_specialist":"cardiology"}]`)

	res, err := submit(svc, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.AlertSent || len(f.channel.sent) != 0 {
		t.Fatalf("low urgency dispatched an alert")
	}
	if res.MatchedDoctorID == nil || *res.MatchedDoctorID != "d-card-a" {
		t.Fatalf("matched doctor = %v", res.MatchedDoctorID)
	}
	if f.assign.Count("d-card-a") != 3 || f.assign.Count("d-card-b") != 1 {
		t.Fatalf("low urgency must not move counters")
	}
}

func TestSubmitUnmatchedSpecialistSkipsAlert(t *testing.T) {
	svc, f := newPipeline(t, `[{"disease":"Unknown","urgency":"high","recommended_specialist":"astrology"}]`)

	res, err := submit(svc, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.MatchedDoctorID != nil || res.AlertSent || len(f.channel.sent) != 0 {
		t.Fatalf("unmatched run = %+v", res)
	}
	if res.Status != models.AuditStatusCompleted {
		t.Fatalf("status = %q", res.Status)
	}
}

func TestSubmitDegradedRuns(t *testing.T) {
	t.Run("unparseable risk", func(t *testing.T) {
		svc, f := newPipeline(t, "no idea")
		res, err := submit(svc, nil)
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		p, _ := res.Risk.Primary()
		if p.Error == "" || p.Urgency != models.UrgencyLow || res.AlertSent {
			t.Fatalf("risk = %+v", res.Risk)
		}
		if res.Status != models.AuditStatusDegraded || f.audits.entries[0].Status != models.AuditStatusDegraded {
			t.Fatalf("status = %q", res.Status)
		}
		if got := f.audits.entries[0].Keywords; len(got) != 1 || got[0] != "hypertension" {
			t.Fatalf("keywords = %v, want patient symptoms", got)
		}
	})

	t.Run("delivery failure", func(t *testing.T) {
		svc, f := newPipeline(t, `[{"disease":"Angina","urgency":"medium","recommended_specialist":"cardiology"}]`)
		f.channel.err = errors.New("smtp down")
		res, err := submit(svc, nil)
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if res.AlertSent || len(res.Alert.Method) != 0 || len(f.channel.sent) != 1 {
			t.Fatalf("alert = %+v attempts=%d", res.Alert, len(f.channel.sent))
		}
		if res.Status != models.AuditStatusDegraded {
			t.Fatalf("status = %q", res.Status)
		}
	})
}

func TestSubmitFatalErrorsWritePartialAudit(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *pipelineFixture)
		ext   string
		code  utils.Code
		// fields expected in the partial audit
		voice      bool
		transcript bool
	}{
		{name: "bad extension", ext: ".exe", code: utils.CodeInvalidArgument},
		{name: "unknown patient", setup: func(f *pipelineFixture) { delete(f.patients.byID, "p1") }, code: utils.CodeNotFound},
		{name: "storage down", setup: func(f *pipelineFixture) {
			f.voices.err = utils.E(utils.CodeUnavailable, "test", "gcs down", nil)
		}, code: utils.CodeUnavailable},
		{name: "stt down", setup: func(f *pipelineFixture) { f.stt.err = errors.New("speech down") }, code: utils.CodeUnavailable, voice: true},
		{name: "quota exhausted", setup: func(f *pipelineFixture) {
			for {
				if err := f.quota.Reserve(context.Background(), "m"); err != nil {
					return
				}
			}
		}, code: utils.CodeQuotaExceeded, voice: true, transcript: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, f := newPipeline(t, `[]`)
			if tt.setup != nil {
				tt.setup(f)
			}
			ext := tt.ext
			if ext == "" {
				ext = ".wav"
			}
			res, err := svc.Submit(context.Background(), IntakeRequest{RunID: "run-x", PatientID: "p1", Audio: []byte("x"), Ext: ext})
			if !utils.IsCode(err, tt.code) {
				t.Fatalf("err = %v, want %s", err, tt.code)
			}
			if res == nil || res.Status != models.AuditStatusFailed || res.AuditID == "" {
				t.Fatalf("partial result = %+v", res)
			}
			if len(f.audits.entries) != 1 {
				t.Fatalf("audit entries = %d, want 1", len(f.audits.entries))
			}
			a := f.audits.entries[0]
			if a.Status != models.AuditStatusFailed || a.Error != string(tt.code) {
				t.Fatalf("audit status=%q error=%q", a.Status, a.Error)
			}
			if (a.VoiceURL != "") != tt.voice || (a.Transcript != "") != tt.transcript {
				t.Fatalf("partial audit fields voice=%q transcript=%q", a.VoiceURL, a.Transcript)
			}
			if a.Alert.Sent || len(f.channel.sent) != 0 {
				t.Fatalf("fatal run dispatched an alert")
			}
		})
	}
}
