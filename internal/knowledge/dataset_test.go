package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"github.com/yoockh/yoocare/internal/models"
)

func TestPatientLines(t *testing.T) {
	got := PatientLines([]string{
		"Doctor: When did it start?\nPatient: Around eleven in the morning.\nPATIENT:  Yeah. \nPatient:",
		"Doctor: Anything else?\n  patient: I'm having blurry vision.",
	})
	want := []string{"Around eleven in the morning.", "Yeah.", "I'm having blurry vision."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("PatientLines() = %q, want %q", got, want)
	}
}

func TestReadDialoguesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dialogs.csv")
	body := "id,section_header,dialogue\n" +
		"1,GENHX,\"Doctor: Hi.\nPatient: My head hurts.\"\n" +
		"2,GENHX,\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := ReadDialogues(path, "dialogue")
	if err != nil {
		t.Fatalf("ReadDialogues: %v", err)
	}
	if len(got) != 1 || !strings.Contains(got[0], "Patient: My head hurts.") {
		t.Fatalf("ReadDialogues() = %q", got)
	}
}

func TestReadDialoguesXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dialogs.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	_ = f.SetCellValue(sheet, "A1", "Dialogue")
	_ = f.SetCellValue(sheet, "A2", "Patient: I feel dizzy.")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	got, err := ReadDialogues(path, "dialogue")
	if err != nil {
		t.Fatalf("ReadDialogues: %v", err)
	}
	if want := []string{"Patient: I feel dizzy."}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ReadDialogues() = %q, want %q", got, want)
	}
}

func TestReadDialoguesMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dialogs.csv")
	_ = os.WriteFile(path, []byte("id,text\n1,hello\n"), 0o644)
	if _, err := ReadDialogues(path, "dialogue"); err == nil {
		t.Fatal("expected error for missing column")
	}
}

type stubEmbedder struct{ calls int }

func (s *stubEmbedder) Model() string { return "stub" }

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

type memSink struct {
	next int64
	rows []models.KBExample
}

func (m *memSink) NextPosition(context.Context) (int64, error) { return m.next, nil }

func (m *memSink) InsertBatch(_ context.Context, rows []models.KBExample) error {
	m.rows = append(m.rows, rows...)
	return nil
}

func TestBuildContinuesPositions(t *testing.T) {
	e := &stubEmbedder{}
	sink := &memSink{next: 7}

	n, err := Build(context.Background(), e, sink, []string{"a", "bb", "ccc"}, 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if n != 3 || e.calls != 2 || len(sink.rows) != 3 {
		t.Fatalf("n=%d calls=%d rows=%d", n, e.calls, len(sink.rows))
	}
	for i, r := range sink.rows {
		if r.Position != int64(7+i) || r.Model != "stub" || r.ID == "" {
			t.Fatalf("row %d = %+v", i, r)
		}
	}
	if got := sink.rows[2].Embedding.Slice(); got[0] != 3 {
		t.Fatalf("embedding = %v", got)
	}
}
