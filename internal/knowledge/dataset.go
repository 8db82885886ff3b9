package knowledge

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/xuri/excelize/v2"
	"github.com/yoockh/yoocare/internal/models"
	"github.com/yoockh/yoocare/internal/providers/embedding"
)

const patientPrefix = "patient:"

// ReadDialogues returns the non-empty cells of the named column from a CSV or
// XLSX file. XLSX files are read from their first sheet.
func ReadDialogues(path, column string) ([]string, error) {
	var rows [][]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("open file: %w", err)
		}
		defer f.Close()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("no sheets")
		}
		rows, err = f.GetRows(sheets[0])
		if err != nil {
			return nil, fmt.Errorf("read rows: %w", err)
		}
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open file: %w", err)
		}
		defer f.Close()
		rows, err = readCSV(f)
		if err != nil {
			return nil, err
		}
	}
	return columnValues(rows, column)
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return rows, nil
}

func columnValues(rows [][]string, column string) ([]string, error) {
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}
	idx := -1
	for i, h := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), column) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, fmt.Errorf("column %q not found", column)
	}
	var out []string
	for _, r := range rows[1:] {
		if idx < len(r) && strings.TrimSpace(r[idx]) != "" {
			out = append(out, r[idx])
		}
	}
	return out, nil
}

// PatientLines extracts the patient turns of each dialogue, prefix removed,
// in file order.
func PatientLines(dialogues []string) []string {
	var out []string
	for _, d := range dialogues {
		for _, line := range strings.Split(d, "\n") {
			line = strings.TrimSpace(line)
			if len(line) < len(patientPrefix) || !strings.EqualFold(line[:len(patientPrefix)], patientPrefix) {
				continue
			}
			if text := strings.TrimSpace(line[len(patientPrefix):]); text != "" {
				out = append(out, text)
			}
		}
	}
	return out
}

// Sink stores built examples; positions continue from NextPosition.
type Sink interface {
	InsertBatch(ctx context.Context, rows []models.KBExample) error
	NextPosition(ctx context.Context) (int64, error)
}

// Build embeds texts in batches and appends them to sink. It returns the
// number of examples written.
func Build(ctx context.Context, e embedding.Provider, sink Sink, texts []string, batch int) (int, error) {
	if batch <= 0 {
		batch = 100
	}
	pos, err := sink.NextPosition(ctx)
	if err != nil {
		return 0, fmt.Errorf("next position: %w", err)
	}

	written := 0
	for start := 0; start < len(texts); start += batch {
		end := min(start+batch, len(texts))
		chunk := texts[start:end]

		vecs, err := e.Embed(ctx, chunk)
		if err != nil {
			return written, fmt.Errorf("embed batch at %d: %w", start, err)
		}
		if len(vecs) != len(chunk) {
			return written, fmt.Errorf("embed batch at %d: got %d vectors for %d texts", start, len(vecs), len(chunk))
		}

		rows := make([]models.KBExample, len(chunk))
		for i, t := range chunk {
			rows[i] = models.KBExample{
				ID:        uuid.NewString(),
				Position:  pos,
				Text:      t,
				Model:     e.Model(),
				Embedding: pgvector.NewVector(vecs[i]),
			}
			pos++
		}
		if err := sink.InsertBatch(ctx, rows); err != nil {
			return written, fmt.Errorf("insert batch at %d: %w", start, err)
		}
		written += len(rows)
	}
	return written, nil
}
