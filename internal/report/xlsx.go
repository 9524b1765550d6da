package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/utils"
)

const sheetName = "Files"

var fixedColumns = []string{
	"Index",
	"Final Name",
	"File ID",
	"Final Label",
	"Label Source",
	"Match Status",
	"Score",
}

// ExportXLSX returns a workbook (as bytes) with one row per file of the job and
// one column per extracted field key, in first-seen order across files.
func (s *Service) ExportXLSX(ctx context.Context, jobID string) ([]byte, error) {
	start := time.Now()
	_, rows, err := s.collect(ctx, jobID)
	if err != nil {
		return nil, err
	}
	keys := FieldColumns(rows)

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	headers := append(append([]string(nil), fixedColumns...), keys...)
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	for i, r := range rows {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}

		label := r.Block.FinalLabel
		if label == "" {
			label = constants.Unlabeled
		}
		write(1, r.Block.Index)
		write(2, r.Block.FinalName)
		write(3, r.Block.FileID)
		write(4, label)
		write(5, string(r.LabelSource))
		if r.Match != nil {
			write(6, string(r.Match.Status))
			write(7, r.Match.Score)
		}
		for j, k := range keys {
			if !r.Block.Schema.Has(k) {
				if _, ok := r.Block.Fields[k]; !ok {
					continue
				}
			}
			write(len(fixedColumns)+j+1, utils.FormatValue(r.Block.Fields[k]))
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 8)  // index
	_ = f.SetColWidth(sheetName, "B", "B", 40) // final name
	_ = f.SetColWidth(sheetName, "C", "C", 28) // file id
	_ = f.SetColWidth(sheetName, "D", "F", 16)
	_ = f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	common.LoggerWith(common.WithJobID(ctx, jobID), s.logger).Info("report.xlsx.ok",
		"rows", len(rows),
		"field_columns", len(keys),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// FieldColumns lists field keys in first-seen order across rows. Within a row
// schema keys come first, then any other extracted keys alphabetically.
func FieldColumns(rows []Row) []string {
	seen := map[string]bool{}
	var out []string
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, r := range rows {
		for _, k := range r.Block.Schema.Keys() {
			add(k)
		}
		extra := make([]string, 0, len(r.Block.Fields))
		for k := range r.Block.Fields {
			if !r.Block.Schema.Has(k) {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		for _, k := range extra {
			add(k)
		}
	}
	return out
}
