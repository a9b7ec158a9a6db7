package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// ExcelReporter writes the session's trade log to a workbook.
type ExcelReporter struct{}

func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

type excelStyles struct {
	header   int
	currency int
	plain    int
}

// WriteTradeLog writes a Trades sheet and an Exposure sheet.
func (r *ExcelReporter) WriteTradeLog(summary *SessionSummary, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const tradesSheet = "Trades"
	const exposureSheet = "Exposure"
	fx.SetSheetName(fx.GetSheetName(0), tradesSheet)
	fx.NewSheet(exposureSheet)

	styles, err := r.createStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeTradesSheet(fx, tradesSheet, summary, styles); err != nil {
		return err
	}
	if err := r.writeExposureSheet(fx, exposureSheet, summary, styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func (r *ExcelReporter) createStyles(fx *excelize.File) (excelStyles, error) {
	var styles excelStyles
	var err error

	styles.header, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:   true,
			Size:   11,
			Color:  "FFFFFF",
			Family: "Calibri",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"2F4F4F"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return styles, err
	}

	styles.currency, err = fx.NewStyle(&excelize.Style{
		NumFmt: 7,
		Alignment: &excelize.Alignment{
			Horizontal: "right",
		},
	})
	if err != nil {
		return styles, err
	}

	styles.plain, err = fx.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "left",
		},
	})
	return styles, err
}

func (r *ExcelReporter) writeTradesSheet(fx *excelize.File, sheet string, summary *SessionSummary, styles excelStyles) error {
	headers := []string{"#", "Instrument", "Strategy", "Side", "Quantity",
		"Entry Price", "Entry Time", "Exit Price", "Exit Time", "Exit Reason", "P&L"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := fx.SetCellStyle(sheet, "A1", lastHeader, styles.header); err != nil {
		return err
	}

	for i, pos := range summary.ClosedPositions {
		row := i + 2
		side := "LONG"
		qty := pos.Quantity
		if !pos.IsLong() {
			side = "SHORT"
			qty = -qty
		}
		values := []interface{}{
			i + 1,
			pos.Instrument,
			pos.StrategyID,
			side,
			qty,
			pos.EntryPrice,
			pos.EntryTime.Format("2006-01-02 15:04:05"),
			pos.ExitPrice,
			pos.ExitTime.Format("2006-01-02 15:04:05"),
			string(pos.ExitReason),
			pos.UnrealizedPnL(pos.ExitPrice),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
		pnlCell, _ := excelize.CoordinatesToCellName(len(values), row)
		fx.SetCellStyle(sheet, pnlCell, pnlCell, styles.currency)
	}

	fx.SetColWidth(sheet, "B", "C", 18)
	fx.SetColWidth(sheet, "F", "K", 16)
	return nil
}

func (r *ExcelReporter) writeExposureSheet(fx *excelize.File, sheet string, summary *SessionSummary, styles excelStyles) error {
	headers := []string{"Instrument", "Committed Notional", "As Of"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	if err := fx.SetCellStyle(sheet, "A1", "C1", styles.header); err != nil {
		return err
	}

	for i, rec := range summary.Exposure {
		row := i + 2
		values := []interface{}{
			rec.Instrument,
			rec.CommittedNotional,
			rec.AsOf.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
		notionalCell, _ := excelize.CoordinatesToCellName(2, row)
		fx.SetCellStyle(sheet, notionalCell, notionalCell, styles.currency)
	}

	fx.SetColWidth(sheet, "A", "C", 20)
	return nil
}
