package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"backoffice/internal/domain"
)

const (
	dateLayout = "02/01/2006"
	sheetName  = "Sheet1"
	utf8BOM    = "\ufeff"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Table is a header plus rows of string, int, time.Time or decimal values.
type Table struct {
	Header []string
	Rows   [][]any
}

func SalesTable(sales []domain.Sale) Table {
	table := Table{Header: []string{"Date", "Description", "Store", "Salesperson", "Amount"}}
	for _, sale := range sales {
		table.Rows = append(table.Rows, []any{sale.Date, sale.Description, string(sale.Store), string(sale.Salesperson), sale.Amount})
	}
	return table
}

func TransactionsTable(txs []domain.Transaction) Table {
	table := Table{Header: []string{"Date", "Description", "Store", "Category", "Amount"}}
	for _, tx := range txs {
		table.Rows = append(table.Rows, []any{tx.Date, tx.Description, string(tx.Store), tx.Category.Label(), tx.Amount})
	}
	return table
}

func InventoryTable(items []domain.InventoryItem) Table {
	table := Table{Header: []string{"Product", "SKU", "Category", "Quantity", "Min Quantity", "Unit Cost", "Unit Price"}}
	for _, item := range items {
		table.Rows = append(table.Rows, []any{item.Name, item.SKU, item.Category, item.Quantity, item.MinQuantity, item.UnitCost, item.UnitPrice})
	}
	return table
}

func Write(w io.Writer, format Format, table Table) error {
	if format == FormatXLSX {
		return WriteXLSX(w, table)
	}
	return WriteCSV(w, table)
}

// WriteCSV prefixes a UTF-8 BOM so spreadsheet tools detect the encoding.
func WriteCSV(w io.Writer, table Table) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(table.Header); err != nil {
		return err
	}
	for _, row := range table.Rows {
		record := make([]string, len(row))
		for i, value := range row {
			record[i] = formatText(value)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func WriteXLSX(w io.Writer, table Table) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return err
	}

	header := make([]any, len(table.Header))
	for i, name := range table.Header {
		header[i] = name
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}

	for r, row := range table.Rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			switch v := value.(type) {
			case decimal.Decimal:
				if err := f.SetCellFloat(sheetName, cell, v.Round(2).InexactFloat64(), 2, 64); err != nil {
					return err
				}
				if err := f.SetCellStyle(sheetName, cell, cell, moneyStyle); err != nil {
					return err
				}
			case int:
				if err := f.SetCellValue(sheetName, cell, v); err != nil {
					return err
				}
			default:
				if err := f.SetCellStr(sheetName, cell, formatText(v)); err != nil {
					return err
				}
			}
		}
	}

	return f.Write(w)
}

func formatText(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case decimal.Decimal:
		return v.StringFixed(2)
	case time.Time:
		return v.UTC().Format(dateLayout)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func SalesFileName(format Format, now time.Time) string {
	return fmt.Sprintf("sales_%d.%s", now.Unix(), format)
}

func CashFlowFileName(format Format, store domain.Store, now time.Time) string {
	scope := "all"
	if store != "" {
		scope = string(store)
	}
	return fmt.Sprintf("cash_flow_%s_%d.%s", scope, now.Unix(), format)
}

func InventoryFileName(format Format, now time.Time) string {
	return fmt.Sprintf("inventory_%s.%s", now.UTC().Format("2006-01-02"), format)
}
