package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"

	"github.com/LovationAdmin/financas-api/models"
	"github.com/LovationAdmin/financas-api/repository"
	"github.com/LovationAdmin/financas-api/utils"
)

const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

// Export is a rendered report ready to stream.
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
}

type ExportService struct {
	clock
	repo    repository.Repository
	reports *ReportService
}

func NewExportService(repo repository.Repository, reports *ReportService) *ExportService {
	return &ExportService{repo: repo, reports: reports}
}

// Export renders the report of q as a spreadsheet or PDF. Premium plan only.
func (s *ExportService) Export(ctx context.Context, userID, format string, q models.ReportQuery) (*Export, error) {
	format = strings.ToLower(format)
	if format == "" {
		format = FormatXLSX
	}
	if format != FormatXLSX && format != FormatPDF {
		return nil, models.NewValidationError("formato", "must be xlsx or pdf")
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !models.LimitsFor(user.EffectivePlan(s.Now())).Export {
		return nil, fmt.Errorf("%w: export requires the premium plan", models.ErrPlanLimit)
	}

	report, err := s.reports.Build(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	categories, err := s.repo.ListCategories(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	base := fmt.Sprintf("relatorio_%s_%s", report.Start, report.End)
	var out *Export
	if format == FormatPDF {
		body, err := renderPDF(report)
		if err != nil {
			return nil, fmt.Errorf("render pdf: %w", err)
		}
		out = &Export{Filename: base + ".pdf", ContentType: "application/pdf", Body: body}
	} else {
		body, err := renderXLSX(report, names)
		if err != nil {
			return nil, fmt.Errorf("render xlsx: %w", err)
		}
		out = &Export{
			Filename:    base + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Body:        body,
		}
	}
	utils.LogDataAction("report", "export_"+format, base, userID)
	return out, nil
}

// ============================================================================
// XLSX
// ============================================================================

func renderXLSX(r *models.Report, categoryNames map[string]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	if err := f.SetSheetName("Sheet1", "Resumo"); err != nil {
		return nil, err
	}
	summary := [][]interface{}{
		{"Período", fmt.Sprintf("%s a %s", r.Start, r.End)},
		{"Receitas", r.Totals.Income.InexactFloat64()},
		{"Despesas", r.Totals.Expense.InexactFloat64()},
		{"Saldo", r.Totals.Balance.InexactFloat64()},
		{},
		{"Mês", "Receitas", "Despesas", "Saldo"},
	}
	for _, p := range r.Monthly {
		summary = append(summary, []interface{}{p.Month.String(), p.Income.InexactFloat64(), p.Expense.InexactFloat64(), p.Balance.InexactFloat64()})
	}
	if err := writeRows(f, "Resumo", summary); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle("Resumo", "A1", "A4", bold); err != nil {
		return nil, err
	}
	if err := f.SetRowStyle("Resumo", 6, 6, bold); err != nil {
		return nil, err
	}

	rows := [][]interface{}{{"Data", "Descrição", "Categoria", "Tipo", "Forma de pagamento", "Valor", "Pago"}}
	for _, t := range r.Transactions {
		paid := "não"
		if t.Paid {
			paid = "sim"
		}
		rows = append(rows, []interface{}{
			t.Date.String(), t.Description, categoryNames[t.CategoryID], t.Type, t.PaymentMethod, t.Amount.InexactFloat64(), paid,
		})
	}
	if err := addSheet(f, "Lançamentos", rows, bold); err != nil {
		return nil, err
	}
	if err := addSheet(f, "Categorias", rankingRows(r.ByCategory), bold); err != nil {
		return nil, err
	}
	if err := addSheet(f, "Cartões", rankingRows(r.ByCard), bold); err != nil {
		return nil, err
	}

	f.SetActiveSheet(0)
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addSheet(f *excelize.File, name string, rows [][]interface{}, headerStyle int) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}
	if err := writeRows(f, name, rows); err != nil {
		return err
	}
	return f.SetRowStyle(name, 1, 1, headerStyle)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

func rankingRows(items []models.RankingItem) [][]interface{} {
	rows := [][]interface{}{{"Nome", "Total", "%", "Quantidade"}}
	for _, it := range items {
		rows = append(rows, []interface{}{it.Name, it.Total.InexactFloat64(), it.Percent.InexactFloat64(), it.Count})
	}
	return rows
}

// ============================================================================
// PDF
// ============================================================================

func renderPDF(r *models.Report) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr("Relatório financeiro"), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr("Relatório financeiro"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, tr(fmt.Sprintf("Período: %s a %s", r.Start, r.End)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdfTable(pdf, tr, "Resumo", []string{"Receitas", "Despesas", "Saldo"}, [][]string{{
		"R$ " + r.Totals.Income.StringFixed(2),
		"R$ " + r.Totals.Expense.StringFixed(2),
		"R$ " + r.Totals.Balance.StringFixed(2),
	}})

	monthly := make([][]string, 0, len(r.Monthly))
	for _, p := range r.Monthly {
		monthly = append(monthly, []string{p.Month.String(), p.Income.StringFixed(2), p.Expense.StringFixed(2), p.Balance.StringFixed(2)})
	}
	pdfTable(pdf, tr, "Mês a mês", []string{"Mês", "Receitas", "Despesas", "Saldo"}, monthly)
	pdfTable(pdf, tr, "Por categoria", []string{"Categoria", "Total", "%", "Qtd"}, rankingCells(r.ByCategory))
	pdfTable(pdf, tr, "Por cartão", []string{"Cartão", "Total", "%", "Qtd"}, rankingCells(r.ByCard))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func pdfTable(pdf *fpdf.Fpdf, tr func(string) string, title string, header []string, rows [][]string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, tr(title), "", 1, "L", false, 0, "")

	width := 180.0 / float64(len(header))
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(229, 231, 235)
	for _, h := range header {
		pdf.CellFormat(width, 7, tr(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	if len(rows) == 0 {
		pdf.CellFormat(width*float64(len(header)), 7, tr("Sem dados"), "1", 1, "C", false, 0, "")
	}
	for _, row := range rows {
		for i, v := range row {
			align := "R"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(width, 7, tr(v), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)
}

func rankingCells(items []models.RankingItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{it.Name, it.Total.StringFixed(2), it.Percent.StringFixed(2), fmt.Sprint(it.Count)})
	}
	return rows
}
