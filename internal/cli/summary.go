package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/the-receipts-must-flow/internal/engine"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
)

// StatusLabel renders a receipt status in its color.
func StatusLabel(status model.ReceiptStatus) string {
	switch status {
	case model.ReceiptStatusCompleted:
		return SuccessStyle.Render("completed")
	case model.ReceiptStatusPendingReview:
		return WarningStyle.Render("pending review")
	case model.ReceiptStatusManualReview:
		return ErrorStyle.Render("manual review")
	default:
		return SubtleStyle.Render(string(status))
	}
}

// RenderItems renders a table of categorized items. Items awaiting review are
// marked.
func RenderItems(items []model.ProcessedItem, review map[int]bool) string {
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		TableCellStyle.Width(36).Render("Item"),
		TableCellStyle.Width(18).Render("Category"),
		TableCellStyle.Width(16).Render("Method"),
		TableCellStyle.Width(6).Render("Conf"),
		TableCellStyle.Render("Amount"),
	)

	rows := []string{TableHeaderStyle.Render(header)}
	for _, item := range items {
		method := ""
		if item.Result != nil {
			method = string(item.Result.Method)
			if item.Result.IsDefault() {
				method = "-"
			}
		}

		name := truncate(item.Raw.Name, 34)
		if review[item.Index] {
			name = WarningStyle.Render(name)
		}

		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top,
			TableCellStyle.Width(36).Render(name),
			TableCellStyle.Width(18).Render(item.CategoryID()),
			TableCellStyle.Width(16).Render(SubtleStyle.Render(method)),
			TableCellStyle.Width(6).Render(fmt.Sprintf("%.2f", item.Confidence())),
			TableCellStyle.Render(fmt.Sprintf("%.2f", item.Raw.Amount())),
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// RenderResult renders the outcome of one receipt.
func RenderResult(result *engine.Result) string {
	var b strings.Builder

	p := result.Processing
	fmt.Fprintf(&b, "%s  %s\n", BoldStyle.Render("Status:"), StatusLabel(p.Status))
	fmt.Fprintf(&b, "%s  %.2f лв.\n", BoldStyle.Render("Total:"), p.TotalAmount)
	fmt.Fprintf(&b, "%s  %d auto-saved, %d to review, confidence %.0f%%\n\n",
		BoldStyle.Render("Items:"),
		len(p.AutoSavedItems), len(p.UncertainItems), p.ConfidenceRate*100)

	review := make(map[int]bool, len(p.UncertainItems))
	for _, item := range p.UncertainItems {
		review[item.Index] = true
	}
	b.WriteString(RenderItems(result.Items, review))

	if len(p.CategoryBreakdown) > 0 {
		b.WriteString("\n\n" + BoldStyle.Render("Budget") + "\n")
		for _, total := range p.CategoryBreakdown {
			fmt.Fprintf(&b, "  %-20s %8.2f  (%d)\n", categoryName(total.CategoryID), total.Amount, total.ItemCount)
		}
	}

	if len(result.Validation.Critical) > 0 {
		b.WriteString("\n" + BoldStyle.Render("Needs attention") + "\n")
		for _, issue := range result.Validation.Critical {
			b.WriteString("  " + FormatIssue(issue) + "\n")
		}
	}
	if n := len(result.Validation.AutoResolved); n > 0 {
		b.WriteString("\n" + SubtleStyle.Render(fmt.Sprintf("%d minor finding(s) auto-resolved", n)))
	}

	return RenderBox(ReceiptIcon+" "+result.ReceiptID, strings.TrimRight(b.String(), "\n"))
}

// FormatIssue renders a validation finding on one line.
func FormatIssue(issue model.ValidationIssue) string {
	var style lipgloss.Style
	switch issue.Severity {
	case model.SeverityHigh:
		style = ErrorStyle
	case model.SeverityMedium:
		style = WarningStyle
	default:
		style = SubtleStyle
	}

	line := style.Render(fmt.Sprintf("[%s] %s", issue.Severity, issue.Message))
	if issue.Suggestion != "" {
		line += " " + SubtleStyle.Render("→ "+issue.Suggestion)
	}
	return line
}

// RenderSummary renders a batch run.
func RenderSummary(s *engine.Summary) string {
	lines := []string{
		fmt.Sprintf("Receipts:        %d", s.Receipts),
		SuccessStyle.Render(fmt.Sprintf("Completed:       %d", s.Completed)),
		WarningStyle.Render(fmt.Sprintf("Pending review:  %d", s.PendingReview)),
		ErrorStyle.Render(fmt.Sprintf("Manual review:   %d", s.ManualReview)),
	}
	if s.Failed > 0 {
		lines = append(lines, ErrorStyle.Render(fmt.Sprintf("Failed:          %d", s.Failed)))
	}
	lines = append(lines,
		fmt.Sprintf("Items:           %d (%d auto-saved)", s.Items, s.AutoSavedItems),
		SubtleStyle.Render(fmt.Sprintf("Took %s", s.ProcessingTime.Round(time.Millisecond))),
	)
	return RenderBox("Summary", strings.Join(lines, "\n"))
}

func categoryName(id string) string {
	if c, ok := model.LookupCategory(id); ok {
		return c.Name
	}
	return id
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
