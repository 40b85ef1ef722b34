package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
)

var (
	colorRed    = lipgloss.Color("#FF5555")
	colorYellow = lipgloss.Color("#F1FA8C")
	colorGreen  = lipgloss.Color("#50FA7B")
	colorCyan   = lipgloss.Color("#8BE9FD")
	colorGray   = lipgloss.Color("#6272A4")

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorGray).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	labelStyle = lipgloss.NewStyle().Foreground(colorGray)
	critStyle  = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(colorYellow)
	okStyle    = lipgloss.NewStyle().Foreground(colorGreen)
)

func colorStyle(c pipeline.Color) lipgloss.Style {
	switch c {
	case pipeline.ColorRed:
		return critStyle
	case pipeline.ColorYellow:
		return warnStyle
	default:
		return okStyle
	}
}

// renderNotification строка уведомления: время сессии, тип и текст
func renderNotification(n pipeline.Notification) string {
	return fmt.Sprintf("%s %s %s",
		labelStyle.Render(clock(n.Second)),
		labelStyle.Render("["+string(n.Kind)+"]"),
		colorStyle(n.Color).Render(n.Message))
}

// renderStatus краткая строка снимка для периодического вывода
func renderStatus(s pipeline.Snapshot) string {
	parts := []string{
		titleStyle.Render(clock(s.TimeSec)),
		labelStyle.Render("FHR") + " " + number(s.CurrentFHR, 0),
		labelStyle.Render("UC") + " " + number(s.CurrentUterus, 0),
		labelStyle.Render("STV") + " " + number(s.STV, 2),
	}
	if s.FIGO != "" {
		parts = append(parts, labelStyle.Render("FIGO")+" "+figoStyle(s.FIGO).Render(s.FIGO))
	}
	if s.CurrentStatus != "" {
		parts = append(parts, s.CurrentStatus)
	}
	return strings.Join(parts, "  ")
}

// renderSummary панель итогов сессии
func renderSummary(sum pipeline.Summary) string {
	rows := [][2]string{
		{"Session", sum.SessionID},
		{"Duration", clock(sum.DurationSec)},
		{"Baseline", number(sum.BaselineBPM, 1) + " bpm"},
		{"STV (all)", number(sum.STVAll, 2)},
		{"STV (10 min)", number(sum.STV10MinMean, 2)},
		{"Uterus mean", number(sum.UterusMean, 2)},
		{"Accelerations", fmt.Sprint(sum.AccelerationsCount)},
		{"Decelerations", fmt.Sprint(sum.DecelerationsCount)},
		{"Contractions", fmt.Sprint(sum.ContractionsCount)},
	}
	if sum.FIGO != nil {
		rows = append(rows, [2]string{"FIGO", figoStyle(*sum.FIGO).Render(*sum.FIGO)})
	}
	if sum.SavelyevaScore != nil && sum.SavelyevaCategory != nil {
		rows = append(rows, [2]string{"Savelyeva", fmt.Sprintf("%d (%s)", *sum.SavelyevaScore, *sum.SavelyevaCategory)})
	}
	if sum.FischerScore != nil && sum.FischerCategory != nil {
		rows = append(rows, [2]string{"Fischer", fmt.Sprintf("%d (%s)", *sum.FischerScore, *sum.FischerCategory)})
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Summary"))
	for _, r := range rows {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(r[0]))
		b.WriteString(strings.Repeat(" ", 15-len(r[0])))
		b.WriteString(r[1])
	}
	return panelStyle.Render(b.String())
}

func figoStyle(situation string) lipgloss.Style {
	switch situation {
	case pipeline.LabelPathological:
		return critStyle
	case pipeline.LabelSuspicious:
		return warnStyle
	default:
		return okStyle
	}
}

func clock(sec int) string {
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, sec/60%60, sec%60)
}

func number(v *float64, prec int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.*f", prec, *v)
}
