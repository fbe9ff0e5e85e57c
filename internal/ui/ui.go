// Package ui formats operator-facing console output.
package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/satindergrewal/djdeck/internal/deck"
)

var (
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func Info(msg string) string  { return infoStyle.Render("[Info]") + " " + msg }
func Warn(msg string) string  { return warnStyle.Render("[Warn]") + " " + msg }
func Error(msg string) string { return errorStyle.Render("[Error]") + " " + msg }

// Help renders the command reference.
func Help(lines []string) string {
	return helpStyle.Render(strings.Join(lines, "\n"))
}

// DeckTable renders one row per deck.
func DeckTable(decks []deck.Snapshot) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Deck", "Track", "Mode", "Position", "Speed", "BPM", "First beat", "Loop", "Effect", "Monitor"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, WidthMax: 32},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})

	for _, s := range decks {
		track := "-"
		if s.Loaded {
			track = filepath.Base(s.Track)
		}
		t.AppendRow(table.Row{
			s.ID,
			track,
			modeCell(s),
			clock(s.Position),
			speedCell(s),
			bpmCell(s.BPM),
			clock(s.FirstBeat),
			loopCell(s),
			effectCell(s),
			yesNo(s.Monitor),
		})
	}
	return t.Render()
}

// clock formats seconds as m:ss.mmm.
func clock(seconds float64) string {
	m := int(seconds) / 60
	return fmt.Sprintf("%d:%06.3f", m, seconds-float64(m*60))
}

func modeCell(s deck.Snapshot) string {
	if s.Source != "" && s.Source != "ok" {
		return s.Mode + " (" + s.Source + ")"
	}
	return s.Mode
}

func speedCell(s deck.Snapshot) string {
	if s.Speed == s.DestSpeed {
		return fmt.Sprintf("%.3fx", s.Speed)
	}
	return fmt.Sprintf("%.3fx -> %.3fx", s.Speed, s.DestSpeed)
}

func bpmCell(bpm float32) string {
	if bpm <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", bpm)
}

func loopCell(s deck.Snapshot) string {
	if !s.Looping {
		return fmt.Sprintf("off (%g beats)", s.BeatsPerLoop)
	}
	return fmt.Sprintf("%s-%s (%g beats)", clock(s.LoopBegin), clock(s.LoopEnd), s.BeatsPerLoop)
}

func effectCell(s deck.Snapshot) string {
	if s.Effect == "none" {
		return "none"
	}
	return fmt.Sprintf("%s mix %.2f param %g", s.Effect, s.EffectMix, s.EffectParam)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
