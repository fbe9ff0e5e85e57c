package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/satindergrewal/djdeck/internal/audio"
	"github.com/satindergrewal/djdeck/internal/meta"
	"github.com/satindergrewal/djdeck/internal/pcm"
	"github.com/satindergrewal/djdeck/internal/ui"
)

type ProbeParams struct {
	Files []string `pos:"true" required:"true" help:"Audio files to decode."`
}

func probeCmd() *cobra.Command {
	return boa.CmdT[ProbeParams]{
		Use:         "probe",
		Short:       "Decode tracks and show their length and beat grid",
		ParamEnrich: paramEnricher(),
		RunFunc: func(params *ProbeParams, cmd *cobra.Command, args []string) {
			if !probe(params.Files, os.Stdout) {
				os.Exit(1)
			}
		},
	}.ToCobra()
}

// probe prints one row per file and reports whether every file decoded.
func probe(files []string, stdout io.Writer) bool {
	t := table.NewWriter()
	t.SetOutputMirror(stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"File", "Frames", "Duration", "BPM", "First beat"})

	ok := true
	for _, path := range files {
		buf, err := pcm.Open(path, audio.SampleRate)
		if err != nil {
			fmt.Fprintln(os.Stderr, ui.Error(err.Error()))
			ok = false
			continue
		}
		frames := buf.Frames()
		buf.Close()

		bpm, first := "-", "-"
		md, err := meta.Load(path)
		switch {
		case err == nil:
			bpm = fmt.Sprintf("%.2f", md.BPM)
			first = fmt.Sprintf("%.3fs", md.FirstBeat)
		case !errors.Is(err, meta.ErrNoSidecar):
			log.Printf("Metadata for %s: %v", filepath.Base(path), err)
		}
		t.AppendRow(table.Row{
			filepath.Base(path),
			frames,
			fmt.Sprintf("%.2fs", audio.FramesToSeconds(float64(frames))),
			bpm,
			first,
		})
	}
	t.Render()
	return ok
}
