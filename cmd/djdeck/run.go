package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/satindergrewal/djdeck/internal/api"
	"github.com/satindergrewal/djdeck/internal/command"
	"github.com/satindergrewal/djdeck/internal/config"
	"github.com/satindergrewal/djdeck/internal/control"
	"github.com/satindergrewal/djdeck/internal/engine"
	"github.com/satindergrewal/djdeck/internal/ui"
)

// RunParams override the DJDECK_* environment. Zero values leave the
// environment setting in place.
type RunParams struct {
	Files     []string `pos:"true" optional:"true" help:"Tracks to load, one per deck in order."`
	Decks     int      `short:"n" optional:"true" help:"Number of decks." default:"0"`
	Audience  string   `short:"a" optional:"true" help:"Audience device: oto, stream, wav or null." default:""`
	Monitor   string   `short:"m" optional:"true" help:"Monitor device: oto, stream, wav or null." default:""`
	Record    string   `short:"r" optional:"true" help:"WAV file for a wav device." default:""`
	Period    int      `optional:"true" help:"Callback period in milliseconds." default:"0"`
	Port      int      `short:"p" optional:"true" help:"HTTP port for the API and streams; -1 disables the server." default:"0"`
	Serial    string   `short:"s" optional:"true" help:"Arduino serial device." default:""`
	Baud      int      `short:"b" optional:"true" help:"Serial baud rate." default:"0"`
	NoConsole bool     `optional:"true" help:"Do not read commands from the keyboard."`
	NoWatch   bool     `optional:"true" help:"Do not reload metadata files when they change."`
}

func runCmd() *cobra.Command {
	return boa.CmdT[RunParams]{
		Use:         "run",
		Short:       "Start the decks",
		ParamEnrich: paramEnricher(),
		RunFunc: func(params *RunParams, cmd *cobra.Command, args []string) {
			if err := run(params); err != nil {
				log.Fatalf("djdeck: %v", err)
			}
		},
	}.ToCobra()
}

func (p *RunParams) apply(cfg *config.Config) {
	if p.Decks != 0 {
		cfg.Decks = p.Decks
	}
	if p.Audience != "" {
		cfg.AudienceDevice = p.Audience
	}
	if p.Monitor != "" {
		cfg.MonitorDevice = p.Monitor
	}
	if p.Record != "" {
		cfg.RecordPath = p.Record
	}
	if p.Period != 0 {
		cfg.CallbackPeriod = time.Duration(p.Period) * time.Millisecond
	}
	if p.Port != 0 {
		cfg.Port = max(p.Port, 0)
	}
	if p.Serial != "" {
		cfg.SerialPort = p.Serial
	}
	if p.Baud != 0 {
		cfg.SerialBaud = p.Baud
	}
	if p.NoConsole {
		cfg.Console = false
	}
	if p.NoWatch {
		cfg.WatchMetadata = false
	}
}

func run(p *RunParams) error {
	cfg := config.Load()
	p.apply(&cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Println("djdeck starting up...")
	eng, err := engine.New(cfg)
	if err != nil {
		return err
	}
	for i, path := range p.Files {
		if i >= cfg.Decks {
			log.Printf("Only %d decks, ignoring %s", cfg.Decks, path)
			continue
		}
		if err := eng.Load(i, path); err != nil {
			log.Printf("Load failed: %v", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Quitting from any input stops everything else.
		defer cancel()
		return eng.Run(ctx)
	})

	if cfg.Port != 0 {
		server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: api.NewServer(eng)}
		g.Go(func() error {
			<-ctx.Done()
			return server.Close()
		})
		g.Go(func() error {
			log.Printf("djdeck API live on %s", server.Addr)
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server: %w", err)
			}
			return nil
		})
	}

	if cfg.SerialPort != "" {
		port, err := control.OpenSerial(cfg.SerialPort, cfg.SerialBaud)
		if err != nil {
			log.Printf("Sensor input disabled: %v", err)
		} else {
			serial := control.NewSerial(port, control.NewTranslator(cfg.Decks))
			g.Go(func() error { return serial.Run(ctx, eng.Apply) })
			log.Printf("Reading sensors from %s at %d baud", cfg.SerialPort, cfg.SerialBaud)
		}
	}

	if cfg.Console {
		con, err := control.NewConsole(os.Stdin, os.Stdout)
		if err != nil {
			return err
		}
		defer con.Close()
		con.Println(ui.Info("type h for help, q to quit"))
		g.Go(func() error {
			readCommands(ctx, con, eng)
			return nil
		})
	}

	return g.Wait()
}

// readCommands executes console lines until ctx is done or input ends.
func readCommands(ctx context.Context, con *control.Console, eng *engine.Engine) {
	lines := con.Lines(ctx)
	for {
		var line string
		select {
		case <-ctx.Done():
			return
		case l, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(l)
		}

		switch line {
		case "":
			continue
		case "h", "help":
			con.Println(ui.Help(command.Help()))
			continue
		}

		res, err := eng.Execute(line)
		switch {
		case errors.Is(err, command.ErrUnknownCommand), errors.Is(err, command.ErrUsage):
			con.Println(ui.Warn(err.Error()))
		case err != nil:
			con.Println(ui.Error(err.Error()))
		case len(res.Decks) > 0:
			con.Println(ui.DeckTable(res.Decks))
		case res.Message != "":
			con.Println(ui.Info(res.Message))
		}
	}
}
