package control

import (
	"bufio"
	"context"
	"io"
	"log"
	"time"

	"github.com/satindergrewal/djdeck/internal/command"
)

// Serial reads "id,value" sensor lines from an Arduino.
type Serial struct {
	r  io.ReadCloser
	tr *Translator
}

func NewSerial(r io.ReadCloser, tr *Translator) *Serial {
	return &Serial{r: r, tr: tr}
}

// Run translates sensor lines into commands until ctx is cancelled or the
// port is closed. Bad lines are logged and skipped.
func (s *Serial) Run(ctx context.Context, emit func(command.Command)) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(s.r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	ticker := time.NewTicker(HoldDuration / 5)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Unblocks the reader.
			s.r.Close()
			return nil
		case err := <-readErr:
			return err
		case now := <-ticker.C:
			for _, c := range s.tr.Tick(now) {
				emit(c)
			}
		case line := <-lines:
			if line == "" {
				continue
			}
			r, err := ParseReading(line)
			if err != nil {
				log.Printf("Serial: %v, line ignored", err)
				continue
			}
			cmds, err := s.tr.Handle(r, time.Now())
			if err != nil {
				log.Printf("Serial: %v", err)
				continue
			}
			for _, c := range cmds {
				emit(c)
			}
		}
	}
}
