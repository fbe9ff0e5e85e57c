// Package engine owns the decks, the mixer and the output devices, and is
// the single target every input source sends commands to.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/satindergrewal/djdeck/internal/audio"
	"github.com/satindergrewal/djdeck/internal/command"
	"github.com/satindergrewal/djdeck/internal/config"
	"github.com/satindergrewal/djdeck/internal/deck"
	"github.com/satindergrewal/djdeck/internal/device"
	"github.com/satindergrewal/djdeck/internal/meta"
	"github.com/satindergrewal/djdeck/internal/mixer"
	"github.com/satindergrewal/djdeck/internal/pcm"
	"github.com/satindergrewal/djdeck/internal/stream"
)

var ErrDeckIndex = errors.New("deck index out of range")

// WindowFrames is how much of a track one source refill exposes.
const WindowFrames = audio.SampleRate

// Engine is the running DJ deck.
type Engine struct {
	cfg   config.Config
	decks []*deck.Deck
	coord *mixer.Coordinator

	outputs   []*mixer.Output
	devices   []device.Device
	streamers []*device.Streamer
	casts     []*stream.Broadcaster

	watcher *meta.Watcher

	mu     sync.Mutex
	loaded []string // path per deck, for unwatching

	exit     chan struct{}
	exitOnce sync.Once
}

// New builds the decks and opens the output devices.
func New(cfg config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	blockFrames := audio.FramesPer(cfg.CallbackPeriod)

	e := &Engine{
		cfg:    cfg,
		loaded: make([]string, cfg.Decks),
		exit:   make(chan struct{}),
	}
	for i := range cfg.Decks {
		e.decks = append(e.decks, deck.New(i, deck.Options{
			BlockFrames:  blockFrames,
			BeatsPerLoop: float32(cfg.LoopBeats),
			LoopStep:     float32(cfg.LoopStepFactor),
		}))
	}
	e.coord = mixer.NewCoordinator(lo.Map(e.decks, func(d *deck.Deck, _ int) mixer.Track { return d }))

	if err := e.openDevices(blockFrames); err != nil {
		return nil, err
	}

	if cfg.WatchMetadata {
		w, err := meta.NewWatcher()
		if err != nil {
			log.Printf("Metadata watching disabled: %v", err)
		} else {
			e.watcher = w
		}
	}
	return e, nil
}

// openDevices creates the audience and monitor outputs. When both use the
// same kind of device only the audience output exists and it hears every
// deck.
func (e *Engine) openDevices(blockFrames int) error {
	audience, _ := device.ParseKind(e.cfg.AudienceDevice)
	monitor, _ := device.ParseKind(e.cfg.MonitorDevice)

	type plan struct {
		name  string
		route mixer.Route
		kind  device.Kind
	}
	plans := []plan{{"audience", mixer.Audience, audience}}
	if monitor != audience {
		plans = append(plans, plan{"monitor", mixer.Monitor, monitor})
	} else {
		log.Printf("Audience and monitor both use %s; monitor routing is not separated", audience)
	}

	for _, p := range plans {
		out := e.coord.AddOutput(p.name, p.route, e.cfg.CallbackPeriod)
		opts := device.Options{
			BlockFrames: blockFrames,
			Period:      e.cfg.CallbackPeriod,
			RecordPath:  e.cfg.RecordPath,
		}
		dev, err := device.New(p.kind, out, opts)
		if err != nil {
			return fmt.Errorf("%s device: %w", p.name, err)
		}
		if s, ok := dev.(*device.Streamer); ok {
			e.streamers = append(e.streamers, s)
			e.casts = append(e.casts, stream.NewBroadcaster(p.name))
		}
		e.outputs = append(e.outputs, out)
		e.devices = append(e.devices, dev)
		log.Printf("Output %s: %s device, %d frames per block", p.name, p.kind, blockFrames)
	}
	return nil
}

// Deck returns deck i.
func (e *Engine) Deck(i int) (*deck.Deck, error) {
	if i < 0 || i >= len(e.decks) {
		return nil, fmt.Errorf("%w: %d (have %d)", ErrDeckIndex, i, len(e.decks))
	}
	return e.decks[i], nil
}

func (e *Engine) Decks() []*deck.Deck { return e.decks }

func (e *Engine) Outputs() []*mixer.Output { return e.outputs }

// Broadcasters returns one broadcaster per stream device.
func (e *Engine) Broadcasters() []*stream.Broadcaster { return e.casts }

func (e *Engine) Snapshots() []deck.Snapshot {
	return lo.Map(e.decks, func(d *deck.Deck, _ int) deck.Snapshot { return d.Snapshot() })
}

// Load decodes path into deck i and applies its beat grid. A missing
// metadata file leaves beat operations unavailable.
func (e *Engine) Load(i int, path string) error {
	d, err := e.Deck(i)
	if err != nil {
		return err
	}
	buf, err := pcm.Open(path, WindowFrames)
	if err != nil {
		return fmt.Errorf("deck %d: %w", i, err)
	}
	d.Load(buf, path)

	md, err := meta.Load(path)
	switch {
	case errors.Is(err, meta.ErrNoSidecar):
		log.Printf("Deck %d: no metadata for %s, beat operations disabled", i, filepath.Base(path))
	case err != nil:
		log.Printf("Deck %d: metadata: %v", i, err)
	}
	d.SetBeatGrid(md.BPM, md.FirstBeatFrame())
	log.Printf("Deck %d: loaded %s (%d frames, %.2f bpm)", i, filepath.Base(path), buf.Frames(), md.BPM)

	e.watch(i, path, d)
	return nil
}

func (e *Engine) watch(i int, path string, d *deck.Deck) {
	if e.watcher == nil {
		return
	}
	e.mu.Lock()
	prev := e.loaded[i]
	e.loaded[i] = path
	shared := lo.Contains(e.loaded, prev)
	e.mu.Unlock()

	if prev != "" && prev != path && !shared {
		e.watcher.Unwatch(prev)
	}
	if err := e.watcher.Watch(path, func(md meta.Metadata) {
		d.SetBeatGrid(md.BPM, md.FirstBeatFrame())
	}); err != nil {
		log.Printf("Deck %d: %v", i, err)
	}
}

// Execute parses and dispatches one command line.
func (e *Engine) Execute(line string) (command.Result, error) {
	c, err := command.Parse(line)
	if err != nil {
		return command.Result{}, err
	}
	return command.Dispatch(e, c)
}

// Apply dispatches c, logging failures. Used by inputs with nobody to
// reply to.
func (e *Engine) Apply(c command.Command) {
	if _, err := command.Dispatch(e, c); err != nil {
		log.Printf("Command %q: %v", c, err)
	}
}

// RequestExit asks Run to stop. Safe to call more than once.
func (e *Engine) RequestExit() {
	e.exitOnce.Do(func() { close(e.exit) })
}

// Exit is closed once exit has been requested.
func (e *Engine) Exit() <-chan struct{} { return e.exit }

// Run drives the mixer and every device until ctx is cancelled, exit is
// requested or a device fails. Loaded tracks are released on return.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-e.exit:
			cancel()
		case <-ctx.Done():
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.coord.Run(ctx) })
	for _, d := range e.devices {
		g.Go(func() error { return d.Run(ctx) })
	}
	for i, s := range e.streamers {
		b := e.casts[i]
		g.Go(func() error {
			b.Run(ctx, s.Frames())
			return nil
		})
	}
	if e.watcher != nil {
		g.Go(func() error { return e.watcher.Run(ctx) })
	}

	log.Printf("Engine running: %d decks, %d outputs", len(e.decks), len(e.outputs))
	err := g.Wait()

	if e.watcher != nil {
		e.watcher.Close()
	}
	for _, d := range e.decks {
		d.Unload()
	}
	log.Printf("Engine stopped after %d cycles", e.coord.Cycles())
	return err
}
