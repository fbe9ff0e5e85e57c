package deck

import "github.com/satindergrewal/djdeck/internal/audio"

// Snapshot is a point-in-time copy of a deck's state for display.
type Snapshot struct {
	ID        int     `json:"id"`
	Track     string  `json:"track"`
	Loaded    bool    `json:"loaded"`
	Mode      string  `json:"mode"`
	Source    string  `json:"source"`
	Position  float64 `json:"position"` // seconds
	Speed     float64 `json:"speed"`
	DestSpeed float64 `json:"dest_speed"`
	BPM       float32 `json:"bpm"`
	FirstBeat float64 `json:"first_beat"` // seconds

	Looping      bool    `json:"looping"`
	LoopBegin    float64 `json:"loop_begin"` // seconds
	LoopEnd      float64 `json:"loop_end"`   // seconds
	BeatsPerLoop float32 `json:"beats_per_loop"`

	Effect      string  `json:"effect"`
	EffectMix   float32 `json:"effect_mix"`
	EffectParam float32 `json:"effect_param"`
	Monitor     bool    `json:"monitor"`
}

func (d *Deck) Snapshot() Snapshot {
	d.state.Lock()
	defer d.state.Unlock()

	s := Snapshot{
		ID:           d.id,
		Track:        d.name,
		Loaded:       d.src != nil,
		Mode:         d.mode.String(),
		Position:     audio.FramesToSeconds(d.cur),
		Speed:        d.speed,
		DestSpeed:    d.dest,
		BPM:          d.bpm,
		FirstBeat:    audio.FramesToSeconds(float64(d.firstBeat)),
		Looping:      d.loopQueued,
		LoopBegin:    audio.FramesToSeconds(float64(d.loopBegin)),
		LoopEnd:      audio.FramesToSeconds(float64(d.loopEnd)),
		BeatsPerLoop: d.beatsPerLoop,
		Effect:       d.fxKind.String(),
		EffectMix:    d.fx.Mix(),
		EffectParam:  d.fx.Param(),
		Monitor:      d.monitor.Load(),
	}
	if d.src != nil {
		s.Source = d.src.Status().String()
	}
	return s
}
