// Package engine drives the duplex audio path: it captures the microphone,
// mixes the backing track, overlay loop and mic monitor into the output, and
// records takes to WAV. Everything audible happens inside one PortAudio
// callback; control methods only swap state the callback reads.
package engine

import (
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/vocorder/vocorder/pkg/audio/ring"
	"github.com/vocorder/vocorder/pkg/audio/synth"
	"github.com/vocorder/vocorder/pkg/audio/wavio"
)

// State is the engine's lifecycle phase.
type State int

const (
	StateIdle State = iota
	StateRecording
	StatePreviewing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StatePreviewing:
		return "previewing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config sets up the audio session. Zero fields take defaults.
type Config struct {
	SampleRate int           // default 44100
	Channels   int           // device channels, default 1 (mixing is mono)
	BitDepth   int           // recording bit depth, default 16
	BlockSize  int           // callback frames, default 1024
	PreRoll    time.Duration // mic lead before BGM starts on record
	TrimTail   time.Duration // cut from take end on stop, default 50ms

	MicGain     float64 // gain on the recorded mic signal, default 1
	BGMGain     float64 // default 1
	OverlayGain float64 // default 1
	MonitorGain float64 // mic foldback into the output, default 0

	RingSeconds int // live waveform history, default 5
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = 44100
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.BitDepth <= 0 {
		c.BitDepth = 16
	}
	if c.BlockSize <= 0 {
		c.BlockSize = 1024
	}
	if c.TrimTail == 0 {
		c.TrimTail = 50 * time.Millisecond
	}
	if c.MicGain == 0 {
		c.MicGain = 1
	}
	if c.BGMGain == 0 {
		c.BGMGain = 1
	}
	if c.OverlayGain == 0 {
		c.OverlayGain = 1
	}
	if c.RingSeconds <= 0 {
		c.RingSeconds = 5
	}
	return c
}

// gainVal is a float64 readable from the audio callback without a lock.
type gainVal struct{ bits atomic.Uint64 }

func (g *gainVal) store(v float64) { g.bits.Store(math.Float64bits(v)) }
func (g *gainVal) load() float32   { return float32(math.Float64frombits(g.bits.Load())) }

// Option configures an Engine at construction.
type Option func(*Engine)

// WithStatusFunc installs a callback for human-readable status lines
// (dropped BGM, recovered takes, callback faults). It must not block.
func WithStatusFunc(fn func(string)) Option {
	return func(e *Engine) { e.statusFn = fn }
}

// Engine owns one duplex PortAudio stream and the mixing state behind it.
type Engine struct {
	cfg      Config
	statusFn func(string)

	mu      sync.Mutex
	state   State
	stream  *portaudio.Stream
	inDev   *portaudio.DeviceInfo
	outDev  *portaudio.DeviceInfo
	started bool

	core *mixCore
	ring *ring.Buffer
	rec  atomic.Pointer[session]

	micGain, bgmGain, overlayGain, monitorGain gainVal

	lastPath string
	lastTake []float32

	// Callback scratch, pre-sized so the hot path never allocates.
	mono, micBus, bgmBus, overlayBus, outMono []float32
}

// New builds an engine. Call Start before recording or playback.
func New(cfg Config, opts ...Option) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:        cfg,
		core:       &mixCore{},
		ring:       ring.New(cfg.SampleRate * cfg.RingSeconds),
		mono:       make([]float32, cfg.BlockSize),
		micBus:     make([]float32, cfg.BlockSize),
		bgmBus:     make([]float32, cfg.BlockSize),
		overlayBus: make([]float32, cfg.BlockSize),
		outMono:    make([]float32, cfg.BlockSize),
	}
	e.micGain.store(cfg.MicGain)
	e.bgmGain.store(cfg.BGMGain)
	e.overlayGain.store(cfg.OverlayGain)
	e.monitorGain.store(cfg.MonitorGain)
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) status(msg string) {
	if e.statusFn != nil {
		e.statusFn(msg)
	}
}

// Start initializes PortAudio and opens the duplex stream.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("engine: portaudio init: %w", err)
	}
	if err := e.openStream(); err != nil {
		portaudio.Terminate()
		return err
	}
	e.started = true
	return nil
}

// Close stops any active recording, tears down the stream and releases
// PortAudio.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.state == StateRecording {
		e.mu.Unlock()
		if _, err := e.StopRecording(); err != nil {
			e.status(fmt.Sprintf("stop on close: %v", err))
		}
		e.mu.Lock()
	}
	defer e.mu.Unlock()
	if !e.started {
		return nil
	}
	e.started = false
	err := e.closeStream()
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}

// openStream opens the duplex stream on the configured devices.
// Caller holds e.mu.
func (e *Engine) openStream() error {
	in, out := e.inDev, e.outDev
	var err error
	if in == nil {
		if in, err = portaudio.DefaultInputDevice(); err != nil {
			return fmt.Errorf("engine: default input device: %w", err)
		}
	}
	if out == nil {
		if out, err = portaudio.DefaultOutputDevice(); err != nil {
			return fmt.Errorf("engine: default output device: %w", err)
		}
	}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   in,
			Channels: e.cfg.Channels,
			Latency:  in.DefaultLowInputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Device:   out,
			Channels: e.cfg.Channels,
			Latency:  out.DefaultLowOutputLatency,
		},
		SampleRate:      float64(e.cfg.SampleRate),
		FramesPerBuffer: e.cfg.BlockSize,
	}
	stream, err := portaudio.OpenStream(params, e.process)
	if err != nil {
		return fmt.Errorf("engine: open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("engine: start stream: %w", err)
	}
	e.stream = stream
	e.inDev, e.outDev = in, out
	return nil
}

// closeStream stops and closes the current stream. Caller holds e.mu.
func (e *Engine) closeStream() error {
	if e.stream == nil {
		return nil
	}
	e.stream.Stop()
	err := e.stream.Close()
	e.stream = nil
	return err
}

// reopen applies a device or format change on a live engine.
// Caller holds e.mu.
func (e *Engine) reopen() error {
	if e.state == StateRecording {
		return fmt.Errorf("engine: cannot reconfigure while recording")
	}
	if !e.started {
		return nil
	}
	if err := e.closeStream(); err != nil {
		e.status(fmt.Sprintf("close stream: %v", err))
	}
	return e.openStream()
}

// SetSampleRate changes the session rate, reopening the stream if live.
// Loaded BGM and overlays are dropped since they were resampled for the
// old rate.
func (e *Engine) SetSampleRate(sr int) error {
	if sr <= 0 {
		return fmt.Errorf("engine: invalid sample rate %d", sr)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if sr == e.cfg.SampleRate {
		return nil
	}
	e.cfg.SampleRate = sr
	e.ring = ring.New(sr * e.cfg.RingSeconds)
	e.core.setPlaylist(nil, false)
	e.core.setOverlay(nil)
	return e.reopen()
}

// SetChannels changes the device channel count, reopening if live.
func (e *Engine) SetChannels(ch int) error {
	if ch <= 0 {
		return fmt.Errorf("engine: invalid channel count %d", ch)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if ch == e.cfg.Channels {
		return nil
	}
	e.cfg.Channels = ch
	return e.reopen()
}

// SetDevices selects input and output devices by index as reported by
// Devices. An index of -1 keeps the system default.
func (e *Engine) SetDevices(inIdx, outIdx int) error {
	devs, err := Devices()
	if err != nil {
		return err
	}
	pick := func(idx int) (*portaudio.DeviceInfo, error) {
		if idx < 0 {
			return nil, nil
		}
		if idx >= len(devs) {
			return nil, fmt.Errorf("engine: no device with index %d", idx)
		}
		return devs[idx].Info, nil
	}
	in, err := pick(inIdx)
	if err != nil {
		return err
	}
	out, err := pick(outIdx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inDev, e.outDev = in, out
	return e.reopen()
}

func clampGain(g float64) float64 {
	if g < 0 {
		return 0
	}
	if g > 1 {
		return 1
	}
	return g
}

// SetMicGain sets the gain applied to the recorded mic signal.
func (e *Engine) SetMicGain(g float64) { e.micGain.store(clampGain(g)) }

// SetBGMGain sets the backing track playback gain.
func (e *Engine) SetBGMGain(g float64) { e.bgmGain.store(clampGain(g)) }

// SetOverlayGain sets the overlay loop playback gain.
func (e *Engine) SetOverlayGain(g float64) { e.overlayGain.store(clampGain(g)) }

// SetMonitorGain sets how much mic is folded back into the output.
func (e *Engine) SetMonitorGain(g float64) { e.monitorGain.store(clampGain(g)) }

// LoadBGM loads a single backing track, resampled to the session rate.
// It loops until the take or audition stops.
func (e *Engine) LoadBGM(path string) error {
	return e.LoadBGMPlaylist([]string{path}, true)
}

// LoadBGMPlaylist loads backing tracks played in order, optionally looping.
func (e *Engine) LoadBGMPlaylist(paths []string, loop bool) error {
	e.mu.Lock()
	sr := e.cfg.SampleRate
	e.mu.Unlock()

	tracks := make([][]float32, 0, len(paths))
	for _, p := range paths {
		samples, err := wavio.ReadMonoAt(p, sr)
		if err != nil {
			return fmt.Errorf("engine: load bgm: %w", err)
		}
		tracks = append(tracks, samples)
	}
	e.core.setPlaylist(tracks, loop)
	return nil
}

// GenerateTone replaces the backing track with a cue tone for the note.
func (e *Engine) GenerateTone(note string, dur time.Duration) error {
	e.mu.Lock()
	sr := e.cfg.SampleRate
	e.mu.Unlock()
	clip, err := synth.ToneWithPadding(note, dur, 200*time.Millisecond, 200*time.Millisecond, sr)
	if err != nil {
		return err
	}
	e.core.setPlaylist([][]float32{clip}, false)
	return nil
}

// GenerateMora replaces the backing track with a mora-paced cue sequence.
func (e *Engine) GenerateMora(note string, bpm float64, count int, gap time.Duration) error {
	e.mu.Lock()
	sr := e.cfg.SampleRate
	e.mu.Unlock()
	clip, err := synth.MoraSequence(note, bpm, count, gap, 200*time.Millisecond, 200*time.Millisecond, sr)
	if err != nil {
		return err
	}
	e.core.setPlaylist([][]float32{clip}, false)
	return nil
}

// GenerateMetronome replaces the backing track with a click track.
func (e *Engine) GenerateMetronome(bpm float64, dur time.Duration) error {
	e.mu.Lock()
	sr := e.cfg.SampleRate
	e.mu.Unlock()
	clip, err := synth.Metronome(bpm, dur, synth.ClickOptions{}, sr)
	if err != nil {
		return err
	}
	e.core.setPlaylist([][]float32{clip}, false)
	return nil
}

// SetOverlay installs an overlay clip from a file, resampled to the
// session rate. The overlay plays once per take or audition, starting
// when playback starts.
func (e *Engine) SetOverlay(path string) error {
	e.mu.Lock()
	sr := e.cfg.SampleRate
	e.mu.Unlock()
	samples, err := wavio.ReadMonoAt(path, sr)
	if err != nil {
		return fmt.Errorf("engine: load overlay: %w", err)
	}
	e.core.setOverlay(samples)
	return nil
}

// SetOverlayTone installs a generated reference tone as the overlay clip.
func (e *Engine) SetOverlayTone(note string, dur time.Duration) error {
	e.mu.Lock()
	sr := e.cfg.SampleRate
	e.mu.Unlock()
	clip, err := synth.Tone(note, dur, sr)
	if err != nil {
		return err
	}
	e.core.setOverlay(clip)
	return nil
}

// SetOverlayEnabled toggles the overlay. Toggling never moves the BGM or
// overlay position; the overlay rewinds when playback starts.
func (e *Engine) SetOverlayEnabled(on bool) {
	e.core.setOverlayEnabled(on)
}

// StartRecording begins a take written to path. With mixBGM the loaded
// backing track starts after the configured pre-roll of mic-only lead-in;
// if none is loaded the take falls back to recording dry.
func (e *Engine) StartRecording(path string, mixBGM bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return fmt.Errorf("engine: not started")
	}
	if e.state != StateIdle {
		return fmt.Errorf("engine: cannot record while %s", e.state)
	}

	s, err := newSession(path, e.cfg.SampleRate, e.cfg.BitDepth, e.cfg.Channels)
	if err != nil {
		return err
	}

	switch {
	case mixBGM && e.core.hasPlaylist():
		preRoll := int(time.Duration(e.cfg.SampleRate) * e.cfg.PreRoll / time.Second)
		e.core.startPlayback(-preRoll)
	case mixBGM:
		e.status("no backing track loaded, recording dry")
	}

	e.rec.Store(s)
	e.state = StateRecording
	return nil
}

// StopRecording ends the take, trims the configured tail (the stop-click
// bleed), writes the final WAV and removes the temp file. If the final
// encode fails the untrimmed temp file is promoted instead so the take is
// never lost. Returns the final path.
func (e *Engine) StopRecording() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRecording {
		return "", fmt.Errorf("engine: not recording")
	}
	s := e.rec.Swap(nil)
	e.core.stopPlayback()
	e.state = StateIdle
	if s == nil {
		return "", fmt.Errorf("engine: no active take")
	}

	if err := s.finish(); err != nil {
		e.status(fmt.Sprintf("temp recording: %v", err))
	}

	take := s.samples()
	trim := int(time.Duration(e.cfg.SampleRate) * e.cfg.TrimTail / time.Second)
	if trim > len(take) {
		trim = len(take)
	}
	take = take[:len(take)-trim]

	if err := wavio.Write(s.finalPath, take, e.cfg.SampleRate, e.cfg.BitDepth, e.cfg.Channels); err != nil {
		e.status(fmt.Sprintf("encode take: %v, keeping raw temp", err))
		if perr := s.promoteTemp(); perr != nil {
			return "", fmt.Errorf("engine: take lost: %w", perr)
		}
	} else {
		s.discardTemp()
	}

	if _, err := os.Stat(s.finalPath); err != nil {
		return "", fmt.Errorf("engine: take missing after stop: %w", err)
	}
	e.lastPath = s.finalPath
	e.lastTake = take
	return s.finalPath, nil
}

// PlayBGM auditions the loaded backing track from the top.
func (e *Engine) PlayBGM() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateRecording {
		return fmt.Errorf("engine: cannot audition while recording")
	}
	if !e.core.hasPlaylist() {
		return fmt.Errorf("engine: no backing track loaded")
	}
	e.core.startPlayback(0)
	e.state = StatePreviewing
	return nil
}

// StopBGM stops an audition.
func (e *Engine) StopBGM() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.core.stopPlayback()
	if e.state == StatePreviewing {
		e.state = StateIdle
	}
}

// State reports the current phase. A finished audition folds back to idle.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StatePreviewing && !e.core.isPlaying() {
		e.state = StateIdle
	}
	return e.state
}

// Latest copies out the most recent n mic samples for live visualization.
func (e *Engine) Latest(n int) []float32 {
	return e.ring.Get(n)
}

// WaveformAudio returns the take recorded so far, or the last finished
// take, or the recent mic history when nothing has been recorded yet.
// The returned slice must not be modified.
func (e *Engine) WaveformAudio() []float32 {
	if s := e.rec.Load(); s != nil {
		return s.samples()
	}
	e.mu.Lock()
	last := e.lastTake
	e.mu.Unlock()
	if last != nil {
		return last
	}
	return e.ring.Get(e.ring.Len())
}

// LastTakePath returns the path of the most recent finished take.
func (e *Engine) LastTakePath() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastPath
}

// BGMClip returns the loaded backing track concatenated, for display.
func (e *Engine) BGMClip() []float32 {
	e.core.mu.Lock()
	defer e.core.mu.Unlock()
	var total int
	for _, t := range e.core.playlist {
		total += len(t)
	}
	out := make([]float32, 0, total)
	for _, t := range e.core.playlist {
		out = append(out, t...)
	}
	return out
}

// process is the PortAudio duplex callback. It must never block; a panic
// here is reported through the status func instead of killing the audio
// host thread.
func (e *Engine) process(in, out []float32) {
	defer func() {
		if r := recover(); r != nil {
			for i := range out {
				out[i] = 0
			}
			e.status(fmt.Sprintf("audio callback fault: %v", r))
		}
	}()

	ch := e.cfg.Channels
	frames := len(in) / ch
	if frames > len(e.mono) {
		frames = len(e.mono)
	}
	mono := e.mono[:frames]
	micBus := e.micBus[:frames]
	bgmBus := e.bgmBus[:frames]
	overlayBus := e.overlayBus[:frames]
	outMono := e.outMono[:frames]

	if ch == 1 {
		copy(mono, in[:frames])
	} else {
		for i := 0; i < frames; i++ {
			var sum float32
			for c := 0; c < ch; c++ {
				sum += in[i*ch+c]
			}
			mono[i] = sum / float32(ch)
		}
	}

	mg := e.micGain.load()
	for i := range mono {
		micBus[i] = mono[i] * mg
	}

	e.ring.Push(micBus)
	if s := e.rec.Load(); s != nil {
		s.push(micBus)
	}

	e.core.fillBGM(bgmBus)
	e.core.fillOverlay(overlayBus)
	mixInto(outMono, micBus, bgmBus, overlayBus,
		e.monitorGain.load(), e.bgmGain.load(), e.overlayGain.load())

	for i := 0; i < frames; i++ {
		for c := 0; c < ch; c++ {
			out[i*ch+c] = outMono[i]
		}
	}
	for i := frames * ch; i < len(out); i++ {
		out[i] = 0
	}
}

// Device describes an audio device for selection UIs.
type Device struct {
	Index         int
	Name          string
	MaxInputs     int
	MaxOutputs    int
	DefaultSR     float64
	DefaultInput  bool
	DefaultOutput bool

	Info *portaudio.DeviceInfo
}

// Devices lists the host's audio devices. PortAudio is initialized on
// demand and left initialized.
func Devices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("engine: portaudio init: %w", err)
	}
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("engine: list devices: %w", err)
	}
	defIn, _ := portaudio.DefaultInputDevice()
	defOut, _ := portaudio.DefaultOutputDevice()

	devs := make([]Device, len(infos))
	for i, info := range infos {
		devs[i] = Device{
			Index:         i,
			Name:          info.Name,
			MaxInputs:     info.MaxInputChannels,
			MaxOutputs:    info.MaxOutputChannels,
			DefaultSR:     info.DefaultSampleRate,
			DefaultInput:  info == defIn,
			DefaultOutput: info == defOut,
			Info:          info,
		}
	}
	return devs, nil
}
