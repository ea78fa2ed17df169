package engine

import "sync"

// mixCore holds the playback state touched by the audio callback: the BGM
// playlist with its cursor and the one-shot overlay clip. All methods are safe to call
// from the callback and from control goroutines; the lock is held only for
// short copy loops.
//
// The BGM cursor may be negative. Negative positions play silence, which is
// how recording pre-roll works: the cursor starts at -preRollSamples and the
// backing track enters once it crosses zero.
type mixCore struct {
	mu sync.Mutex

	playlist [][]float32
	track    int
	cursor   int
	playing  bool
	loop     bool

	overlay       []float32
	overlayCursor int
	overlayOn     bool
}

// setPlaylist replaces the BGM playlist and stops playback.
func (c *mixCore) setPlaylist(tracks [][]float32, loop bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playlist = tracks
	c.loop = loop
	c.track = 0
	c.cursor = 0
	c.playing = false
}

func (c *mixCore) hasPlaylist() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.playlist) > 0
}

// startPlayback rewinds to the first track and starts playing from the given
// cursor, typically 0 or a negative pre-roll offset. The overlay rewinds
// with it so its single pass lines up with the take.
func (c *mixCore) startPlayback(cursor int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.track = 0
	c.cursor = cursor
	c.playing = len(c.playlist) > 0
	c.overlayCursor = 0
}

func (c *mixCore) stopPlayback() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = false
}

func (c *mixCore) isPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// setOverlay replaces the overlay clip and rewinds it.
func (c *mixCore) setOverlay(samples []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overlay = samples
	c.overlayCursor = 0
}

// setOverlayEnabled toggles the overlay without touching any cursor, so
// flipping it mid-take never restarts the clip or moves the BGM.
func (c *mixCore) setOverlayEnabled(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overlayOn = on
}

// fillBGM writes the next len(dst) BGM samples into dst and advances the
// cursor. Negative cursor positions and exhausted playlists produce silence.
// Reaching the end of the last track stops playback unless looping.
func (c *mixCore) fillBGM(dst []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range dst {
		dst[i] = 0
	}
	if !c.playing {
		return
	}

	filled := 0
	for filled < len(dst) {
		if c.cursor < 0 {
			// Pre-roll silence.
			n := -c.cursor
			if n > len(dst)-filled {
				n = len(dst) - filled
			}
			c.cursor += n
			filled += n
			continue
		}
		if c.track >= len(c.playlist) {
			c.playing = false
			return
		}
		cur := c.playlist[c.track]
		if c.cursor >= len(cur) {
			c.track++
			c.cursor = 0
			if c.track >= len(c.playlist) {
				if c.loop {
					c.track = 0
					continue
				}
				c.playing = false
				return
			}
			continue
		}
		n := copy(dst[filled:], cur[c.cursor:])
		c.cursor += n
		filled += n
	}
}

// fillOverlay writes the next len(dst) overlay samples into dst. The clip
// plays once per arm; past its end, and while disabled or empty, the bus
// carries silence.
func (c *mixCore) fillOverlay(dst []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.overlayOn || len(c.overlay) == 0 {
		for i := range dst {
			dst[i] = 0
		}
		return
	}
	for i := range dst {
		if c.overlayCursor >= len(c.overlay) {
			dst[i] = 0
			continue
		}
		dst[i] = c.overlay[c.overlayCursor]
		c.overlayCursor++
	}
}

// mixInto sums the monitor, BGM and overlay buses into out with per-bus
// gains, clipping to [-1, 1]. All slices must share a length.
func mixInto(out, mic, bgm, overlay []float32, micGain, bgmGain, overlayGain float32) {
	for i := range out {
		v := mic[i]*micGain + bgm[i]*bgmGain + overlay[i]*overlayGain
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		out[i] = v
	}
}
