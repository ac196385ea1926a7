// Package audio owns the host capture device and converts whatever it
// delivers into 16kHz mono transcore/internal/audiotype.Frame values flowing
// through a bounded queue, per spec §4.2.
package audio

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"transcore/internal/audiotype"
	"transcore/internal/corerr"
)

// Device describes one host audio device as reported by malgo.
type Device struct {
	ID      string
	Name    string
	IsInput bool
}

// preferredRates is the sample-rate negotiation order from spec §4.2.
var preferredRates = []int{48000, 44100, 32000, 24000, 16000, 22050, 11025, 8000}

// State is the Capture task's own lifecycle, distinct from (but driven by)
// the owning Session's state machine.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateRecovering
	StateFailed
)

// Capture owns a malgo device and republishes its callback-delivered frames
// onto a bounded Go channel, dropping the oldest frame on overflow (never
// the newest) per spec §4.2.
type Capture struct {
	ctx *malgo.AllocatedContext

	mu       sync.Mutex
	device   *malgo.Device
	deviceID *malgo.DeviceID
	state    State

	queue         chan audiotype.Frame
	queueCap      int
	framesDropped int64
	lastDropLog   time.Time

	source audiotype.Source
	config malgo.DeviceConfig
}

// NewCapture initializes the malgo context. queueCapacitySeconds sizes the
// bounded queue; spec §4.2 recommends 10x the expected capacity in seconds.
func NewCapture(queueCapacitySeconds int) (*Capture, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, corerr.New(corerr.KindNoDevice, "capture", err)
	}
	// A 48kHz mono capture delivers ~48000 samples/sec; size the queue in
	// frames assuming ~20ms callback frames (960 samples), which is the
	// malgo default buffer granularity.
	framesPerSecond := 50
	return &Capture{
		ctx:      ctx,
		queue:    make(chan audiotype.Frame, queueCapacitySeconds*framesPerSecond),
		queueCap: queueCapacitySeconds * framesPerSecond,
		state:    StateIdle,
	}, nil
}

// ListDevices enumerates capture-capable devices.
func (c *Capture) ListDevices() ([]Device, error) {
	devs, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, corerr.New(corerr.KindNoDevice, "capture", err)
	}
	out := make([]Device, 0, len(devs))
	for _, d := range devs {
		out = append(out, Device{ID: deviceIDToString(d.ID), Name: d.Name(), IsInput: true})
	}
	return out, nil
}

// findDevice resolves a configured device identifier to a malgo.DeviceID,
// falling back to the host default, per spec §4.2 device-selection order.
func (c *Capture) findDevice(deviceID string) (*malgo.DeviceID, error) {
	if deviceID == "" {
		return nil, nil // default device
	}
	devs, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, corerr.New(corerr.KindNoDevice, "capture", err)
	}
	for _, d := range devs {
		if deviceIDToString(d.ID) == deviceID || strings.EqualFold(d.Name(), deviceID) {
			id := d.ID
			return &id, nil
		}
	}
	return nil, corerr.New(corerr.KindNoDevice, "capture", fmt.Errorf("device %q not found", deviceID))
}

// negotiateSampleRate scans the device's supported rate range in the
// preference order from spec §4.2 and returns the first preferred rate inside
// [minRate, maxRate], or the range's mid-point clamped to [16000, 48000].
// Channel-count support is not checked here.
func negotiateSampleRate(minRate, maxRate int) int {
	for _, r := range preferredRates {
		if r >= minRate && r <= maxRate {
			return r
		}
	}
	mid := (minRate + maxRate) / 2
	if mid < 16000 {
		return 16000
	}
	if mid > 48000 {
		return 48000
	}
	return mid
}

// Start opens the capture device identified by deviceID (empty = default
// input device) and begins delivering audiotype.Frame values on Frames().
// source labels frames produced by this Capture instance (Microphone or
// SystemAudio; File-sourced frames come from the replay reader, not here).
func (c *Capture) Start(ctx context.Context, deviceID string, source audiotype.Source) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRunning {
		return corerr.New(corerr.KindConfigInvalid, "capture", fmt.Errorf("already running"))
	}

	id, err := c.findDevice(deviceID)
	if err != nil {
		return err
	}
	c.deviceID = id
	c.source = source

	if err := c.openDevice(); err != nil {
		return classifyOpenError(err)
	}

	c.state = StateRunning
	go c.watchDisconnect(ctx)
	return nil
}

func (c *Capture) openDevice() error {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	// malgo doesn't expose the device's raw min/max range before opening, so
	// negotiation is approximated by requesting the first preferred rate and
	// letting the backend pick its nearest native rate. With the fixed
	// 8000-48000 range passed here, negotiateSampleRate always yields 48000.
	cfg.SampleRate = uint32(negotiateSampleRate(8000, 48000))
	cfg.Alsa.NoMMap = 1
	if c.deviceID != nil {
		cfg.Capture.DeviceID = c.deviceID.Pointer()
	}

	onRecv := func(_, in []byte, frameCount uint32) {
		sampleCount := int(frameCount)
		if len(in) != sampleCount*4 {
			return
		}
		samples := make([]float32, sampleCount)
		for i := 0; i < sampleCount; i++ {
			bits := uint32(in[i*4]) | uint32(in[i*4+1])<<8 | uint32(in[i*4+2])<<16 | uint32(in[i*4+3])<<24
			samples[i] = math.Float32frombits(bits)
		}
		c.publish(audiotype.Frame{
			Samples:    samples,
			SampleRate: int(cfg.SampleRate),
			Channels:   int(cfg.Capture.Channels),
			WallTime:   time.Now(),
			Source:     c.source,
		})
	}

	dev, err := malgo.InitDevice(c.ctx.Context, cfg, malgo.DeviceCallbacks{Data: onRecv})
	if err != nil {
		return err
	}
	if err := dev.Start(); err != nil {
		return err
	}
	c.device = dev
	c.config = cfg
	return nil
}

// classifyOpenError maps malgo's untyped errors onto the taxonomy from
// spec §4.2: an initial failure is PermissionDenied unless it explicitly
// indicates the device is busy, in which case it isn't a permission issue.
func classifyOpenError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "busy") || strings.Contains(msg, "in use") {
		return corerr.New(corerr.KindNoDevice, "capture", err)
	}
	return corerr.New(corerr.KindPermissionDenied, "capture", err)
}

// publish delivers a frame to the bounded queue, dropping the oldest queued
// frame on overflow (never the newest), logging drops at most once/second.
func (c *Capture) publish(f audiotype.Frame) {
	select {
	case c.queue <- f:
		return
	default:
	}
	select {
	case <-c.queue:
	default:
	}
	select {
	case c.queue <- f:
	default:
	}
	c.mu.Lock()
	c.framesDropped++
	shouldLog := time.Since(c.lastDropLog) >= time.Second
	if shouldLog {
		c.lastDropLog = time.Now()
	}
	dropped := c.framesDropped
	c.mu.Unlock()
	if shouldLog {
		log.Printf("capture: dropped oldest frame, total dropped=%d", dropped)
	}
}

// Frames returns the channel frames are delivered on.
func (c *Capture) Frames() <-chan audiotype.Frame { return c.queue }

// FramesDropped returns the cumulative drop counter backing P8.
func (c *Capture) FramesDropped() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.framesDropped
}

// QueueDepth reports the current queue occupancy, for backpressure metrics.
func (c *Capture) QueueDepth() int { return len(c.queue) }

// QueueCapacity reports the configured queue capacity.
func (c *Capture) QueueCapacity() int { return c.queueCap }

// watchDisconnect polls device state; on loss it attempts rebinding to the
// default device every 500ms for up to 5s before failing, per spec §4.2.
func (c *Capture) watchDisconnect(ctx context.Context) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			lost := c.device != nil && !c.device.IsStarted()
			c.mu.Unlock()
			if !lost {
				continue
			}
			c.recover(ctx)
			return
		}
	}
}

func (c *Capture) recover(ctx context.Context) {
	c.mu.Lock()
	c.state = StateRecovering
	c.deviceID = nil // fall back to default device
	c.mu.Unlock()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(500 * time.Millisecond):
		}
		c.mu.Lock()
		err := c.openDevice()
		if err == nil {
			c.state = StateRunning
			c.mu.Unlock()
			go c.watchDisconnect(ctx)
			return
		}
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.state = StateFailed
	c.mu.Unlock()
}

// State returns the Capture task's current lifecycle state.
func (c *Capture) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stop halts the capture device without releasing the malgo context, so
// Start can be called again.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	c.state = StateIdle
	return nil
}

// Close releases the malgo context. The Capture must not be reused after
// Close.
func (c *Capture) Close() {
	c.Stop()
	if c.ctx != nil {
		c.ctx.Uninit()
		c.ctx.Free()
	}
}

func deviceIDToString(id malgo.DeviceID) string {
	var b strings.Builder
	for _, c := range id[:32] {
		if c == 0 {
			break
		}
		b.WriteByte(c)
	}
	return b.String()
}
