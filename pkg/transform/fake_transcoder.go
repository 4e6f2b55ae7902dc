package transform

import (
	"context"
	"os"
	"sync"
	"time"
)

// FakeTranscoder records invocations and writes canned output files. Used by
// tests that must not spawn real processes.
type FakeTranscoder struct {
	mu sync.Mutex

	TranscodeCalls int
	FrameCalls     int

	// inFlight counts subprocess invocations currently running; MaxInFlight
	// records the highest overlap seen, so tests can check that a
	// concurrency limit actually bounds ffmpeg.
	inFlight    int
	MaxInFlight int

	// Delay stretches each invocation so overlapping calls are observable.
	Delay time.Duration

	// FailTranscode makes every Transcode call return ErrTranscodeFailed.
	FailTranscode bool
	FailFrames    bool

	Output      []byte
	FrameOutput []byte
}

func NewFakeTranscoder() *FakeTranscoder {
	return &FakeTranscoder{
		Output:      []byte("transcoded-video"),
		FrameOutput: []byte("extracted-frame"),
	}
}

func (t *FakeTranscoder) Transcode(_ context.Context, _, outputPath string, _ TranscodeOpts) error {
	t.enter()
	defer t.leave()

	t.mu.Lock()
	t.TranscodeCalls++
	fail := t.FailTranscode
	t.mu.Unlock()

	if fail {
		return ErrTranscodeFailed
	}

	return os.WriteFile(outputPath, t.Output, 0o644)
}

func (t *FakeTranscoder) ExtractFrame(_ context.Context, _, outputPath string) error {
	t.enter()
	defer t.leave()

	t.mu.Lock()
	t.FrameCalls++
	fail := t.FailFrames
	t.mu.Unlock()

	if fail {
		return ErrTranscodeFailed
	}

	return os.WriteFile(outputPath, t.FrameOutput, 0o644)
}

func (t *FakeTranscoder) enter() {
	t.mu.Lock()
	t.inFlight++
	if t.inFlight > t.MaxInFlight {
		t.MaxInFlight = t.inFlight
	}
	delay := t.Delay
	t.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
}

func (t *FakeTranscoder) leave() {
	t.mu.Lock()
	t.inFlight--
	t.mu.Unlock()
}
