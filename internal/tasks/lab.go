package tasks

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/services"
)

// Prompt lab defaults.
const (
	DefaultLabTemplate = "Translate the following to English."
	MsgLabFailed       = "Lab run failed"
)

// DefaultLabModels seed the first two lanes.
var DefaultLabModels = []string{"gpt-4o", "claude-3-5-sonnet"}

// LabClient opens prompt lab translation streams.
type LabClient interface {
	LabStream(ctx context.Context, req models.LabRequest) (*services.ChunkStream, error)
}

// LaneStatus is the lifecycle of one lab lane.
type LaneStatus string

const (
	LaneIdle      LaneStatus = "idle"
	LaneRunning   LaneStatus = "running"
	LaneCompleted LaneStatus = "completed"
	LaneError     LaneStatus = "error"
)

// Lane is one model/template pair run against the lab input.
type Lane struct {
	Model    string
	Template string
	Output   string
	Status   LaneStatus
	Error    string
	Duration time.Duration
}

// Lab runs the same text through several model/template lanes side by side.
type Lab struct {
	api    LabClient
	logger *log.Logger
	now    func() time.Time

	mu      sync.Mutex
	lanes   []Lane
	cancel  context.CancelFunc
	gen     uint64
	updates chan []Lane
	wg      sync.WaitGroup
}

// NewLab creates a lab with one idle lane per default model.
func NewLab(api LabClient, logger *log.Logger) *Lab {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	l := &Lab{api: api, logger: logger, now: time.Now, updates: make(chan []Lane, 1)}
	for _, m := range DefaultLabModels {
		l.lanes = append(l.lanes, Lane{Model: m, Template: DefaultLabTemplate, Status: LaneIdle})
	}
	return l
}

// Updates delivers a copy of the lanes after each change.
func (l *Lab) Updates() <-chan []Lane { return l.updates }

// Lanes returns a copy of the lanes.
func (l *Lab) Lanes() []Lane {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

func (l *Lab) snapshot() []Lane {
	out := make([]Lane, len(l.lanes))
	copy(out, l.lanes)
	return out
}

func (l *Lab) notify() { publishLatest(l.updates, l.snapshot()) }

// AddLane appends an idle lane and returns its index.
func (l *Lab) AddLane(model, template string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if template == "" {
		template = DefaultLabTemplate
	}
	l.lanes = append(l.lanes, Lane{Model: model, Template: template, Status: LaneIdle})
	l.notify()
	return len(l.lanes) - 1
}

// RemoveLane drops lane i. Out of range indexes are ignored.
func (l *Lab) RemoveLane(i int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.lanes) {
		return
	}
	l.lanes = append(l.lanes[:i], l.lanes[i+1:]...)
	l.notify()
}

// SetLane edits the model and template of lane i.
func (l *Lab) SetLane(i int, model, template string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.lanes) {
		return
	}
	l.lanes[i].Model = model
	l.lanes[i].Template = template
	l.notify()
}

// Run streams text through every lane concurrently, cancelling any previous run.
func (l *Lab) Run(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return services.NewValidationError("Enter some text to translate.")
	}

	l.Stop()

	l.mu.Lock()
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.gen++
	gen := l.gen
	for i := range l.lanes {
		l.lanes[i].Output = ""
		l.lanes[i].Error = ""
		l.lanes[i].Duration = 0
		l.lanes[i].Status = LaneRunning
	}
	lanes := l.snapshot()
	l.notify()
	l.mu.Unlock()

	for i, lane := range lanes {
		l.wg.Add(1)
		go l.runLane(ctx, gen, i, models.LabRequest{Text: text, Model: lane.Model, Template: lane.Template})
	}
	return nil
}

func (l *Lab) runLane(ctx context.Context, gen uint64, i int, req models.LabRequest) {
	defer l.wg.Done()
	started := l.now()

	update := func(fn func(*Lane)) bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		if gen != l.gen || i >= len(l.lanes) {
			return false
		}
		fn(&l.lanes[i])
		l.notify()
		return true
	}
	fail := func(err error) {
		update(func(ln *Lane) {
			ln.Status = LaneError
			ln.Error = streamErrorMessage(err, MsgLabFailed)
			ln.Duration = l.now().Sub(started)
		})
	}

	stream, err := l.api.LabStream(ctx, req)
	if err != nil {
		if ctx.Err() == nil {
			l.logger.Warn("lab stream failed", "model", req.Model, "error", err)
			fail(err)
		}
		return
	}
	defer stream.Close()

	for {
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			update(func(ln *Lane) {
				ln.Status = LaneCompleted
				ln.Duration = l.now().Sub(started)
			})
			return
		}
		if err != nil {
			if ctx.Err() == nil {
				fail(err)
			}
			return
		}
		if !update(func(ln *Lane) { ln.Output += chunk }) {
			return
		}
	}
}

// Stop cancels the running lanes. Output already received is kept and running lanes return to idle.
func (l *Lab) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.gen++
	for i := range l.lanes {
		if l.lanes[i].Status == LaneRunning {
			l.lanes[i].Status = LaneIdle
		}
	}
	l.notify()
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Close stops the run and waits for every lane to exit.
func (l *Lab) Close() {
	l.Stop()
	l.wg.Wait()
}
