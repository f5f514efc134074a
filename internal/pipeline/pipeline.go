package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/csstrim/internal/model"
)

// Step is one stage of a run.
// Each step owns exactly one model.State; the pipeline moves the run into
// that state before calling Do.
type Step interface {
	// Do executes the step. A returned error is fatal for the run.
	// Recoverable per-item problems are recorded on the run instead.
	Do(ctx context.Context, run *model.Run) error

	// Name returns the step's name for logging purposes.
	Name() string

	// State returns the run state this step executes in.
	State() model.State
}

// Pipeline executes steps in order and drives the run's state machine.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs every step and leaves run in StateDone or StateFailed.
//
// Execution is fail-fast: the first step error, a cancelled context or an
// illegal transition moves the run to StateFailed and is returned wrapped
// in a model.StageError. Nothing runs after a failure.
func (p *Pipeline) Execute(ctx context.Context, run *model.Run) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("run cancelled",
				"run_id", run.ID,
				"step", step.Name(),
				"reason", err,
			)
			return run.Fail(err)
		}

		if err := run.Advance(step.State()); err != nil {
			return run.Fail(err)
		}

		p.logger.Debug("executing step",
			"run_id", run.ID,
			"step", step.Name(),
			"target", run.Target.String(),
		)

		if err := step.Do(ctx, run); err != nil {
			p.logger.Warn("step failed",
				"run_id", run.ID,
				"step", step.Name(),
				"target", run.Target.String(),
				"error", err,
			)
			return run.Fail(err)
		}
	}

	if err := run.Advance(model.StateDone); err != nil {
		return run.Fail(err)
	}
	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
