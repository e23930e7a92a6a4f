package tidy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// State identifies where the organization workflow currently is.
type State string

const (
	StateIdle       State = "idle"
	StateScanning   State = "scanning"
	StateOrganizing State = "organizing"
	StateReady      State = "ready"
	StateApplying   State = "applying"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// DefaultSlowThreshold is how long the organizing phase may run before the
// taking-longer-than-expected flag is raised.
const DefaultSlowThreshold = 30 * time.Second

// OrganizationStateMachine orchestrates scan -> generate -> edit -> apply.
// It exclusively owns the current plan and its editable tree. Scanning and
// generation run as cancellable background work: Reset cancels them via
// context, checked cooperatively between events. Resetting during apply is
// refused: an apply in progress runs to completion so the filesystem never
// ends up in an unrecorded half-applied state.
//
// completed and error are dead ends until Reset.
type OrganizationStateMachine struct {
	scanner   Scanner
	generator PlanGenerator
	service   *TidyService
	logger    Logger
	clock     Clock
	idgen     IDGenerator

	computeHashes bool
	slowThreshold time.Duration

	mu           sync.Mutex
	state        State
	cause        error
	dir          string
	files        []FileRecord
	tree         *PlanTree
	version      int
	instructions []string
	insights     []Insight // newest first
	current      *Insight  // bounded slot: always the latest event
	phaseStart   time.Time
	cancel       context.CancelFunc
}

// NewOrganizationStateMachine creates a state machine in the idle state.
func NewOrganizationStateMachine(scanner Scanner, generator PlanGenerator, service *TidyService, logger Logger, clock Clock, idgen IDGenerator, computeHashes bool) *OrganizationStateMachine {
	return &OrganizationStateMachine{
		scanner:       scanner,
		generator:     generator,
		service:       service,
		logger:        logger,
		clock:         clock,
		idgen:         idgen,
		computeHashes: computeHashes,
		slowThreshold: DefaultSlowThreshold,
		state:         StateIdle,
	}
}

// SetSlowThreshold overrides the taking-longer-than-expected threshold.
func (m *OrganizationStateMachine) SetSlowThreshold(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slowThreshold = d
}

// State returns the current state.
func (m *OrganizationStateMachine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Cause returns the failure that moved the machine into the error state.
func (m *OrganizationStateMachine) Cause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cause
}

// Files returns the records from the most recent scan.
func (m *OrganizationStateMachine) Files() []FileRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]FileRecord(nil), m.files...)
}

// Tree returns the editable plan tree, or nil before a plan is ready.
// Edits execute on the caller's single logical thread of control and never
// touch disk.
func (m *OrganizationStateMachine) Tree() *PlanTree {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tree
}

// Plan derives the current plan from the tree, or nil before ready.
func (m *OrganizationStateMachine) Plan() *OrganizationPlan {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tree == nil {
		return nil
	}
	return m.tree.Rebuild()
}

// Insights returns the insight history, most recent first.
func (m *OrganizationStateMachine) Insights() []Insight {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Insight(nil), m.insights...)
}

// CurrentInsight returns the latest insight event, or nil if none arrived.
func (m *OrganizationStateMachine) CurrentInsight() *Insight {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// TakingLongerThanExpected reports whether the current scanning or organizing
// phase has exceeded the slow threshold. It never changes state.
func (m *OrganizationStateMachine) TakingLongerThanExpected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateScanning && m.state != StateOrganizing {
		return false
	}
	return m.clock.Now().Sub(m.phaseStart) > m.slowThreshold
}

// AddInstructions records custom instructions that will be passed to the
// generator on the next generation. Unlike RegeneratePreview this does not
// trigger generation itself, so it can seed the very first run.
func (m *OrganizationStateMachine) AddInstructions(s string) {
	if strings.TrimSpace(s) == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instructions = append(m.instructions, s)
}

// Organize runs the scan and generation phases for a directory, leaving the
// machine in ready with an editable plan. It may only be called from idle.
// The call blocks until the plan is ready, fails, or is cancelled via Reset
// or ctx.
func (m *OrganizationStateMachine) Organize(ctx context.Context, dir string) error {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return fmt.Errorf("cannot organize from state %s", m.state)
	}
	cctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.dir = dir
	m.state = StateScanning
	m.phaseStart = m.clock.Now()
	m.mu.Unlock()
	defer cancel()

	m.logger.Info("scan started", "dir", dir)
	files, err := m.scanner.Scan(cctx, dir, m.computeHashes)
	if err != nil {
		return m.fail(&ScanError{Dir: dir, Err: err})
	}

	m.mu.Lock()
	if m.state != StateScanning { // reset raced the scan
		m.mu.Unlock()
		return context.Canceled
	}
	m.files = files
	m.mu.Unlock()

	return m.generate(cctx, StateScanning)
}

// RegeneratePreview re-invokes generation with the accumulated custom
// instructions, incrementing the plan version. Only valid from ready.
func (m *OrganizationStateMachine) RegeneratePreview(ctx context.Context, extraInstructions string) error {
	m.mu.Lock()
	if m.state != StateReady {
		m.mu.Unlock()
		return fmt.Errorf("cannot regenerate from state %s", m.state)
	}
	if strings.TrimSpace(extraInstructions) != "" {
		m.instructions = append(m.instructions, extraInstructions)
	}
	cctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()
	defer cancel()

	return m.generate(cctx, StateReady)
}

// generate runs the organizing phase: stream insights, then a final plan.
// from is the state the machine is expected to be in when entering.
func (m *OrganizationStateMachine) generate(ctx context.Context, from State) error {
	m.mu.Lock()
	if m.state != from {
		m.mu.Unlock()
		return context.Canceled
	}
	m.state = StateOrganizing
	m.phaseStart = m.clock.Now()
	files := m.files
	instructions := strings.Join(m.instructions, "\n")
	m.mu.Unlock()

	m.logger.Info("plan generation started", "files", len(files))
	onInsight := func(ins Insight) {
		m.mu.Lock()
		m.insights = append([]Insight{ins}, m.insights...)
		m.current = &ins
		m.mu.Unlock()
		m.logger.Debug("insight", "message", ins.Message)
	}

	plan, err := m.generator.Generate(ctx, files, instructions, onInsight)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return m.fail(&GenerationError{Err: err})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateOrganizing { // reset raced the generation
		return context.Canceled
	}
	m.version++
	plan.Version = m.version
	m.tree = NewPlanTree(plan, m.idgen)
	m.state = StateReady
	m.cancel = nil
	m.logger.Info("plan ready", "version", plan.Version, "folders", len(plan.Folders))
	return nil
}

// Apply executes the current plan against the target base directory and
// moves the machine to completed. The entry records per-operation outcomes;
// partial failures complete the transition but leave Success false.
func (m *OrganizationStateMachine) Apply(baseDir string, opts ApplyOptions) (*HistoryEntry, error) {
	m.mu.Lock()
	if m.state != StateReady {
		m.mu.Unlock()
		return nil, fmt.Errorf("cannot apply from state %s", m.state)
	}
	if baseDir == "" {
		baseDir = m.dir
	}
	plan := m.tree.Rebuild()
	m.state = StateApplying
	m.mu.Unlock()

	entry, err := m.service.ApplyPlan(plan, baseDir, opts)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = StateError
		m.cause = err
		return entry, err
	}
	m.state = StateCompleted
	return entry, nil
}

// Reset returns the machine to idle from any state, cancelling an in-flight
// scan or generation and discarding any partial plan. Resetting during
// applying is refused.
func (m *OrganizationStateMachine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateApplying {
		return fmt.Errorf("cannot reset while applying")
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.state = StateIdle
	m.cause = nil
	m.dir = ""
	m.files = nil
	m.tree = nil
	m.version = 0
	m.instructions = nil
	m.insights = nil
	m.current = nil
	return nil
}

// fail moves the machine into the error state carrying the failure cause,
// unless a reset already intervened.
func (m *OrganizationStateMachine) fail(cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateIdle { // reset won the race; swallow the stale failure
		return context.Canceled
	}
	m.state = StateError
	m.cause = cause
	m.cancel = nil
	m.logger.Error("organization failed", "error", cause)
	return cause
}
