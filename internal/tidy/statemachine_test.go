package tidy_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"tidy-go/internal/database"
	"tidy-go/internal/testutil"
	"tidy-go/internal/tidy"
)

type machineFixture struct {
	machine   *tidy.OrganizationStateMachine
	scanner   *testutil.StubScanner
	generator *testutil.StubGenerator
	fsmgr     *testutil.MockFilesystemManager
	ledger    *database.MemoryLedger
	clock     *testutil.StubClock
}

func newMachineFixture() *machineFixture {
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddFile("/base/a.txt", []byte("aa"))
	fsmgr.AddFile("/base/b.txt", []byte("bb"))

	scanner := &testutil.StubScanner{Files: []tidy.FileRecord{
		{Path: "/base/a.txt", Size: 1},
		{Path: "/base/b.txt", Size: 2},
	}}
	generator := &testutil.StubGenerator{
		Plan:     movePlan(),
		Insights: []string{"looking at file types", "grouping text files"},
	}

	ledger := database.NewMemoryLedger()
	clock := testutil.FixedClock()
	service := tidy.NewTidyService(ledger, testutil.NewMockVault(fsmgr), fsmgr, tidy.NewNopLogger(), clock, testutil.NewStubIDGenerator())
	machine := tidy.NewOrganizationStateMachine(scanner, generator, service, tidy.NewNopLogger(), clock, testutil.NewStubIDGenerator(), true)

	return &machineFixture{
		machine:   machine,
		scanner:   scanner,
		generator: generator,
		fsmgr:     fsmgr,
		ledger:    ledger,
		clock:     clock,
	}
}

func TestStateMachine_Organize(t *testing.T) {
	t.Run("reaches ready with an editable plan", func(t *testing.T) {
		fx := newMachineFixture()

		if err := fx.machine.Organize(context.Background(), "/base"); err != nil {
			t.Fatalf("Organize() error = %v", err)
		}

		if got := fx.machine.State(); got != tidy.StateReady {
			t.Errorf("State() = %s, want %s", got, tidy.StateReady)
		}
		if n := len(fx.machine.Files()); n != 2 {
			t.Errorf("len(Files()) = %d, want 2", n)
		}
		if fx.machine.Tree() == nil {
			t.Fatal("Tree() = nil in ready state")
		}
		plan := fx.machine.Plan()
		if plan.Version != 1 {
			t.Errorf("plan.Version = %d, want 1", plan.Version)
		}
	})

	t.Run("insights arrive newest first", func(t *testing.T) {
		fx := newMachineFixture()

		if err := fx.machine.Organize(context.Background(), "/base"); err != nil {
			t.Fatal(err)
		}

		insights := fx.machine.Insights()
		if len(insights) != 2 {
			t.Fatalf("len(Insights()) = %d, want 2", len(insights))
		}
		if insights[0].Message != "grouping text files" || insights[1].Message != "looking at file types" {
			t.Errorf("insight order = [%q %q], want newest first", insights[0].Message, insights[1].Message)
		}
		current := fx.machine.CurrentInsight()
		if current == nil || current.Message != "grouping text files" {
			t.Errorf("CurrentInsight() = %+v, want the latest event", current)
		}
	})

	t.Run("refused outside idle", func(t *testing.T) {
		fx := newMachineFixture()
		if err := fx.machine.Organize(context.Background(), "/base"); err != nil {
			t.Fatal(err)
		}

		if err := fx.machine.Organize(context.Background(), "/base"); err == nil {
			t.Error("second Organize() did not error")
		}
	})

	t.Run("scan failure moves to error with a ScanError cause", func(t *testing.T) {
		fx := newMachineFixture()
		fx.scanner.Err = errors.New("permission denied")

		err := fx.machine.Organize(context.Background(), "/base")
		var scanErr *tidy.ScanError
		if !errors.As(err, &scanErr) {
			t.Fatalf("Organize() error = %v, want ScanError", err)
		}
		if got := fx.machine.State(); got != tidy.StateError {
			t.Errorf("State() = %s, want %s", got, tidy.StateError)
		}
		if !errors.As(fx.machine.Cause(), &scanErr) {
			t.Errorf("Cause() = %v, want ScanError", fx.machine.Cause())
		}
	})

	t.Run("generation failure moves to error with a GenerationError cause", func(t *testing.T) {
		fx := newMachineFixture()
		fx.generator.Err = errors.New("model unavailable")

		err := fx.machine.Organize(context.Background(), "/base")
		var genErr *tidy.GenerationError
		if !errors.As(err, &genErr) {
			t.Fatalf("Organize() error = %v, want GenerationError", err)
		}
		if got := fx.machine.State(); got != tidy.StateError {
			t.Errorf("State() = %s, want %s", got, tidy.StateError)
		}
	})
}

func TestStateMachine_RegeneratePreview(t *testing.T) {
	t.Run("increments the version and accumulates instructions", func(t *testing.T) {
		fx := newMachineFixture()
		fx.machine.AddInstructions("keep pdfs together")

		if err := fx.machine.Organize(context.Background(), "/base"); err != nil {
			t.Fatal(err)
		}
		if err := fx.machine.RegeneratePreview(context.Background(), "no archives"); err != nil {
			t.Fatalf("RegeneratePreview() error = %v", err)
		}

		if got := fx.machine.Plan().Version; got != 2 {
			t.Errorf("plan.Version = %d, want 2", got)
		}

		got := fx.generator.GotInstructions()
		want := []string{"keep pdfs together", "keep pdfs together\nno archives"}
		if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("GotInstructions() = %q, want %q", got, want)
		}
	})

	t.Run("refused outside ready", func(t *testing.T) {
		fx := newMachineFixture()
		if err := fx.machine.RegeneratePreview(context.Background(), "x"); err == nil {
			t.Error("RegeneratePreview() from idle did not error")
		}
	})
}

func TestStateMachine_Apply(t *testing.T) {
	t.Run("applies the plan and completes", func(t *testing.T) {
		fx := newMachineFixture()
		if err := fx.machine.Organize(context.Background(), "/base"); err != nil {
			t.Fatal(err)
		}

		entry, err := fx.machine.Apply("", tidy.ApplyOptions{})
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if !entry.Success {
			t.Errorf("entry.Success = false: %+v", entry.Operations)
		}
		if got := fx.machine.State(); got != tidy.StateCompleted {
			t.Errorf("State() = %s, want %s", got, tidy.StateCompleted)
		}
		if !fx.fsmgr.Exists("/base/Documents/a.txt") {
			t.Error("plan not applied to the filesystem")
		}

		latest, _ := fx.ledger.Latest()
		if latest == nil || latest.ID != entry.ID {
			t.Error("apply entry not recorded in the ledger")
		}
	})

	t.Run("partial failure still completes", func(t *testing.T) {
		fx := newMachineFixture()
		fx.fsmgr.FailMove["/base/a.txt"] = true
		if err := fx.machine.Organize(context.Background(), "/base"); err != nil {
			t.Fatal(err)
		}

		entry, err := fx.machine.Apply("", tidy.ApplyOptions{})
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if entry.Success {
			t.Error("entry.Success = true despite a failed move")
		}
		if got := fx.machine.State(); got != tidy.StateCompleted {
			t.Errorf("State() = %s, want %s", got, tidy.StateCompleted)
		}
	})

	t.Run("refused outside ready", func(t *testing.T) {
		fx := newMachineFixture()
		if _, err := fx.machine.Apply("/base", tidy.ApplyOptions{}); err == nil {
			t.Error("Apply() from idle did not error")
		}
	})

	t.Run("completed is a dead end until reset", func(t *testing.T) {
		fx := newMachineFixture()
		if err := fx.machine.Organize(context.Background(), "/base"); err != nil {
			t.Fatal(err)
		}
		if _, err := fx.machine.Apply("", tidy.ApplyOptions{}); err != nil {
			t.Fatal(err)
		}

		if _, err := fx.machine.Apply("", tidy.ApplyOptions{}); err == nil {
			t.Error("Apply() from completed did not error")
		}
		if err := fx.machine.Organize(context.Background(), "/base"); err == nil {
			t.Error("Organize() from completed did not error")
		}
	})
}

func TestStateMachine_Reset(t *testing.T) {
	t.Run("clears an error state", func(t *testing.T) {
		fx := newMachineFixture()
		fx.scanner.Err = errors.New("boom")
		_ = fx.machine.Organize(context.Background(), "/base")

		if err := fx.machine.Reset(); err != nil {
			t.Fatalf("Reset() error = %v", err)
		}
		if got := fx.machine.State(); got != tidy.StateIdle {
			t.Errorf("State() = %s, want %s", got, tidy.StateIdle)
		}
		if fx.machine.Cause() != nil {
			t.Errorf("Cause() = %v, want nil", fx.machine.Cause())
		}
		if fx.machine.Tree() != nil {
			t.Error("Tree() survived the reset")
		}
	})

	t.Run("cancels an in-flight generation", func(t *testing.T) {
		fx := newMachineFixture()
		fx.generator.Block = true
		fx.generator.Started = make(chan struct{})

		done := make(chan error, 1)
		go func() {
			done <- fx.machine.Organize(context.Background(), "/base")
		}()

		<-fx.generator.Started
		if err := fx.machine.Reset(); err != nil {
			t.Fatalf("Reset() error = %v", err)
		}

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Organize() error = %v, want context.Canceled", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Organize() did not return after Reset()")
		}

		if got := fx.machine.State(); got != tidy.StateIdle {
			t.Errorf("State() = %s, want %s", got, tidy.StateIdle)
		}
	})

	t.Run("allows organizing again after reset", func(t *testing.T) {
		fx := newMachineFixture()
		if err := fx.machine.Organize(context.Background(), "/base"); err != nil {
			t.Fatal(err)
		}
		if err := fx.machine.Reset(); err != nil {
			t.Fatal(err)
		}
		if err := fx.machine.Organize(context.Background(), "/base"); err != nil {
			t.Errorf("Organize() after Reset() error = %v", err)
		}
	})
}

func TestStateMachine_TakingLongerThanExpected(t *testing.T) {
	fx := newMachineFixture()
	fx.generator.Block = true
	fx.generator.Started = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		done <- fx.machine.Organize(context.Background(), "/base")
	}()
	<-fx.generator.Started

	if fx.machine.TakingLongerThanExpected() {
		t.Error("TakingLongerThanExpected() = true right after the phase started")
	}

	fx.clock.Advance(tidy.DefaultSlowThreshold + time.Second)
	if !fx.machine.TakingLongerThanExpected() {
		t.Error("TakingLongerThanExpected() = false past the threshold")
	}

	if err := fx.machine.Reset(); err != nil {
		t.Fatal(err)
	}
	<-done

	// Idle never reports slowness, regardless of the clock.
	if fx.machine.TakingLongerThanExpected() {
		t.Error("TakingLongerThanExpected() = true in idle")
	}
}
