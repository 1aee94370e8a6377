package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aretw0/traverse"
	"github.com/aretw0/traverse/internal/logging"
	"github.com/aretw0/traverse/pkg/adapters/memory"
	redisadapter "github.com/aretw0/traverse/pkg/adapters/redis"
	"github.com/aretw0/traverse/pkg/ports"
	"github.com/aretw0/traverse/pkg/session"
)

// RunOptions contains all the configuration for the run command.
type RunOptions struct {
	ScenarioPath string
	Plain        bool
	Debug        bool
	SnapshotID   string
	RedisURL     string
	Fresh        bool
	MaxEntries   int
}

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	sigCh  chan os.Signal
	mu     sync.Mutex
	sigVal os.Signal
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sc.sigCh:
			sc.mu.Lock()
			sc.sigVal = sig
			sc.mu.Unlock()
			sc.Cancel()
		case <-sc.Context.Done():
		}
		signal.Stop(sc.sigCh)
	}()

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// createLogger configures the application logger.
// In debug mode, it writes to stderr (to separate from stdout flow UI).
func createLogger(debug bool) *slog.Logger {
	if debug {
		return logging.New(slog.LevelDebug)
	}
	return logging.NewNop()
}

// newStore selects the snapshot store backend.
func newStore(redisURL string) ports.SnapshotStore {
	if redisURL != "" {
		return redisadapter.New(redisURL, "", 0)
	}
	return memory.NewStore()
}

// Execute handles the run command: plays the scenario's steps against a
// navigator, rendering pages as transitions land.
func Execute(opts RunOptions) error {
	sc, err := LoadScenario(opts.ScenarioPath)
	if err != nil {
		return err
	}
	steps, err := sc.DecodeSteps()
	if err != nil {
		return err
	}

	logger := createLogger(opts.Debug)
	r := NewRenderer(opts.Plain)
	r.PrintBanner(traverse.Version)
	if sc.Title != "" {
		r.Status("Scenario: %s", sc.Title)
	}

	ctx := NewSignalContext(context.Background())
	defer ctx.Cancel()

	nav := traverse.New(
		traverse.WithLogger(logger),
		traverse.WithMaxEntries(opts.MaxEntries),
	)

	nav.On(traverse.EventNavigateSuccess, func(ev *traverse.Event) error {
		if page, ok := sc.Page(ev.Entry.URL()); ok {
			fmt.Println(r.Page(page.URL, page.Content))
		}
		r.Status("At '%s' (%s)", ev.Entry.URL(), ev.NavigationType)
		return nil
	})
	nav.On(traverse.EventNavigateError, func(ev *traverse.Event) error {
		r.Error("Navigation failed: %v", ev.Err)
		return nil
	})
	nav.On(traverse.EventDispose, func(ev *traverse.Event) error {
		logger.Debug("Entry Disposed", "url", ev.Entry.URL())
		return nil
	})

	// Snapshot persistence is optional and keyed by --snapshot.
	var mgr *session.Manager
	if opts.SnapshotID != "" {
		mgr = session.NewManager(newStore(opts.RedisURL), session.WithLogger(logger))
		if opts.Fresh {
			if err := mgr.Delete(ctx, opts.SnapshotID); err != nil {
				return fmt.Errorf("failed to reset snapshot: %w", err)
			}
		}
		snap, err := mgr.LoadOrInit(ctx, opts.SnapshotID)
		if err != nil {
			return err
		}
		if len(snap.Entries) > 0 {
			if err := nav.Restore(snap); err != nil {
				return fmt.Errorf("failed to restore snapshot: %w", err)
			}
			r.Status("Resumed at '%s'", nav.CurrentEntry().URL())
		}
	}

	for i, step := range steps {
		if ctx.Err() != nil {
			r.Status("Interrupted")
			return nil
		}
		if err := runStep(ctx, nav, sc, step); err != nil {
			r.Error("Step %d (%s): %v", i, step.Op, err)
			return err
		}
	}

	if mgr != nil {
		if err := mgr.Save(context.Background(), opts.SnapshotID, nav.Snapshot()); err != nil {
			return fmt.Errorf("failed to save snapshot: %w", err)
		}
		r.Status("Snapshot '%s' saved.", opts.SnapshotID)
	}

	if cur := nav.CurrentEntry(); cur != nil {
		r.Status("Finished at '%s'.", cur.URL())
	}
	return nil
}

// runStep submits one scripted operation and waits for it to settle.
func runStep(ctx context.Context, nav *traverse.Navigator, sc *Scenario, step Step) error {
	var (
		res traverse.Result
		err error
	)

	switch step.Op {
	case "navigate":
		page, ok := sc.Page(step.URL)
		if !ok {
			return fmt.Errorf("unknown page %q", step.URL)
		}
		res, err = nav.Navigate(step.URL, traverse.NavigateOptions{
			Replace:      step.Replace,
			State:        mergeState(page.State, step.State),
			Info:         step.Info,
			SameDocument: page.SameDocument,
		})
	case "back":
		res, err = nav.Back(traverse.TraverseOptions{Info: step.Info})
	case "forward":
		res, err = nav.Forward(traverse.TraverseOptions{Info: step.Info})
	case "traverse":
		key := ""
		for _, e := range nav.Entries() {
			if e.URL() == step.URL {
				key = e.Key()
				break
			}
		}
		if key == "" {
			return fmt.Errorf("no history entry for %q", step.URL)
		}
		res, err = nav.TraverseTo(key, traverse.TraverseOptions{Info: step.Info})
	case "reload":
		res, err = nav.Reload(traverse.TraverseOptions{Info: step.Info})
	case "update":
		res, err = nav.UpdateCurrent(traverse.UpdateOptions{State: step.State})
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	if err != nil {
		return err
	}

	_, err = res.Finished.Wait(ctx)
	return err
}

func mergeState(base, override map[string]any) map[string]any {
	if len(override) == 0 {
		return base
	}
	merged := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}
