package aggregator

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"catalog-bff/internal/common/errors"
	"catalog-bff/internal/models"
	"catalog-bff/internal/session"
	"catalog-bff/internal/tier"
)

// State of a View's current cycle.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrLoadInProgress = stderrors.New("aggregator: load already in progress")
	ErrViewClosed     = stderrors.New("aggregator: view closed")
	ErrNoResult       = stderrors.New("aggregator: no finished cycle")
)

// View is the consumer side of aggregation for one session: it owns the
// Idle -> Loading -> Success|Failed lifecycle and answers visibility
// questions against the session's current tier.
type View struct {
	agg  *Aggregator
	sess *session.Context

	mu     sync.Mutex
	state  State
	result *models.AggregationResult
	err    error
	cancel context.CancelFunc
	closed bool
}

func NewView(agg *Aggregator, sess *session.Context) *View {
	return &View{agg: agg, sess: sess}
}

// Load runs one cycle. A cycle abandoned by ctx returns the view to Idle;
// a cycle that finishes after Close is discarded.
func (v *View) Load(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrViewClosed
	}
	if v.state == StateLoading {
		v.mu.Unlock()
		return ErrLoadInProgress
	}
	cctx, cancel := context.WithCancel(ctx)
	v.state = StateLoading
	v.result, v.err = nil, nil
	v.cancel = cancel
	v.mu.Unlock()

	res, err := v.agg.Run(cctx, v.sess)
	cancel()

	v.mu.Lock()
	defer v.mu.Unlock()
	v.cancel = nil

	if v.closed {
		v.state = StateIdle
		return fmt.Errorf("%w: view closed", errors.ErrCycleAbandoned)
	}
	switch {
	case stderrors.Is(err, errors.ErrCycleAbandoned):
		v.state = StateIdle
	case err != nil:
		v.state = StateFailed
		v.err = err
	default:
		v.state = StateSuccess
		v.result = res
	}
	return err
}

func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Result returns the finished cycle's result or its error, and ErrNoResult
// while idle or loading.
func (v *View) Result() (*models.AggregationResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch v.state {
	case StateSuccess:
		return v.result, nil
	case StateFailed:
		return nil, v.err
	default:
		return nil, ErrNoResult
	}
}

// VisibleCollections filters the last successful result with the session's
// tier as it is now. It never triggers a new cycle.
func (v *View) VisibleCollections() []models.Collection {
	v.mu.Lock()
	if v.state != StateSuccess || v.result == nil {
		v.mu.Unlock()
		return nil
	}
	collections := v.result.Collections
	v.mu.Unlock()

	viewer := tier.None
	if v.sess != nil {
		viewer = v.sess.Tier()
	}
	return tier.VisibleCollections(collections, viewer)
}

// Close abandons any in-flight cycle. Later Loads fail with ErrViewClosed.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	if v.cancel != nil {
		v.cancel()
	}
	v.result = nil
}
