// Package coordinator runs expensive computations in the background and
// answers requests cache-first. Per (kind, subject) the state moves from
// absent to in progress (a lock is held) to ready (a result is cached);
// an expired lock returns the key to absent.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/hubenschmidt/go-shelf/cache"
	"github.com/hubenschmidt/go-shelf/core"
	"github.com/hubenschmidt/go-shelf/monitor"
	"github.com/hubenschmidt/go-shelf/queue"
)

type Status string

const (
	StatusReady      Status = "ready"
	StatusInProgress Status = "in_progress"
)

// Metric labels for Request outcomes.
const (
	requestReady      = "ready"
	requestInProgress = "in_progress"
	requestStarted    = "started"
)

// Result is the answer to a Request. Value is set only when Status is
// ready; Started is true only for the caller that enqueued the work.
type Result struct {
	Status  Status          `json:"status"`
	Value   json.RawMessage `json:"value,omitempty"`
	Started bool            `json:"started,omitempty"`
}

func (r Result) Ready() bool {
	return r.Status == StatusReady
}

// Decode unmarshals a ready value into dest.
func (r Result) Decode(dest any) error {
	if !r.Ready() {
		return fmt.Errorf("result is %s", r.Status)
	}
	return json.Unmarshal(r.Value, dest)
}

// Computation produces the result for subject. The value is cached JSON
// encoded under the kind's result key.
type Computation func(ctx context.Context, subject string, args json.RawMessage) (any, error)

type Coordinator struct {
	cache   cache.Cache
	locks   cache.Locker
	queue   queue.Queue
	cfg     Config
	metrics monitor.Collector
	log     zerolog.Logger

	mu           sync.RWMutex
	computations map[Kind]Computation
}

//nolint:gocritic // Config and zerolog.Logger passed by value
func New(c cache.Cache, locks cache.Locker, q queue.Queue, cfg Config, metrics monitor.Collector, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		cache:        c,
		locks:        locks,
		queue:        q,
		cfg:          cfg,
		metrics:      monitor.OrNoOp(metrics),
		log:          log,
		computations: make(map[Kind]Computation),
	}
}

// Register sets the computation run for kind.
func (c *Coordinator) Register(kind Kind, fn Computation) error {
	if _, err := ResultKey(kind, ""); err != nil {
		return err
	}
	c.mu.Lock()
	c.computations[kind] = fn
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) computation(kind Kind) (Computation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.computations[kind]
	return fn, ok
}

// Request returns the cached result for (kind, subject) or makes sure a
// computation is in flight. It never waits for the computation itself.
func (c *Coordinator) Request(ctx context.Context, kind Kind, subject string, args any) (Result, error) {
	op := "request " + string(kind)
	key, err := ResultKey(kind, subject)
	if err != nil {
		return Result{}, core.NewOpError(op, subject, err)
	}
	kc, err := c.cfg.For(kind)
	if err != nil {
		return Result{}, core.NewOpError(op, subject, err)
	}

	if value, ok, err := c.cache.Get(ctx, key); err != nil {
		return Result{}, core.NewOpError(op, subject, fmt.Errorf("read result: %w", err))
	} else if ok {
		c.metrics.CoordinatorRequest(string(kind), requestReady)
		return Result{Status: StatusReady, Value: value}, nil
	}

	lockKey := cache.LockKey(string(kind), subject)
	held, err := c.locks.Held(ctx, lockKey)
	if err != nil {
		return Result{}, core.NewOpError(op, subject, fmt.Errorf("check lock: %w", err))
	}
	if held {
		c.metrics.CoordinatorRequest(string(kind), requestInProgress)
		return Result{Status: StatusInProgress}, nil
	}

	token, acquired, err := c.locks.Acquire(ctx, lockKey, kc.LockTTL)
	if err != nil {
		return Result{}, core.NewOpError(op, subject, fmt.Errorf("acquire lock: %w", err))
	}
	if !acquired {
		c.log.Debug().Str("kind", string(kind)).Str("subject", subject).Msg("computation already running")
		c.metrics.CoordinatorRequest(string(kind), requestInProgress)
		return Result{Status: StatusInProgress}, nil
	}

	// A worker may have finished between the cache read and the acquire.
	if value, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		c.release(ctx, lockKey, token)
		c.metrics.CoordinatorRequest(string(kind), requestReady)
		return Result{Status: StatusReady, Value: value}, nil
	}

	if err := c.enqueue(ctx, kind, subject, token, args); err != nil {
		c.release(ctx, lockKey, token)
		return Result{}, core.NewOpError(op, subject, err)
	}
	c.metrics.CoordinatorRequest(string(kind), requestStarted)
	return Result{Status: StatusInProgress, Started: true}, nil
}

func (c *Coordinator) enqueue(ctx context.Context, kind Kind, subject, token string, args any) error {
	var raw json.RawMessage
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("encode args: %w", err)
		}
		raw = data
	}
	h, err := c.queue.Enqueue(ctx, queue.Task{Kind: string(kind), Subject: subject, LockToken: token, Args: raw})
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	c.log.Debug().Str("kind", string(kind)).Str("subject", subject).Str("task_id", h.ID).Msg("computation enqueued")
	return nil
}

// Handle runs a queued computation. It is the queue's handler. Failures are
// retried up to the kind's limit and then dropped; the lock is left to
// expire so a later Request starts over. A missing subject is never retried.
func (c *Coordinator) Handle(ctx context.Context, task queue.Task) error {
	kind := Kind(task.Kind)
	fn, ok := c.computation(kind)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownKind, task.Kind)
	}
	kc, err := c.cfg.For(kind)
	if err != nil {
		return err
	}
	key, err := ResultKey(kind, task.Subject)
	if err != nil {
		return err
	}
	log := c.log.With().Str("kind", task.Kind).Str("subject", task.Subject).Int("attempt", task.Attempt).Logger()

	start := time.Now()
	value, err := fn(ctx, task.Subject, task.Args)
	if err == nil {
		err = cache.SetJSON(ctx, c.cache, key, value, kc.ResultTTL)
	}
	elapsed := time.Since(start)

	if err == nil {
		c.release(ctx, cache.LockKey(task.Kind, task.Subject), task.LockToken)
		c.metrics.TaskRun(task.Kind, monitor.OutcomeOK, elapsed)
		log.Debug().Dur("elapsed", elapsed).Msg("computation stored")
		return nil
	}

	if task.Attempt < kc.MaxRetries && !core.IsNotFound(err) {
		c.metrics.TaskRun(task.Kind, monitor.OutcomeRetry, elapsed)
		log.Warn().Err(err).Dur("retry_in", kc.RetryDelay).Msg("computation failed, retrying")
		if rerr := c.queue.Retry(ctx, task.Handle(), kc.RetryDelay); rerr != nil {
			return fmt.Errorf("retry %s: %w", task.Kind, rerr)
		}
		return nil
	}

	c.metrics.TaskRun(task.Kind, monitor.OutcomeDropped, elapsed)
	log.Warn().Err(err).Msg("computation failed, giving up")
	return nil
}

// Invalidate drops the cached result of (kind, subject).
func (c *Coordinator) Invalidate(ctx context.Context, kind Kind, subject string) error {
	key, err := ResultKey(kind, subject)
	if err != nil {
		return err
	}
	return c.cache.Delete(ctx, key)
}

func (c *Coordinator) release(ctx context.Context, lockKey, token string) {
	if err := c.locks.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
		c.log.Warn().Err(err).Str("lock", lockKey).Msg("release lock failed")
	}
}
