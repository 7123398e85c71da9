package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/joshuadavidthomas/meteofetch/internal/aggregate"
	"github.com/joshuadavidthomas/meteofetch/internal/httpclient"
	"github.com/joshuadavidthomas/meteofetch/internal/logging"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
	"github.com/joshuadavidthomas/meteofetch/internal/provider"
	"github.com/joshuadavidthomas/meteofetch/internal/routing"
)

// errCancelled marks an attempt abandoned because the task was cancelled.
var errCancelled = errors.New("task cancelled")

// task is the per-request state owned by one goroutine.
type task struct {
	c       *Coordinator
	h       *Handle
	log     *log.Logger
	percent int
	// recorded is set once the task has counted usage against any provider.
	recorded bool
}

func (c *Coordinator) run(h *Handle) {
	defer c.wg.Done()
	t := &task{c: c, h: h, log: logging.Task(c.log, shortID(h.id), "")}

	var out Outcome
	var final State
	if err := c.sem.Acquire(h.ctx, 1); err != nil {
		out, final = t.cancelled(nil, nil), StateCancelled
	} else {
		c.metrics.TaskStarted()
		out, final = t.execute()
		c.metrics.TaskFinished()
		c.sem.Release(1)
	}

	// Usage is persisted before waiters see the outcome.
	if t.recorded {
		if err := c.ledger.Save(); err != nil {
			t.log.Warn("failed to persist usage", "err", err)
		}
	}

	c.retire(h)
	h.finish(out, final)
	c.metrics.RecordOutcome(string(out.Status))

	if out.Status == StatusSucceeded {
		t.progress(ProgressDone, "done")
	}
	c.publish(Event{TaskID: h.id, Kind: EventResult, Outcome: &out})
	t.log.Debug("task finished", "status", out.Status, "provider", out.Provider, "attempts", len(out.Attempts))
}

// execute routes the request and walks the chain in order, one attempt per
// provider.
func (t *task) execute() (Outcome, State) {
	req := t.h.req
	sel := t.c.router.Select(req.UseCase, req.Provider)

	if sel.Rejected != nil {
		t.log.Info("explicit provider rejected", "provider", sel.Rejected.Provider, "reason", sel.Rejected.Reason)
		t.c.publish(Event{
			TaskID:   t.h.id,
			Kind:     EventProviderValidationFailed,
			Provider: sel.Rejected.Provider,
			Reason:   sel.Rejected.Reason,
		})
	}

	if sel.Empty() {
		err := fmt.Errorf("%w for use case %s%s", routing.ErrNoProviderAvailable, req.UseCase, skippedSuffix(sel.Skipped))
		out := t.base(sel)
		out.Status = StatusFailed
		out.setErr(err)
		t.log.Warn("no provider available", "use_case", req.UseCase)
		return out, StateFailed
	}

	t.c.publish(Event{TaskID: t.h.id, Kind: EventProviderSelected, Provider: sel.Chain[0], Chain: sel.Chain})

	var attempts []Attempt
	for i, id := range sel.Chain {
		if t.h.ctx.Err() != nil {
			return t.cancelled(&sel, attempts), StateCancelled
		}
		if i > 0 {
			t.h.setState(StateRetrying, id)
		}

		recs, err := t.attempt(id)
		if err == nil {
			return t.succeeded(sel, id, recs, attempts), StateSucceeded
		}
		if errors.Is(err, errCancelled) || t.h.ctx.Err() != nil {
			return t.cancelled(&sel, attempts), StateCancelled
		}

		attempts = append(attempts, Attempt{Provider: id, Reason: reasonFor(err), Err: err})

		var ne *aggregate.NormalizationError
		if errors.As(err, &ne) {
			t.log.Error("normalization failed", "provider", id, "err", err)
			out := t.base(sel)
			out.Status = StatusFailed
			out.Attempts = attempts
			out.setErr(err)
			return out, StateFailed
		}
		t.log.Info("provider attempt failed", "provider", id, "attempt", i+1, "err", err)
	}

	out := t.base(sel)
	out.Status = StatusFailed
	out.Attempts = attempts
	out.setErr(&ExhaustedError{Attempts: attempts})
	return out, StateExhausted
}

// attempt fetches the whole window from one provider, splitting it into
// batches the provider accepts. Every batch must succeed.
func (t *task) attempt(id models.ProviderID) ([]models.DailyRecord, error) {
	p, err := t.c.providers.Lookup(id)
	if err != nil {
		return nil, err
	}
	desc, _ := t.c.catalog.Get(id)

	var key string
	if t.c.keys != nil {
		key = t.c.keys.APIKey(id)
	}

	window := t.h.req.Window()
	batches := window.Split(desc.MaxDaysPerRequest)
	tables := make([]*aggregate.Table, 0, len(batches))
	for _, w := range batches {
		t.h.setState(StateDispatching, id)
		if err := t.c.limiter.Await(t.h.ctx, id); err != nil {
			return nil, errCancelled
		}
		if t.h.ctx.Err() != nil {
			return nil, errCancelled
		}

		preq, err := p.BuildRequest(t.h.req, w, key)
		if err != nil {
			return nil, err
		}
		t.progress(ProgressDispatched, "dispatch")
		t.h.setState(StateAwaitingResponse, id)

		body, err := t.call(id, preq)
		if err != nil {
			return nil, err
		}
		if t.h.ctx.Err() != nil {
			return nil, errCancelled
		}
		t.progress(ProgressResponded, "response")

		tbl, err := t.c.agg.Decode(id, body)
		if err != nil && errors.Is(err, aggregate.ErrMalformedBody) {
			return nil, err
		}
		// The provider served a readable response, so it counts against
		// the quota even if its content is rejected below.
		if !t.recordUsage(id) {
			return nil, errCancelled
		}
		if err != nil {
			return nil, err
		}
		tables = append(tables, tbl)
	}

	recs, err := t.c.agg.Assemble(id, window, tables...)
	if err != nil {
		return nil, err
	}
	t.progress(ProgressNormalized, "normalized")
	return recs, nil
}

// call issues one HTTP request through the provider's circuit breaker with
// its own timeout.
func (t *task) call(id models.ProviderID, preq provider.Request) ([]byte, error) {
	ctx, cancel := context.WithTimeout(t.h.ctx, t.c.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	res, err := t.c.breakers[id].Execute(func() (interface{}, error) {
		resp, err := t.c.client.GetCtx(ctx, preq.URL, preq.Options...)
		if err != nil {
			if t.h.ctx.Err() != nil {
				// Cancellation is not the provider's fault.
				return nil, nil
			}
			return nil, err
		}
		if err := provider.CheckResponse(resp, id); err != nil {
			return nil, err
		}
		return resp, nil
	})
	if t.h.ctx.Err() != nil {
		return nil, errCancelled
	}
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	t.c.metrics.RecordProviderRequest(id, requestStatus(err), time.Since(start))
	if err != nil {
		return nil, err
	}
	return res.(*httpclient.Response).Body, nil
}

// recordUsage counts one served request unless the task was cancelled,
// and warns when the provider crosses a quota threshold.
func (t *task) recordUsage(id models.ProviderID) bool {
	return t.h.whileActive(func() {
		rec, err := t.c.ledger.RecordUsage(id)
		if err != nil {
			t.log.Warn("failed to record usage", "provider", id, "err", err)
			return
		}
		t.recorded = true
		t.c.metrics.SetMonthlyRequests(id, rec.RequestsThisMonth)
		if level := t.c.ledger.WarningLevel(id); level > models.LevelNormal {
			t.log.Info("provider quota threshold reached", "provider", id, "level", level.String(), "requests", rec.RequestsThisMonth)
			t.c.publish(Event{TaskID: t.h.id, Kind: EventUsageWarning, Provider: id, Level: level})
		}
	})
}

// progress publishes a milestone once; milestones never go backwards.
func (t *task) progress(percent int, stage string) {
	if percent <= t.percent {
		return
	}
	t.percent = percent
	t.c.publish(Event{TaskID: t.h.id, Kind: EventProgress, Percent: percent, Stage: stage, Provider: t.h.Provider()})
}

func (t *task) base(sel routing.Selection) Outcome {
	return Outcome{
		TaskID:    t.h.id,
		Request:   t.h.req,
		Requested: requested(sel),
		Rejected:  sel.Rejected,
		Attempts:  []Attempt{},
	}
}

// requested is the provider the caller effectively asked for: a rejected
// explicit choice still counts as the request.
func requested(sel routing.Selection) models.ProviderID {
	if sel.Rejected != nil {
		return sel.Rejected.Provider
	}
	return sel.Preferred
}

func (t *task) succeeded(sel routing.Selection, id models.ProviderID, recs []models.DailyRecord, attempts []Attempt) Outcome {
	out := t.base(sel)
	out.Status = StatusSucceeded
	out.Provider = id
	out.Records = recs
	if attempts != nil {
		out.Attempts = attempts
	}
	window := t.h.req.Window()
	out.Coverage = &Coverage{
		Start:    window.Start,
		End:      window.End,
		Days:     len(recs),
		WithData: aggregate.Coverage(recs),
	}

	if out.Requested != "" && id != out.Requested {
		out.Fallback = true
		t.log.Info("served by fallback provider", "from", out.Requested, "to", id)
		t.c.metrics.RecordFallback(out.Requested, id)
		t.c.publish(Event{TaskID: t.h.id, Kind: EventProviderFallback, From: out.Requested, Provider: id})
	}
	return out
}

// cancelled builds the outcome for a task stopped by its caller. sel is
// nil when the task never got a concurrency slot.
func (t *task) cancelled(sel *routing.Selection, attempts []Attempt) Outcome {
	var out Outcome
	if sel != nil {
		out = t.base(*sel)
	} else {
		out = t.base(routing.Selection{})
	}
	out.Status = StatusCancelled
	if attempts != nil {
		out.Attempts = attempts
	}
	out.setErr(context.Canceled)
	return out
}

func skippedSuffix(skipped []routing.Skipped) string {
	if len(skipped) == 0 {
		return ""
	}
	parts := make([]string, len(skipped))
	for i, s := range skipped {
		parts[i] = fmt.Sprintf("%s: %s", s.Provider, s.Reason)
	}
	return " (" + strings.Join(parts, "; ") + ")"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
