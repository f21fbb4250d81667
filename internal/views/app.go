// Package views holds the portal's page controllers. Each controller
// composes backend reads, the medicine filter and the form dirty-checker
// into the state one page renders.
package views

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/medihope/portal/internal/backend"
	"github.com/medihope/portal/internal/events"
	"github.com/medihope/portal/internal/forms"
	"github.com/medihope/portal/internal/observability/metrics"
	"github.com/medihope/portal/internal/preferences"
	"github.com/medihope/portal/pkg/workerpool"
)

// Destinations returned after a successful action.
const (
	RedirectHome           = "/"
	RedirectDonorDashboard = "/donor/dashboard"
	RedirectNeedyDashboard = "/needy/dashboard"
)

// AppContext is passed to every view. Nothing in this package reads
// process-wide state.
type AppContext struct {
	Prefs   *preferences.Settings
	Backend *backend.Client
	// Pool runs a page's reads in parallel; nil runs them in turn
	Pool    *workerpool.Pool
	Events  events.Publisher
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	// Clock defaults to time.Now
	Clock func() time.Time
	// PublishTimeout bounds a submission event publish; zero means
	// DefaultPublishTimeout
	PublishTimeout time.Duration
}

// DefaultPublishTimeout caps how long a committed write waits on the
// event broker.
const DefaultPublishTimeout = 3 * time.Second

func (a *AppContext) now() time.Time {
	if a.Clock != nil {
		return a.Clock()
	}
	return time.Now()
}

func (a *AppContext) logger() *zap.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return zap.NewNop()
}

// DarkMode reports the stored theme preference
func (a *AppContext) DarkMode() bool {
	return a.Prefs != nil && a.Prefs.DarkMode()
}

// Outcome is what an action tells the user: an advisory message and,
// on success, where to go next.
type Outcome struct {
	OK       bool   `json:"ok"`
	Message  string `json:"message,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

func advise(msg string) Outcome { return Outcome{Message: msg} }

// parallel runs reads on the pool and returns their data in order. A read
// the pool refused yields nil data.
func (a *AppContext) parallel(ctx context.Context, jobs ...workerpool.Job) []interface{} {
	out := make([]interface{}, len(jobs))
	if a.Pool == nil {
		for i, job := range jobs {
			out[i], _ = job(ctx)
		}
		return out
	}

	tasks := make([]*workerpool.Task, len(jobs))
	for i, job := range jobs {
		tasks[i] = &workerpool.Task{ID: fmt.Sprintf("read-%d", i), Job: job}
	}
	for i, r := range a.Pool.Do(ctx, tasks...) {
		if r.Error != nil {
			a.logger().Warn("page read not run", zap.String("task", r.TaskID), zap.Error(r.Error))
			continue
		}
		out[i] = r.Data
	}
	return out
}

// writeFunc is one of the backend's save or update calls.
type writeFunc func(context.Context, *forms.Form) (backend.WriteResult, error)

// submit sends form through write and turns the answer into an outcome.
// Form state is left as is so a failed write can be retried.
func (a *AppContext) submit(ctx context.Context, form *forms.Form, write writeFunc, kind events.Kind, key, redirect, errPrefix string) Outcome {
	schema := form.Schema().Name

	res, err := write(ctx, form)
	if err != nil {
		a.Metrics.ObserveSubmission(schema, "error")
		a.logger().Error("submission failed",
			zap.String("form", schema),
			zap.Error(err))
		return advise(errPrefix + err.Error())
	}
	if !res.OK {
		a.Metrics.ObserveSubmission(schema, "rejected")
		return advise(res.Msg)
	}

	a.Metrics.ObserveSubmission(schema, "ok")
	a.publish(ctx, events.NewSubmissionEvent(kind, key, a.now()))
	return Outcome{OK: true, Message: res.Msg, Redirect: redirect}
}

func (a *AppContext) publish(ctx context.Context, ev events.SubmissionEvent) {
	if a.Events == nil {
		return
	}
	timeout := a.PublishTimeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	// the write has already been committed; a slow broker must not hold it
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := a.Events.Publish(ctx, ev); err != nil {
		a.logger().Warn("submission event dropped",
			zap.String("kind", string(ev.Kind)),
			zap.Error(err))
	}
}
