// Package tools installs, updates, classifies and removes toolshed
// repositories on a Galaxy server.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/loggo"

	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

var logger = loggo.GetLogger("galaxy-admin.tools")

// Defaults for polling an install.
const (
	DefaultPollInterval = 10 * time.Second
	DefaultTimeout      = 600 * time.Second
)

// Galaxy is the part of the Galaxy API the engine uses.
type Galaxy interface {
	ListRepositories(ctx context.Context) ([]galaxy.Repository, error)
	InstallRepository(ctx context.Context, req galaxy.InstallRequest) error
	UninstallRepository(ctx context.Context, req galaxy.UninstallRequest) error
	ListTools(ctx context.Context) ([]galaxy.Tool, error)
	ToolPanel(ctx context.Context) ([]galaxy.PanelElement, error)
}

// Result is the final state of one operation on one repository.
type Result int

const (
	ResultOK Result = iota
	ResultSkipped
	ResultPending
	ResultFailed
	ResultTimeout
	ResultInterrupted
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultSkipped:
		return "SKIPPED"
	case ResultPending:
		return "PENDING"
	case ResultFailed:
		return "FAIL"
	case ResultTimeout:
		return "TIMEOUT"
	case ResultInterrupted:
		return "INTERRUPTED"
	}
	return "UNKNOWN"
}

// Outcome reports what happened to one repository.
type Outcome struct {
	Ref     Reference
	Result  Result
	Message string
	Err     error
}

// Failed reports whether the outcome counts as a failure.
func (o Outcome) Failed() bool {
	return o.Result == ResultFailed || o.Result == ResultTimeout || o.Result == ResultInterrupted
}

// TimeoutError is returned when an install has not finished in time. The
// server may still complete it.
type TimeoutError struct {
	Ref        Reference
	Timeout    time.Duration
	LastStatus string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s to install (last status '%s')", e.Timeout, e.Ref, e.LastStatus)
}

// InstallError is a terminal failure reported by the server.
type InstallError struct {
	Ref     Reference
	Status  string
	Message string
}

func (e *InstallError) Error() string {
	msg := fmt.Sprintf("installing %s ended with status '%s'", e.Ref, e.Status)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// BatchFailure summarises failed outcomes of a fan-out operation.
type BatchFailure struct {
	Failed []Outcome
	Total  int
}

func (e *BatchFailure) Error() string {
	names := make([]string, 0, len(e.Failed))
	for _, o := range e.Failed {
		names = append(names, o.Ref.String())
	}
	return fmt.Sprintf("%d of %d repositories failed: %s", len(e.Failed), e.Total, strings.Join(names, ", "))
}

// Unwrap exposes the individual errors, so a timeout in the batch is still
// found by errors.As.
func (e *BatchFailure) Unwrap() []error {
	var errs []error
	for _, o := range e.Failed {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}

// Collect turns failed outcomes into a *BatchFailure, or nil.
func Collect(outcomes []Outcome) error {
	var failed []Outcome
	for _, o := range outcomes {
		if o.Failed() {
			failed = append(failed, o)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &BatchFailure{Failed: failed, Total: len(outcomes)}
}

// InstallOptions control how a repository is installed.
type InstallOptions struct {
	// Section is a tool panel section id or label; a label that matches
	// no section creates one. Empty installs at the top level.
	Section string

	ToolDependencies       bool
	RepositoryDependencies bool
	ResolverDependencies   bool
}

// Engine drives repository installs on one Galaxy server.
type Engine struct {
	Galaxy Galaxy
	Sheds  ShedFunc
	Clock  clock.Clock

	PollInterval time.Duration
	Timeout      time.Duration

	// NoWait returns after dispatching and a single status check.
	NoWait bool

	// Progress, when set, is told about every non-terminal poll.
	Progress func(ref Reference, status string)
}

// NewEngine creates an engine with the default timings and wall clock.
func NewEngine(g Galaxy, sheds ShedFunc) *Engine {
	return &Engine{
		Galaxy:       g,
		Sheds:        sheds,
		Clock:        clock.WallClock,
		PollInterval: DefaultPollInterval,
		Timeout:      DefaultTimeout,
	}
}

type phase int

const (
	phaseResolve phase = iota
	phaseDispatch
	phasePoll
	phaseDone
)

// attempt is one install moving through resolve, dispatch and poll.
type attempt struct {
	ref      Reference
	opts     InstallOptions
	phase    phase
	deadline time.Time
	status   string
	outcome  Outcome
}

func (a *attempt) finish(r Result, msg string, err error) {
	a.phase = phaseDone
	a.outcome = Outcome{Ref: a.ref, Result: r, Message: msg, Err: err}
}

// Install installs ref, waiting for the server to finish unless NoWait is
// set. The outcome's Err is nil for OK, SKIPPED and PENDING results.
func (e *Engine) Install(ctx context.Context, ref Reference, opts InstallOptions) Outcome {
	a := &attempt{ref: ref, opts: opts, phase: phaseResolve}
	for a.phase != phaseDone {
		switch a.phase {
		case phaseResolve:
			e.resolve(ctx, a)
		case phaseDispatch:
			e.dispatch(ctx, a)
		case phasePoll:
			e.poll(ctx, a)
		}
	}
	return a.outcome
}

func (e *Engine) fail(ctx context.Context, a *attempt, err error) {
	if ctx.Err() != nil {
		a.finish(ResultInterrupted, "interrupted", ctx.Err())
		return
	}
	a.finish(ResultFailed, err.Error(), err)
}

func (e *Engine) resolve(ctx context.Context, a *attempt) {
	revs, err := e.Sheds(a.ref.Toolshed).OrderedInstallableRevisions(ctx, a.ref.Owner, a.ref.Name)
	if err != nil {
		e.fail(ctx, a, fmt.Errorf("failed to get revisions of %s: %w", a.ref, err))
		return
	}
	if len(revs) == 0 {
		e.fail(ctx, a, &galaxy.NotFoundError{Kind: "installable revision", Name: a.ref.String()})
		return
	}

	if a.ref.Revision == "" {
		a.ref.Revision = revs[len(revs)-1]
		logger.Debugf("using latest revision %s of %s/%s", a.ref.Revision, a.ref.Owner, a.ref.Name)
	} else if !contains(revs, a.ref.Revision) {
		e.fail(ctx, a, &galaxy.NotFoundError{Kind: "installable revision", Name: a.ref.String()})
		return
	}

	repo, err := e.find(ctx, a.ref)
	if err != nil {
		e.fail(ctx, a, err)
		return
	}
	switch {
	case repo == nil || repo.Deleted:
		a.phase = phaseDispatch
	case repo.Status == "Installed":
		a.finish(ResultSkipped, "already installed", nil)
	case isFailed(repo.Status):
		a.phase = phaseDispatch
	default:
		logger.Infof("%s is already being installed (%s)", a.ref, repo.Status)
		a.deadline = e.Clock.Now().Add(e.Timeout)
		a.phase = phasePoll
	}
}

func (e *Engine) dispatch(ctx context.Context, a *attempt) {
	req := galaxy.InstallRequest{
		ToolShedURL:                   a.ref.ToolshedURL(),
		Name:                          a.ref.Name,
		Owner:                         a.ref.Owner,
		ChangesetRevision:             a.ref.Revision,
		InstallToolDependencies:       a.opts.ToolDependencies,
		InstallRepositoryDependencies: a.opts.RepositoryDependencies,
		InstallResolverDependencies:   a.opts.ResolverDependencies,
	}
	if a.opts.Section != "" {
		panel, err := e.Galaxy.ToolPanel(ctx)
		if err != nil {
			e.fail(ctx, a, fmt.Errorf("failed to get tool panel: %w", err))
			return
		}
		if s := FindSection(panel, a.opts.Section); s != nil {
			req.ToolPanelSectionID = s.ID
		} else {
			logger.Infof("creating tool panel section '%s'", a.opts.Section)
			req.NewToolPanelSectionLabel = a.opts.Section
		}
	}

	logger.Infof("installing %s", a.ref)
	a.deadline = e.Clock.Now().Add(e.Timeout)
	err := e.Galaxy.InstallRepository(ctx, req)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		e.fail(ctx, a, err)
		return
	case transient(err):
		logger.Warningf("install request for %s failed (%v), checking status anyway", a.ref, err)
	default:
		e.fail(ctx, a, fmt.Errorf("failed to install %s: %w", a.ref, err))
		return
	}

	if e.NoWait {
		repo, err := e.find(ctx, a.ref)
		switch {
		case err != nil:
			e.fail(ctx, a, err)
		case repo != nil && repo.Status == "Installed":
			a.finish(ResultOK, "installed", nil)
		default:
			a.finish(ResultPending, "install started", nil)
		}
		return
	}
	a.phase = phasePoll
}

func (e *Engine) poll(ctx context.Context, a *attempt) {
	repo, err := e.find(ctx, a.ref)
	switch {
	case ctx.Err() != nil:
		e.fail(ctx, a, ctx.Err())
		return
	case err != nil:
		logger.Warningf("failed to get status of %s: %v", a.ref, err)
	case repo == nil:
		a.status = "not yet listed"
	default:
		a.status = repo.Status
		if repo.Status == "Installed" {
			a.finish(ResultOK, "installed", nil)
			return
		}
		if isFailed(repo.Status) {
			err := &InstallError{Ref: a.ref, Status: repo.Status, Message: repo.ErrorMessage}
			a.finish(ResultFailed, err.Error(), err)
			return
		}
	}

	if e.Progress != nil {
		e.Progress(a.ref, a.status)
	}
	logger.Debugf("%s: %s", a.ref, a.status)

	remaining := a.deadline.Sub(e.Clock.Now())
	if remaining <= 0 {
		err := &TimeoutError{Ref: a.ref, Timeout: e.Timeout, LastStatus: a.status}
		a.finish(ResultTimeout, err.Error(), err)
		return
	}
	wait := e.PollInterval
	if remaining < wait {
		wait = remaining
	}
	select {
	case <-ctx.Done():
		e.fail(ctx, a, ctx.Err())
	case <-e.Clock.After(wait):
	}
}

// find returns the installed revision matching ref exactly, or nil.
func (e *Engine) find(ctx context.Context, ref Reference) (*galaxy.Repository, error) {
	repos, err := e.Galaxy.ListRepositories(ctx)
	if err != nil {
		return nil, err
	}
	var found *galaxy.Repository
	for i, r := range repos {
		if r.Owner != ref.Owner || r.Name != ref.Name || ToolshedHost(r.ToolShed) != ToolshedHost(ref.Toolshed) {
			continue
		}
		if r.Revision() != ref.Revision && r.InstalledChangesetRevision != ref.Revision {
			continue
		}
		// Prefer an active entry over a deactivated one.
		if found == nil || (found.Deleted && !r.Deleted) {
			found = &repos[i]
		}
	}
	return found, nil
}

func isFailed(status string) bool {
	switch status {
	case "Error", "Deactivated", "Uninstalled":
		return true
	}
	return false
}

// transient reports errors after which the install may still be running.
func transient(err error) bool {
	var connErr *galaxy.ConnectionError
	if errors.As(err, &connErr) {
		return true
	}
	var apiErr *galaxy.APIError
	return errors.As(err, &apiErr) && apiErr.Temporary()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
