package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/blocksync"
	"github.com/aretw0/blocksync/internal/dto"
	"github.com/aretw0/blocksync/internal/logging"
	"github.com/aretw0/blocksync/pkg/adapters/memory"
	"github.com/aretw0/blocksync/pkg/domain"
	"github.com/aretw0/blocksync/pkg/observability"
	"github.com/aretw0/blocksync/pkg/registry"
	"github.com/mitchellh/mapstructure"
)

// DefaultStore names the store used by steps that do not name one.
const DefaultStore = "default"

// ErrExpectation is returned when an expect step does not hold.
var ErrExpectation = errors.New("expectation failed")

// Runner replays scenarios. Stores are looked up in, or added to, its registry.
type Runner struct {
	registry *registry.Registry
	logger   *slog.Logger
	hooks    domain.SyncHooks
}

// Option configures the Runner.
type Option func(*Runner)

// WithRegistry shares a store registry, e.g. with an HTTP server.
func WithRegistry(reg *registry.Registry) Option {
	return func(r *Runner) {
		r.registry = reg
	}
}

// WithLogger sets the logger handed to stores and bindings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithHooks adds hooks that observe every binding the runner creates.
func WithHooks(hooks domain.SyncHooks) Option {
	return func(r *Runner) {
		r.hooks = hooks
	}
}

// NewRunner creates a runner with a private registry.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		registry: registry.NewRegistry(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the runner's store registry.
func (r *Runner) Registry() *registry.Registry {
	return r.registry
}

// session is the state of one scenario run.
type session struct {
	runner    *Runner
	trace     *Trace
	current   *Entry
	binding   *blocksync.Binding
	props     blocksync.Props
	storeName string
	reports   []*domain.Tree
	changes   int
	inputs    int
}

type action func(s *session, args map[string]any) (string, error)

var actions map[string]action

func init() {
	actions = map[string]action{
		"bind":            (*session).bind,
		"update":          (*session).update,
		"rebind":          (*session).rebind,
		"edit":            (*session).edit,
		"mark_persistent": (*session).markPersistent,
		"select":          (*session).selectRange,
		"expect":          (*session).expect,
		"close":           (*session).close,
	}
}

// Run replays every step in order and stops at the first failing one.
// The trace is returned even when a step fails.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Trace, error) {
	s := &session{
		runner: r,
		trace:  &Trace{Name: sc.Name},
	}
	defer func() {
		if s.binding != nil {
			_ = s.binding.Close()
		}
	}()

	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return s.trace, err
		}

		fn, ok := actions[step.Action]
		if !ok {
			return s.trace, fmt.Errorf("step %d: unknown action %q", i+1, step.Action)
		}

		s.current = &Entry{Index: i + 1, Action: step.Action}
		s.trace.Entries = append(s.trace.Entries, s.current)

		detail, err := fn(s, step.Args)
		if err != nil {
			s.current.Detail = "error: " + err.Error()
			r.logger.Debug("Scenario step failed", "step", i+1, "action", step.Action, "err", err)
			return s.trace, fmt.Errorf("step %d (%s): %w", i+1, step.Action, err)
		}
		s.current.Detail = detail
	}
	return s.trace, nil
}

func decode(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("invalid args: %w", err)
	}
	return nil
}

func (s *session) store(name string) (*memory.Store, string, error) {
	if name == "" {
		name = s.storeName
	}
	if name == "" {
		name = DefaultStore
	}

	reg := s.runner.registry
	found, err := reg.Get(name)
	if errors.Is(err, registry.ErrStoreNotFound) {
		st := memory.NewStore(memory.WithLogger(s.runner.logger))
		reg.Register(name, st)
		return st, name, nil
	}
	if err != nil {
		return nil, "", err
	}

	st, ok := found.(*memory.Store)
	if !ok {
		return nil, "", fmt.Errorf("store %q does not support scripted edits", name)
	}
	return st, name, nil
}

func (s *session) record(e *domain.SyncEvent) {
	parts := []string{".", string(e.Type)}
	if e.Direction != "" {
		parts = append(parts, string(e.Direction))
	}
	if e.Persistent {
		parts = append(parts, "persistent")
	}
	s.current.Events = append(s.current.Events, strings.Join(parts, " "))
}

func (s *session) report(name string) domain.ChangeFunc {
	return func(tree *domain.Tree, sel domain.Selection) {
		s.reports = append(s.reports, tree)
		if name == "on_change" {
			s.changes++
		} else {
			s.inputs++
		}
		s.current.Events = append(s.current.Events, fmt.Sprintf("> %s #%d size=%d selection=%s",
			name, len(s.reports), tree.Len(), formatSelection(sel)))
	}
}

func (s *session) bound() error {
	if s.binding == nil {
		return errors.New("no binding; add a bind step first")
	}
	return nil
}

func (s *session) bind(args map[string]any) (string, error) {
	if s.binding != nil {
		return "", errors.New("already bound; use rebind")
	}
	var a bindArgs
	if err := decode(args, &a); err != nil {
		return "", err
	}
	st, name, err := s.store(a.Store)
	if err != nil {
		return "", err
	}

	s.storeName = name
	s.props = blocksync.Props{
		Store:         st,
		ControllingID: a.ControllingID,
		Value:         valueOf(a.Value),
		OnChange:      s.report("on_change"),
		OnInput:       s.report("on_input"),
	}

	before := st.WriteCount()
	s.binding, err = blocksync.Bind(s.props,
		blocksync.WithLogger(s.runner.logger),
		blocksync.WithHooks(observability.Chain(domain.SyncHooks{
			OnBind: s.record, OnWrite: s.record, OnSkip: s.record,
			OnEcho: s.record, OnPropagate: s.record, OnUnbind: s.record,
		}, s.runner.hooks)),
	)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s target=%s size=%d writes=+%d", name, s.props.Target(), s.props.Value.Len(), st.WriteCount()-before), nil
}

func (s *session) update(args map[string]any) (string, error) {
	if err := s.bound(); err != nil {
		return "", err
	}
	var a updateArgs
	if err := decode(args, &a); err != nil {
		return "", err
	}

	label := ""
	switch {
	case a.Report > 0:
		if a.Report > len(s.reports) {
			return "", fmt.Errorf("report #%d does not exist (have %d)", a.Report, len(s.reports))
		}
		s.props.Value = s.reports[a.Report-1]
		label = fmt.Sprintf("report #%d", a.Report)
	default:
		s.props.Value = valueOf(a.Value)
		label = fmt.Sprintf("size=%d", s.props.Value.Len())
	}

	st := s.props.Store.(*memory.Store)
	before := st.WriteCount()
	if err := s.binding.Update(s.props); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s writes=+%d", label, st.WriteCount()-before), nil
}

func (s *session) rebind(args map[string]any) (string, error) {
	if err := s.bound(); err != nil {
		return "", err
	}
	var a bindArgs
	if err := decode(args, &a); err != nil {
		return "", err
	}
	st, name, err := s.store(a.Store)
	if err != nil {
		return "", err
	}

	s.storeName = name
	s.props.Store = st
	s.props.ControllingID = a.ControllingID
	s.props.Value = valueOf(a.Value)

	before := st.WriteCount()
	if err := s.binding.Update(s.props); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s target=%s size=%d writes=+%d", name, s.props.Target(), s.props.Value.Len(), st.WriteCount()-before), nil
}

func (s *session) edit(args map[string]any) (string, error) {
	var a editArgs
	if err := decode(args, &a); err != nil {
		return "", err
	}
	st, _, err := s.store(a.Store)
	if err != nil {
		return "", err
	}

	if a.Transient {
		st.MarkNextChangeAsNotPersistent()
	}
	if a.Ignored {
		st.MarkNextChangeAsIgnored()
	}

	var subject string
	switch a.Op {
	case "update":
		subject = a.ID
		err = st.UpdateAttributes(a.ID, a.Attributes)
	case "insert":
		subject = a.Node.ID
		err = st.InsertNode(a.Parent, a.Index, a.Node.ToNode())
	case "remove":
		subject = a.ID
		err = st.RemoveNode(a.ID)
	default:
		return "", fmt.Errorf("unknown edit op %q", a.Op)
	}
	if err != nil {
		return "", err
	}

	detail := a.Op + " " + subject
	if a.Transient {
		detail += " transient"
	}
	if a.Ignored {
		detail += " ignored"
	}
	return detail, nil
}

func (s *session) markPersistent(args map[string]any) (string, error) {
	var a storeArgs
	if err := decode(args, &a); err != nil {
		return "", err
	}
	st, _, err := s.store(a.Store)
	if err != nil {
		return "", err
	}
	return "", st.MarkLastChangeAsPersistent()
}

func (s *session) selectRange(args map[string]any) (string, error) {
	var a selectArgs
	if err := decode(args, &a); err != nil {
		return "", err
	}
	st, _, err := s.store(a.Store)
	if err != nil {
		return "", err
	}
	sel := domain.Selection{Start: a.Start, End: a.End}
	if err := st.SetSelection(sel); err != nil {
		return "", err
	}
	return formatSelection(sel), nil
}

func (s *session) close(args map[string]any) (string, error) {
	if err := s.bound(); err != nil {
		return "", err
	}
	err := s.binding.Close()
	s.binding = nil
	return "", err
}

func valueOf(specs []dto.NodeSpec) *domain.Tree {
	if specs == nil {
		return nil
	}
	return dto.ToTree(specs)
}
