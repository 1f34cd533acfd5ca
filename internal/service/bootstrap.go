package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/promptvault/internal/errs"
	"github.com/and161185/promptvault/internal/metrics"
	"github.com/and161185/promptvault/internal/model"
	"github.com/and161185/promptvault/internal/remote"
)

// Stage is a step of the onboarding state machine.
type Stage uint8

// Bootstrap stages. Done and BrowseOnly are terminal.
const (
	StageLookup Stage = iota
	StageNeedName
	StageNeedEmail
	StageNeedRename
	StageDone
	StageBrowseOnly
)

func (s Stage) String() string {
	switch s {
	case StageLookup:
		return "lookup"
	case StageNeedName:
		return "need_name"
	case StageNeedEmail:
		return "need_email"
	case StageNeedRename:
		return "need_rename"
	case StageDone:
		return "done"
	case StageBrowseOnly:
		return "browse_only"
	default:
		return "unknown"
	}
}

// Prompt is what the flow is waiting for.
type Prompt struct {
	Stage    Stage
	Label    string
	Optional bool
}

// Answer resumes a suspended flow.
type Answer struct {
	Value     string
	Cancelled bool
}

// Step is the result of advancing the flow. Prompt is nil once the flow has
// reached a terminal stage.
type Step struct {
	Stage   Stage
	Prompt  *Prompt
	Profile *model.Profile
}

// Done reports whether the flow needs no more input.
func (s Step) Done() bool { return s.Prompt == nil }

// Onboarding collects answers from the user.
// PromptNonEmpty returns errs.ErrCancelled when the user gives up.
// PromptOptional reports false when the user supplied nothing.
type Onboarding interface {
	PromptNonEmpty(ctx context.Context, label string) (string, error)
	PromptOptional(ctx context.Context, label string) (string, bool)
}

// Labels shown by the flow.
const (
	LabelDisplayName = "Display name"
	LabelEmail       = "Email (optional)"
)

// Flow makes sure an authenticated identity has a profile with a display name.
// It never blocks on input: every Step that carries a Prompt suspends the flow
// until Resume is called with the answer.
type Flow struct {
	client   remote.Client
	profiles *ProfileCache
	who      model.Identity
	log      *zap.Logger

	stage   Stage
	name    string
	profile *model.Profile
}

// NewFlow prepares a bootstrap for who.
func NewFlow(client remote.Client, profiles *ProfileCache, who model.Identity, log *zap.Logger) *Flow {
	if log == nil {
		log = zap.NewNop()
	}
	return &Flow{client: client, profiles: profiles, who: who, log: log, stage: StageLookup}
}

// Stage returns the current stage.
func (f *Flow) Stage() Stage { return f.stage }

// Start looks the identity's profile up.
func (f *Flow) Start(ctx context.Context) Step {
	if f.stage != StageLookup {
		return f.step()
	}
	p, err := f.profiles.Get(ctx, f.who)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		f.stage = StageNeedName
	case err != nil:
		f.degrade("profile lookup failed", err)
	case !p.HasDisplayName():
		f.profile = &p
		f.stage = StageNeedRename
	default:
		f.profile = &p
		f.stage = StageDone
	}
	return f.step()
}

// Resume feeds the answer to the pending prompt.
func (f *Flow) Resume(ctx context.Context, a Answer) Step {
	switch f.stage {
	case StageNeedName:
		if a.Cancelled {
			f.log.Warn("onboarding abandoned", zap.String("identity", f.who.String()))
			f.stage = StageBrowseOnly
			break
		}
		name := strings.TrimSpace(a.Value)
		if model.ValidateDisplayName(name) != nil {
			break
		}
		f.name = name
		f.stage = StageNeedEmail
	case StageNeedEmail:
		email := ""
		if !a.Cancelled {
			email = strings.TrimSpace(a.Value)
		}
		f.register(ctx, email)
	case StageNeedRename:
		if a.Cancelled {
			f.stage = StageDone
			break
		}
		name := strings.TrimSpace(a.Value)
		if model.ValidateDisplayName(name) != nil {
			break
		}
		f.rename(ctx, name)
	}
	return f.step()
}

func (f *Flow) register(ctx context.Context, email string) {
	p, err := value(f.client.RegisterIdentity(ctx, f.name, email))
	if errors.Is(err, errs.ErrAlreadyExists) {
		// registered elsewhere since the lookup
		f.profiles.Invalidate(f.who)
		p, err = f.profiles.Get(ctx, f.who)
	}
	if err != nil {
		f.degrade("profile creation failed", err)
		return
	}
	f.profiles.Put(p)
	f.profile = &p
	f.stage = StageDone
}

func (f *Flow) rename(ctx context.Context, name string) {
	p, err := value(f.client.UpdateDisplayName(ctx, name))
	if err != nil {
		f.log.Warn("display name backfill failed",
			zap.String("identity", f.who.String()),
			zap.Error(err),
		)
		f.stage = StageDone
		return
	}
	f.profiles.Put(p)
	f.profile = &p
	f.stage = StageDone
}

func (f *Flow) degrade(msg string, err error) {
	f.log.Warn(msg,
		zap.String("identity", f.who.String()),
		zap.Error(err),
	)
	f.profile = nil
	f.stage = StageBrowseOnly
}

func (f *Flow) step() Step {
	s := Step{Stage: f.stage, Profile: f.profile}
	switch f.stage {
	case StageNeedName, StageNeedRename:
		s.Prompt = &Prompt{Stage: f.stage, Label: LabelDisplayName}
	case StageNeedEmail:
		s.Prompt = &Prompt{Stage: f.stage, Label: LabelEmail, Optional: true}
	}
	return s
}

// RunFlow drives f to a terminal stage with answers from ob.
func RunFlow(ctx context.Context, f *Flow, ob Onboarding, m metrics.MetricsCollector) Step {
	if m == nil {
		m = metrics.Nop{}
	}
	s := f.Start(ctx)
	for !s.Done() {
		var a Answer
		if ob == nil || ctx.Err() != nil {
			a.Cancelled = true
		} else if s.Prompt.Optional {
			v, ok := ob.PromptOptional(ctx, s.Prompt.Label)
			a = Answer{Value: v, Cancelled: !ok}
		} else {
			v, err := ob.PromptNonEmpty(ctx, s.Prompt.Label)
			a = Answer{Value: v, Cancelled: err != nil}
		}
		s = f.Resume(ctx, a)
	}
	m.RecordBootstrap(s.Stage.String())
	return s
}
