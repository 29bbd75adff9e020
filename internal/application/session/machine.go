// Package session implements the per-user intake that collects a work's
// details before registration.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

// Result describes a transition. Step is the step the user is now at, or a
// terminal step when the session ended.
type Result struct {
	Step   Step
	Prompt string
	// Draft is a snapshot of the collected fields after the transition.
	Draft asset.Draft
	// Confirmed is set when the user confirmed; the caller registers Draft.
	Confirmed bool
	// Reset is set when Start discarded an in-flight draft.
	Reset bool
}

// Machine drives sessions through the intake steps. Transitions are
// serialised so concurrent messages from one user cannot interleave.
type Machine struct {
	mu     sync.Mutex
	store  Store
	now    func() time.Time
	logger logging.Logger
}

// NewMachine builds a Machine over store.
func NewMachine(store Store, logger logging.Logger) *Machine {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Machine{store: store, now: time.Now, logger: logger}
}

// Start opens a fresh session at the name step. An in-flight session is
// overwritten and Result.Reset is set.
func (m *Machine) Start(userID string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, existed := m.store.Get(userID)
	now := m.now().UTC()
	m.store.Put(&Session{
		UserID:    userID,
		Step:      StepAwaitingName,
		StartedAt: now,
		UpdatedAt: now,
	})
	if existed {
		m.logger.Info("session restarted, previous draft discarded", logging.String("user_id", userID))
	}
	return Result{Step: StepAwaitingName, Prompt: Prompt(StepAwaitingName), Reset: existed}
}

// Cancel drops the user's session and reports whether one existed.
func (m *Machine) Cancel(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Delete(userID)
}

// Current returns a copy of the user's session.
func (m *Machine) Current(userID string) (*Session, bool) {
	return m.store.Get(userID)
}

// Handle feeds one free-text message into the user's session. Without a
// session it returns an ErrCodeNoActiveSession error.
func (m *Machine) Handle(userID, input string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.store.Get(userID)
	if !ok {
		return Result{}, errors.New(errors.ErrCodeNoActiveSession, "no active session")
	}

	switch s.Step {
	case StepAwaitingName:
		s.Draft.Name = input
	case StepAwaitingDescription:
		s.Draft.Description = input
	case StepAwaitingCategory:
		s.Draft.Category = input
	case StepAwaitingCreator:
		s.Draft.Creator = input
	case StepAwaitingMedia:
		s.Draft.MediaURL = asset.ParseMedia(input)
	case StepAwaitingTags:
		s.Draft.Tags = asset.ParseTags(input)
	case StepAwaitingLicense:
		s.Draft.License = asset.LicenseFromChoice(input)
		s.Step = StepAwaitingConfirmation
		s.UpdatedAt = m.now().UTC()
		m.store.Put(s)
		return Result{Step: s.Step, Prompt: ConfirmationSummary(s.Draft), Draft: s.Draft}, nil
	case StepAwaitingConfirmation:
		return m.confirm(s, input), nil
	default:
		m.store.Delete(userID)
		return Result{}, errors.Newf(errors.ErrCodeInternal, "session in unknown step %q", s.Step)
	}

	s.Step = s.Step.Next()
	s.UpdatedAt = m.now().UTC()
	m.store.Put(s)
	return Result{Step: s.Step, Prompt: Prompt(s.Step), Draft: s.Draft}, nil
}

func (m *Machine) confirm(s *Session, input string) Result {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "confirm":
		// Cleared before registration runs, whatever its outcome.
		m.store.Delete(s.UserID)
		m.logger.Info("registration confirmed", logging.String("user_id", s.UserID), logging.String("name", s.Draft.Name))
		return Result{Step: StepRegistered, Draft: s.Draft, Confirmed: true}
	case "cancel":
		m.store.Delete(s.UserID)
		return Result{Step: StepCancelled, Prompt: Prompt(StepCancelled), Draft: s.Draft}
	default:
		return Result{Step: s.Step, Prompt: Prompt(StepAwaitingConfirmation), Draft: s.Draft}
	}
}

// ConfirmationSummary renders the draft for the user to confirm.
func ConfirmationSummary(d asset.Draft) string {
	media := d.MediaURL
	if media == "" {
		media = "Not provided"
	}
	keywords := "None"
	if len(d.Tags) > 0 {
		keywords = strings.Join(d.Tags, ", ")
	}
	var sb strings.Builder
	sb.WriteString("Please confirm your IP registration\n\n")
	fmt.Fprintf(&sb, "Name: %s\n", d.Name)
	fmt.Fprintf(&sb, "Description: %s\n", d.Description)
	fmt.Fprintf(&sb, "Category: %s\n", d.Category)
	fmt.Fprintf(&sb, "Creator: %s\n", d.Creator)
	fmt.Fprintf(&sb, "Media URL: %s\n", media)
	fmt.Fprintf(&sb, "Keywords: %s\n", keywords)
	fmt.Fprintf(&sb, "License: %s\n\n", d.License)
	sb.WriteString(`Type "confirm" to register or "cancel" to start over.`)
	return sb.String()
}
