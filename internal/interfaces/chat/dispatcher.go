// Package chat turns incoming chat messages into replies. Slash commands are
// routed to the application services; anything else feeds the user's
// registration session.
package chat

import (
	"context"
	"strings"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/application/enforcement"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/application/protection"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/application/session"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

// Commands understood by the dispatcher.
const (
	CmdStart   = "/start"
	CmdHelp    = "/help"
	CmdProtect = "/protect"
	CmdStatus  = "/status"
	CmdAlerts  = "/alerts"
	CmdEnforce = "/enforce"
	CmdCancel  = "/cancel"
)

// Message is one inbound chat message.
type Message struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// Dispatcher routes messages. It is safe for concurrent use; per-user
// ordering is provided by the session machine.
type Dispatcher struct {
	sessions    *session.Machine
	protection  protection.Service
	enforcement enforcement.Service
	logger      logging.Logger
}

// NewDispatcher wires the dispatcher. enforcement may be nil, in which case
// /enforce replies that enforcement is unavailable.
func NewDispatcher(sessions *session.Machine, protect protection.Service, enforce enforcement.Service, logger logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Dispatcher{
		sessions:    sessions,
		protection:  protect,
		enforcement: enforce,
		logger:      logger.Named("chat"),
	}
}

// Handle processes one message and returns the replies in the order they
// should be sent. It never returns an empty slice.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) []string {
	text := strings.TrimSpace(msg.Text)
	if msg.UserID == "" {
		return []string{replyMissingUser}
	}
	if text == "" {
		return []string{replyUnknownInput}
	}

	cmd, args, ok := parseCommand(text)
	if !ok {
		return d.handleText(ctx, msg.UserID, text)
	}

	log := d.logger.With(logging.String("user_id", msg.UserID), logging.String("command", cmd))
	log.Debug("command received")

	switch cmd {
	case CmdStart, CmdHelp:
		return []string{replyHelp}
	case CmdProtect:
		return d.handleProtect(msg.UserID)
	case CmdCancel:
		if d.sessions.Cancel(msg.UserID) {
			return []string{session.Prompt(session.StepCancelled)}
		}
		return []string{replyNothingToCancel}
	case CmdStatus:
		return d.handleStatus(ctx, msg.UserID)
	case CmdAlerts:
		return d.handleAlerts(ctx, msg.UserID)
	case CmdEnforce:
		return d.handleEnforce(ctx, msg.UserID, args)
	default:
		return []string{replyUnknownCommand}
	}
}

// parseCommand splits "/cmd@bot a b" into ("/cmd", [a b]).
func parseCommand(text string) (string, []string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text)
	cmd := strings.ToLower(fields[0])
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	return cmd, fields[1:], true
}

func (d *Dispatcher) handleProtect(userID string) []string {
	res := d.sessions.Start(userID)
	if res.Reset {
		return []string{replyDraftDiscarded, res.Prompt}
	}
	return []string{res.Prompt}
}

func (d *Dispatcher) handleText(ctx context.Context, userID, text string) []string {
	res, err := d.sessions.Handle(userID, text)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeNoActiveSession) {
			return []string{replyUnknownInput}
		}
		d.logger.Error("session transition failed", logging.String("user_id", userID), logging.Err(err))
		return []string{replyError}
	}
	if !res.Confirmed {
		return []string{res.Prompt}
	}

	replies := []string{replyRegistering}
	out, err := d.protection.Protect(ctx, userID, res.Draft)
	if err != nil {
		d.logger.Warn("registration failed", logging.String("user_id", userID), logging.Err(err))
		return append(replies, formatRegistrationFailed(err))
	}
	return append(replies, formatProtected(out))
}

func (d *Dispatcher) handleStatus(ctx context.Context, userID string) []string {
	report, err := d.protection.Status(ctx, userID)
	if err != nil {
		d.logger.Error("status lookup failed", logging.String("user_id", userID), logging.Err(err))
		return []string{replyError}
	}
	return []string{formatStatus(report)}
}

func (d *Dispatcher) handleAlerts(ctx context.Context, userID string) []string {
	groups, err := d.protection.Alerts(ctx, userID)
	if err != nil {
		d.logger.Error("alerts lookup failed", logging.String("user_id", userID), logging.Err(err))
		return []string{replyError}
	}
	if len(groups) == 0 {
		return []string{replyNoAlerts}
	}
	replies := make([]string, 0, len(groups))
	for _, g := range groups {
		replies = append(replies, formatAlertGroup(g))
	}
	return replies
}

// handleEnforce accepts the tone and the ip id in either order.
func (d *Dispatcher) handleEnforce(ctx context.Context, userID string, args []string) []string {
	if d.enforcement == nil {
		return []string{replyEnforcementUnavailable}
	}
	req := enforcement.Request{OwnerID: userID}
	for _, arg := range args {
		if tone, ok := enforcement.ParseTone(arg); ok && req.Tone == "" {
			req.Tone = tone
			continue
		}
		if req.IPID == "" {
			req.IPID = arg
			continue
		}
		return []string{replyEnforceUsage}
	}

	res, err := d.enforcement.Enforce(ctx, req)
	switch {
	case err == nil:
		return []string{replyProcessing, formatEnforced(res)}
	case errors.IsCode(err, errors.ErrCodeNoPendingViolations):
		return []string{replyNoViolations}
	case errors.IsNotFound(err):
		return []string{replyAssetNotFound}
	case errors.IsValidation(err):
		return []string{replyEnforceUsage}
	default:
		d.logger.Error("enforcement failed", logging.String("user_id", userID), logging.Err(err))
		return []string{replyProcessing, replyEnforceFailed}
	}
}
