package chat

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/application/enforcement"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/application/monitoring"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/application/protection"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/application/session"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/database/memory"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/testutil"
)

type stubScanner struct {
	records []asset.ViolationRecord
}

func (s *stubScanner) ScanAll(context.Context, *asset.IPAsset) []asset.ViolationRecord {
	return s.records
}

type fixture struct {
	ledger     *testutil.MockLedger
	registry   *monitoring.Registry
	dispatcher *Dispatcher
}

func newFixture(t *testing.T, found ...asset.ViolationRecord) *fixture {
	t.Helper()
	ledger := &testutil.MockLedger{}
	reg := monitoring.NewRegistry(memory.NewAssetRepository(), nil, logging.NewNopLogger())
	machine := session.NewMachine(session.NewMemoryStore(time.Hour, nil), nil)
	protect := protection.NewService(ledger, nil, reg, &stubScanner{records: found}, nil)
	enforce := enforcement.NewService(reg, ledger, nil, nil, enforcement.Options{DefaultTone: enforcement.ToneFriendly}, nil, nil)
	return &fixture{ledger: ledger, registry: reg, dispatcher: NewDispatcher(machine, protect, enforce, nil)}
}

func (f *fixture) say(user, text string) []string {
	return f.dispatcher.Handle(context.Background(), Message{UserID: user, Text: text})
}

func (f *fixture) intake(t *testing.T, user string) []string {
	t.Helper()
	f.say(user, "/protect")
	for _, answer := range []string{"Sigma Music Remix", "Epic electronic music remix with heavy bass", "Music", "DJ Sigma", "skip", "electronic, remix", "1"} {
		replies := f.say(user, answer)
		require.Len(t, replies, 1)
	}
	return f.say(user, "confirm")
}

var repost = asset.ViolationRecord{
	Source:     asset.SourceSocial,
	URL:        "https://twitter.com/x/status/1",
	Content:    "Epic electronic music remix",
	Similarity: 0.914,
}

func TestHandle_HelpAndStart(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []string{replyHelp}, f.say("u1", "/start"))
	assert.Equal(t, []string{replyHelp}, f.say("u1", "/HELP@whisperer_bot"))
}

func TestHandle_UnknownInputs(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []string{replyUnknownInput}, f.say("u1", "hello there"))
	assert.Equal(t, []string{replyUnknownInput}, f.say("u1", "   "))
	assert.Equal(t, []string{replyUnknownCommand}, f.say("u1", "/dance"))
	assert.Equal(t, []string{replyMissingUser}, f.say("", "/help"))
}

func TestHandle_ProtectFlowRegistersAndReportsMatches(t *testing.T) {
	f := newFixture(t, repost, repost)
	f.ledger.On("Register", mock.Anything, mock.MatchedBy(func(r asset.RegistrationRequest) bool {
		return r.Name == "Sigma Music Remix"
	})).Return(&asset.Registration{IPID: "0xIP1", TxRef: "0xTX1"}, nil).Once()

	replies := f.intake(t, "u1")
	require.Len(t, replies, 2)
	assert.Equal(t, replyRegistering, replies[0])
	assert.Contains(t, replies[1], "IP ID: 0xIP1")
	assert.Contains(t, replies[1], "2 potential infringements")
	assert.Contains(t, replies[1], "Twitter (91% match)")
	assert.Contains(t, replies[1], "/enforce")

	status := f.say("u1", "/status")
	require.Len(t, status, 1)
	assert.Contains(t, status[0], "Protected Assets (1)")
	assert.Contains(t, status[0], "Alerts: 2")

	alerts := f.say("u1", "/alerts")
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "Sigma Music Remix")
	assert.Contains(t, alerts[0], "91.4%")

	// the session is gone after confirmation
	assert.Equal(t, []string{replyUnknownInput}, f.say("u1", "confirm"))
	f.ledger.AssertExpectations(t)
}

func TestHandle_RegistrationFailureClearsSession(t *testing.T) {
	f := newFixture(t)
	f.ledger.On("Register", mock.Anything, mock.Anything).Return(nil, stderrors.New("gateway down")).Once()

	replies := f.intake(t, "u1")
	require.Len(t, replies, 2)
	assert.True(t, strings.HasPrefix(replies[1], "Registration failed:"), replies[1])
	assert.Contains(t, replies[1], "/protect")
	assert.Equal(t, []string{replyUnknownInput}, f.say("u1", "confirm"))
	assert.Equal(t, []string{replyNoAssets}, f.say("u1", "/status"))
}

func TestHandle_ProtectTwiceDiscardsDraft(t *testing.T) {
	f := newFixture(t)
	first := f.say("u1", "/protect")
	require.Len(t, first, 1)
	f.say("u1", "Working title")

	second := f.say("u1", "/protect")
	require.Len(t, second, 2)
	assert.Equal(t, replyDraftDiscarded, second[0])
	assert.Equal(t, session.Prompt(session.StepAwaitingName), second[1])
}

func TestHandle_Cancel(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []string{replyNothingToCancel}, f.say("u1", "/cancel"))

	f.say("u1", "/protect")
	assert.Equal(t, []string{session.Prompt(session.StepCancelled)}, f.say("u1", "/cancel"))
	assert.Equal(t, []string{replyUnknownInput}, f.say("u1", "Song"))
}

func TestHandle_NoAlerts(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []string{replyNoAlerts}, f.say("u1", "/alerts"))
	assert.Equal(t, []string{replyNoViolations}, f.say("u1", "/enforce"))
}

func TestHandle_EnforceArgumentsInAnyOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.registry.Register(ctx, &asset.IPAsset{ID: "0xIP9", OwnerID: "u1", Name: "Song", RegisteredAt: time.Now()}))
	require.NoError(t, f.registry.AppendViolations(ctx, "0xIP9", []asset.ViolationRecord{repost}))
	f.ledger.On("CreateDispute", mock.Anything, mock.MatchedBy(func(r asset.DisputeRequest) bool {
		return r.IPID == "0xIP9"
	})).Return(&asset.Dispute{DisputeID: "0xD1"}, nil).Once()

	replies := f.say("u1", "/enforce 0xIP9 formal")
	require.Len(t, replies, 2)
	assert.Equal(t, replyProcessing, replies[0])
	assert.Contains(t, replies[1], "Dispute: 0xD1")

	a, err := f.registry.Get(ctx, "0xIP9")
	require.NoError(t, err)
	assert.Empty(t, a.PendingViolations)
	f.ledger.AssertExpectations(t)
}

func TestHandle_EnforceUnknownAssetAndBadArgs(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []string{replyAssetNotFound}, f.say("u1", "/enforce friendly 0xNOPE"))
	assert.Equal(t, []string{replyEnforceUsage}, f.say("u1", "/enforce a b c"))
}

func TestHandle_EnforceDisputeFailureKeepsViolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.registry.Register(ctx, &asset.IPAsset{ID: "0xIP9", OwnerID: "u1", Name: "Song", RegisteredAt: time.Now()}))
	require.NoError(t, f.registry.AppendViolations(ctx, "0xIP9", []asset.ViolationRecord{repost}))
	f.ledger.On("CreateDispute", mock.Anything, mock.Anything).Return(nil, stderrors.New("rpc down")).Once()

	replies := f.say("u1", "/enforce")
	assert.Equal(t, []string{replyProcessing, replyEnforceFailed}, replies)

	a, err := f.registry.Get(ctx, "0xIP9")
	require.NoError(t, err)
	assert.Len(t, a.PendingViolations, 1)
}

func TestHandle_EnforcementUnavailable(t *testing.T) {
	machine := session.NewMachine(session.NewMemoryStore(time.Hour, nil), nil)
	d := NewDispatcher(machine, nil, nil, nil)
	assert.Equal(t, []string{replyEnforcementUnavailable}, d.Handle(context.Background(), Message{UserID: "u1", Text: "/enforce"}))
}

func TestParseCommand(t *testing.T) {
	cmd, args, ok := parseCommand("/Enforce@bot vibe 0x1")
	require.True(t, ok)
	assert.Equal(t, CmdEnforce, cmd)
	assert.Equal(t, []string{"vibe", "0x1"}, args)

	_, _, ok = parseCommand("hello")
	assert.False(t, ok)
}
