package chat

import (
	"fmt"
	"strings"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/application/enforcement"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/application/monitoring"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/application/protection"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

const (
	replyHelp = "IP Whisperer at your service!\n\n" +
		"Commands:\n" +
		"/protect - Protect new IP\n" +
		"/status - Check status\n" +
		"/alerts - View alerts\n" +
		"/enforce [friendly|formal|vibe] [ipId] - Act on the first pending violation\n" +
		"/cancel - Abandon the current registration\n" +
		"/help - Show help"
	replyUnknownInput           = "Type /help to see available commands!"
	replyUnknownCommand         = "Unknown command. Type /help to see available commands!"
	replyMissingUser            = "Cannot identify the sender of this message."
	replyDraftDiscarded         = "Your previous registration draft was discarded. Starting over."
	replyNothingToCancel        = "There is no registration in progress."
	replyRegistering            = "Registering your IP on chain...\n\nThis may take a few seconds."
	replyNoAssets               = "No protected assets yet. Use /protect!"
	replyNoAlerts               = "No alerts!"
	replyNoViolations           = "No violations to enforce."
	replyAssetNotFound          = "Not found"
	replyProcessing             = "Processing..."
	replyEnforceFailed          = "Failed to take action. The violation is still pending, try /enforce again later."
	replyEnforceUsage           = "Usage: /enforce [friendly|formal|vibe] [ipId]"
	replyEnforcementUnavailable = "Enforcement is not available right now."
	replyError                  = "Error! Try again."
)

func percent(v float64, decimals int) string {
	return fmt.Sprintf("%.*f%%", decimals, v*100)
}

func platform(v asset.ViolationRecord) string {
	if v.Platform != "" {
		return v.Platform
	}
	return v.Source.Platform()
}

func formatProtected(res *protection.Result) string {
	a := res.Asset
	var sb strings.Builder
	sb.WriteString("IP protected successfully!\n\n")
	fmt.Fprintf(&sb, "Name: %s\n", a.Name)
	fmt.Fprintf(&sb, "IP ID: %s\n", a.ID)
	if a.TxRef != "" {
		fmt.Fprintf(&sb, "Transaction: %s\n", a.TxRef)
	}
	fmt.Fprintf(&sb, "License: %s\n", a.License)
	if res.IPMetadataURI != "" {
		fmt.Fprintf(&sb, "IP metadata: %s\n", res.IPMetadataURI)
	}
	if res.NFTMetadataURI != "" {
		fmt.Fprintf(&sb, "NFT metadata: %s\n", res.NFTMetadataURI)
	}
	sb.WriteString("\nMonitoring started! I'll scan for infringements periodically.")

	if res.InitialMatches == 0 {
		sb.WriteString("\n\nUse /status to check your protected IPs anytime.")
		return sb.String()
	}
	fmt.Fprintf(&sb, "\n\nWARNING: %d potential infringements found immediately!", res.InitialMatches)
	for i, v := range res.Top {
		fmt.Fprintf(&sb, "\n\n%d. %s (%s match)\n%s", i+1, platform(v), percent(v.Similarity, 0), v.URL)
	}
	sb.WriteString("\n\nUse /enforce to take action!")
	return sb.String()
}

func formatRegistrationFailed(err error) string {
	reason := err.Error()
	var ae *errors.AppError
	if errors.As(err, &ae) {
		reason = ae.Message
		if ae.Detail != "" {
			reason += ": " + ae.Detail
		}
	}
	return fmt.Sprintf("Registration failed: %s\n\nPlease try again with /protect", reason)
}

func formatStatus(report *monitoring.StatusReport) string {
	if report == nil || report.Total == 0 {
		return replyNoAssets
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Protected Assets (%d)\n", report.Total)
	for i, a := range report.Assets {
		fmt.Fprintf(&sb, "\n%d. %s\n   ID: %s\n   Alerts: %d\n", i+1, a.Name, a.IPID, a.PendingViolations)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatAlertGroup(g monitoring.PendingGroup) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s)\n", g.Name, g.IPID)
	for i, v := range g.Violations {
		fmt.Fprintf(&sb, "\n%d. %s - %s\n   %s\n", i+1, platform(v), percent(v.Similarity, 1), v.URL)
	}
	sb.WriteString("\nUse /enforce!")
	return sb.String()
}

func formatEnforced(res *enforcement.Result) string {
	var sb strings.Builder
	sb.WriteString(res.Message)
	if res.Dispute != nil {
		fmt.Fprintf(&sb, "\n\nDispute: %s", res.Dispute.DisputeID)
		if res.Dispute.Degraded {
			sb.WriteString(" (recorded locally, the dispute service was unavailable)")
		}
	}
	return sb.String()
}
