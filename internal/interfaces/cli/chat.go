package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/interfaces/chat"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

// NewChatCmd runs the bot conversation on the terminal, one line per message.
func NewChatCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the bot locally (/protect, /status, /alerts, /enforce)",
		Long: "chat reads messages from stdin and prints the bot's replies. It uses\n" +
			"the configured registry, ledger and sources, so assets protected here\n" +
			"are visible to the API server when both share a database.\n" +
			"Type exit or quit, or send EOF, to leave.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, userID)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "local", "user id the messages are sent as")
	return cmd
}

func runChat(cmd *cobra.Command, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.InvalidParam("--user cannot be empty")
	}
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	infra, err := openInfrastructure(cc.Config, cc.Logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	svc, err := infra.BuildServices()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	prompt := color.CyanString("> ")
	bot := color.GreenString("bot:")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	fmt.Fprint(out, prompt)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			fmt.Fprint(out, prompt)
			continue
		case "exit", "quit":
			return nil
		}

		ctx, cancel := commandContext(cmd, cc)
		replies := svc.Dispatcher.Handle(ctx, chat.Message{UserID: userID, Text: line})
		cancel()
		for _, r := range replies {
			fmt.Fprintf(out, "%s %s\n", bot, r)
		}
		fmt.Fprint(out, prompt)
	}
	return scanner.Err()
}
