package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edgefleet/flotilla/pkg/fl"
	"github.com/edgefleet/flotilla/pkg/mailbox"
)

// MailboxFactory opens the result mailbox configured for this deployment.
type MailboxFactory func() (mailbox.Mailbox, error)

func parseKind(arg string) (fl.Op, error) {
	switch fl.Op(arg) {
	case fl.OpGet, fl.OpSet, fl.OpFit, fl.OpEvaluate:
		return fl.Op(arg), nil
	}

	return "", fmt.Errorf("unknown kind %q (expected get, set, fit or evaluate)", arg)
}

// NewMailboxCmd returns subcommands for inspecting and clearing result
// mailbox entries without consuming them through a bridge.
func NewMailboxCmd(factory MailboxFactory) *cobra.Command {
	cmd := cobra.Command{
		Use:   "mailbox",
		Short: "Inspect and clear result mailbox entries",
	}

	inspect := &cobra.Command{
		Use:   "inspect <kind>",
		Short: "Show the pending entry for a participant and kind",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			kind, err := parseKind(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}
			participant, err := resolveParticipant(cmd)
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}
			mbox, err := factory()
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}

			entry, found, err := mbox.Get(cmd.Context(), participant, kind)
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}
			if !found {
				logOKCmd(*cmd, fmt.Sprintf("no pending %s entry for %s", kind, participant))
				return
			}
			logJSONCmd(*cmd, entry)
		},
	}

	clear := &cobra.Command{
		Use:   "clear <kind>",
		Short: "Delete the pending entry for a participant and kind",
		Run: func(cmd *cobra.Command, args []string) {
			kind, err := parseKind(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}
			participant, err := resolveParticipant(cmd)
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}
			mbox, err := factory()
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}

			deleted, err := mbox.Delete(cmd.Context(), participant, kind)
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}
			if !deleted {
				logOKCmd(*cmd, fmt.Sprintf("no pending %s entry for %s", kind, participant))
				return
			}
			logOKCmd(*cmd, fmt.Sprintf("cleared %s entry for %s", kind, participant))
		},
	}
	clear.Args = cobra.ExactArgs(1)

	for _, sub := range []*cobra.Command{inspect, clear} {
		sub.Flags().StringP("participant", "p", "", "Participant identity")
		cmd.AddCommand(sub)
	}

	return &cmd
}
