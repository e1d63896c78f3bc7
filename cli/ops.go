package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/edgefleet/flotilla/bridge"
	"github.com/edgefleet/flotilla/pkg/params"
)

// BridgeFactory builds a bridge bound to one participant. The returned
// cleanup func disconnects the underlying messaging client.
type BridgeFactory func(participant string) (*bridge.Bridge, func(), error)

func resolveParticipant(cmd *cobra.Command) (string, error) {
	participant, err := cmd.Flags().GetString("participant")
	if err != nil {
		return "", err
	}
	if participant != "" {
		return participant, nil
	}

	prompt := huh.NewInput().
		Title("Participant identity").
		Description("The client this operation is addressed to").
		Value(&participant)
	if err := prompt.Run(); err != nil {
		return "", err
	}
	if participant == "" {
		return "", errors.New("participant is required")
	}

	return participant, nil
}

func loadParameters(path string) (params.Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameters file: %w", err)
	}

	return params.Decode(data)
}

func saveParameters(path string, p params.Parameters) error {
	data, err := params.Encode(p)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// NewOpsCmd returns the operation subcommands, each of which runs one
// synchronous federated call against a participant.
func NewOpsCmd(factory BridgeFactory) *cobra.Command {
	cmd := cobra.Command{
		Use:   "op",
		Short: "Run federated operations against a participant",
	}

	fetch := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the participant's current parameters",
		Run: func(cmd *cobra.Command, args []string) {
			participant, err := resolveParticipant(cmd)
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}
			b, cleanup, err := factory(participant)
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}
			defer cleanup()

			p, err := b.FetchParameters(cmd.Context())
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}

			out, _ := cmd.Flags().GetString("output")
			if out != "" {
				if err := saveParameters(out, p); err != nil {
					logErrorCmd(*cmd, err)
					return
				}
				logOKCmd(*cmd, fmt.Sprintf("parameters written to %s", out))
				return
			}
			logJSONCmd(*cmd, p)
		},
	}
	fetch.Flags().StringP("output", "o", "", "Write fetched parameters to this file")

	push := &cobra.Command{
		Use:   "push <parameters-file>",
		Short: "Push parameters to the participant",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			participant, err := resolveParticipant(cmd)
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}
			p, err := loadParameters(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}
			b, cleanup, err := factory(participant)
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}
			defer cleanup()

			if err := b.PushParameters(cmd.Context(), p); err != nil {
				logErrorCmd(*cmd, err)
				return
			}
			logOKCmd(*cmd, "parameters accepted")
		},
	}

	fit := &cobra.Command{
		Use:   "fit <parameters-file>",
		Short: "Train on the participant's local dataset",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			participant, err := resolveParticipant(cmd)
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}
			p, err := loadParameters(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}
			b, cleanup, err := factory(participant)
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}
			defer cleanup()

			res, err := b.Fit(cmd.Context(), p, nil)
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}

			out, _ := cmd.Flags().GetString("output")
			if out != "" {
				if err := saveParameters(out, res.Parameters); err != nil {
					logErrorCmd(*cmd, err)
					return
				}
			}
			logJSONCmd(*cmd, map[string]any{
				"num_samples": res.NumSamples,
				"metrics":     res.Metrics,
			})
		},
	}
	fit.Flags().StringP("output", "o", "", "Write trained parameters to this file")

	evaluate := &cobra.Command{
		Use:   "evaluate <parameters-file>",
		Short: "Evaluate parameters on the participant's local dataset",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			participant, err := resolveParticipant(cmd)
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}
			p, err := loadParameters(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}
			b, cleanup, err := factory(participant)
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}
			defer cleanup()

			res, err := b.Evaluate(cmd.Context(), p)
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}
			logJSONCmd(*cmd, res)
		},
	}

	for _, sub := range []*cobra.Command{fetch, push, fit, evaluate} {
		sub.Flags().StringP("participant", "p", "", "Participant identity")
		cmd.AddCommand(sub)
	}

	return &cmd
}
