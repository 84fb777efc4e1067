package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shopquery/shopquery/config"
	"github.com/shopquery/shopquery/core"
)

func newAskCmd() *cobra.Command {
	var conversationID string

	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Run one query and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			a, err := buildApp(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer a.close()

			query := strings.Join(args, " ")
			traceID, units, errs, err := a.assistant.Submit(ctx, conversationID, query)
			if err != nil {
				return err
			}

			streamed := false
			for u := range units {
				switch u.Type {
				case core.UnitDelta:
					streamed = true
					fmt.Print(u.Text)
				case core.UnitFinal:
					if !streamed {
						fmt.Print(u.Answer)
					}
					fmt.Println()
				case core.UnitError:
					fmt.Fprintln(os.Stderr, "turn failed:", u.Error)
				}
			}
			fmt.Fprintln(os.Stderr, "trace id:", traceID)
			return <-errs
		},
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "cli", "conversation id to continue")
	return cmd
}
