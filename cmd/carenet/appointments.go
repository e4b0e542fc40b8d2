package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gyeh/carenet/internal/output"
)

func newAppointmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appointments",
		Short: "Inspect the appointment store",
	}

	cmd.AddCommand(newAppointmentsListCmd())

	return cmd
}

func newAppointmentsListCmd() *cobra.Command {
	var (
		configPath string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Dump every appointment in the configured store as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("opening appointment store: %w", err)
			}
			defer closeStore()

			appts, err := store.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("loading appointments: %w", err)
			}
			if outputFile == "" || outputFile == "-" {
				return output.Encode(cmd.OutOrStdout(), appts)
			}
			return output.WriteJSON(outputFile, appts)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file (default: $CARENET_CONFIG or carenet.yaml)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "-", "Output file path (use '-' for stdout)")

	return cmd
}
