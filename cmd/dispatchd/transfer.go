package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the current state as a versioned data packet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}

			packet := a.store.ExportPacket()
			data, err := json.MarshalIndent(packet, "", "  ")
			if err != nil {
				return fmt.Errorf("encode packet: %w", err)
			}

			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(out, data, 0o600); err != nil {
				return fmt.Errorf("write packet: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d incidents to %s\n", len(packet.Payload.Incidents), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "-", "output file (- for stdout)")
	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Restore state from a data packet (file or stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}

			var data []byte
			if len(args) == 0 || args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read packet: %w", err)
			}

			if err := a.store.ImportPacket(data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d incidents\n", len(a.store.Incidents()))
			return nil
		},
	}
}
