package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/blockwriter/internal/sqlgen"
	"github.com/rzpsarthak13/blockwriter/pkg/blockwriter"
)

func renderCmd() *cobra.Command {
	var (
		opsFile      string
		maxBatchSize int
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the blocks for an operations file without executing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := loadOperations(opsFile)
			if err != nil {
				return err
			}

			var opts []blockwriter.WriterOption
			if cmd.Flags().Changed("max-batch-size") {
				opts = append(opts, blockwriter.WithMaxBatchSize(maxBatchSize))
			} else if configFile != "" {
				cfg, err := blockwriter.LoadConfig(configFile)
				if err != nil {
					return err
				}
				if cfg.Batch.MaxBatchSize != nil {
					opts = append(opts, blockwriter.WithMaxBatchSize(*cfg.Batch.MaxBatchSize))
				}
			}

			writer, err := blockwriter.NewWriter(nil, sqlgen.NewFirebirdGenerator(), opts...)
			if err != nil {
				return err
			}
			blocks, err := writer.Render(ops)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, block := range blocks {
				fmt.Fprintf(out, "-- block %d of %d\n%s\n", i+1, len(blocks), block.Text)
				for j, arg := range block.Args {
					fmt.Fprintf(out, "-- arg %d: %v\n", j+1, arg)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&opsFile, "file", "f", "", "operations file (YAML or JSON)")
	cmd.Flags().IntVar(&maxBatchSize, "max-batch-size", 0, "operations per block (default 256)")
	cmd.MarkFlagRequired("file")
	return cmd
}

func applyCmd() *cobra.Command {
	var opsFile string
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Execute an operations file against the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := loadOperations(opsFile)
			if err != nil {
				return err
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			result, err := client.Execute(cmd.Context(), ops)
			if result != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "committed %d operation(s) in %d block(s); %d failed, %d not sent\n",
					len(result.Committed), result.Blocks, len(result.Failed), len(result.Pending))
				for _, op := range result.Committed {
					if op.RequiresResultPropagation() && op.Record != nil {
						fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", op.Record, op.Record.Values)
					}
				}
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&opsFile, "file", "f", "", "operations file (YAML or JSON)")
	cmd.MarkFlagRequired("file")
	return cmd
}

func submitCmd() *cobra.Command {
	var opsFile string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Queue an operations file for the write-back drainer",
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := loadOperations(opsFile)
			if err != nil {
				return err
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			for _, op := range ops {
				if err := client.Submit(cmd.Context(), op); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), op.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&opsFile, "file", "f", "", "operations file (YAML or JSON)")
	cmd.MarkFlagRequired("file")
	return cmd
}

func drainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Run the write-back drainer until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := client.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			log.Printf("[CLI] Shutting down")
			return client.Stop()
		},
	}
}

func newClient() (*blockwriter.Client, error) {
	cfg, err := blockwriter.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	return blockwriter.NewClient(cfg)
}
