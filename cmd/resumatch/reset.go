package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every stored resume collection",
	RunE:  reset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

func reset(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Delete every collection in the %s store", cfg.Store.Driver),
			IsConfirm: true,
		}
		if _, err := prompt.Run(); err != nil {
			if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) {
				color.Yellow("Aborted, nothing was deleted")
				return nil
			}
			return err
		}
	}

	ctx := context.Background()
	a, err := newApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.matcher.Reset(ctx); err != nil {
		log.Error("reset failed", zap.Error(err), zap.String("driver", cfg.Store.Driver))
		return err
	}

	color.Green("✓ Vector store cleared")
	return nil
}
