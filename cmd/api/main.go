package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/familyhub/core/cmd/api/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "familyhub",
		Short: "FamilyHub API Server",
		Long:  `FamilyHub is a household coordination service: shared family roster, reminders, chat and per-member day planners kept in sync across devices.`,
	}

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewUserCommand())
	rootCmd.AddCommand(commands.NewClientCommand())
	rootCmd.AddCommand(commands.NewDemoCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
