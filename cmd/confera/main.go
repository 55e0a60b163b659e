package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "confera",
		Short: "Confera - AI assistant for event Q&A and attendee support",
		Long: `Confera is the conversational backend for the Confera event platform.
It answers attendee questions from a vector cache of prior answers, generates
fresh answers with an LLM, and handles live chat with tool calling against
the platform API.`,
	}

	rootCmd.AddCommand(
		serveCmd(),
		seedCmd(),
		toolsCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("confera %s\n", version)
		},
	}
}
