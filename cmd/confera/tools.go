package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/confera/confera/shared/jsonutil"
	"github.com/confera/confera/tools"
)

func toolsCmd() *cobra.Command {
	var showSchemas bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools advertised to the model",
		Run: func(cmd *cobra.Command, args []string) {
			registry := tools.NewRegistry(nil)
			for _, desc := range registry.List() {
				fmt.Printf("%-20s %s\n", desc.Name, desc.Description)
				if showSchemas {
					fmt.Println(jsonutil.MustMarshalIndent(desc.Schema))
					fmt.Println()
				}
			}
		},
	}
	cmd.Flags().BoolVar(&showSchemas, "schemas", false, "print argument schemas")
	return cmd
}
