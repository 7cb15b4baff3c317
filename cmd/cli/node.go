package main

import "github.com/spf13/cobra"

func getSelfCliqueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "getSelfClique",
		Short: "report this node's broker identity within its clique",
		Run: func(cmd *cobra.Command, args []string) {
			printResult(surface.GetSelfClique())
		},
	}
}

func getMisbehaviorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "getMisbehaviors",
		Short: "list every recorded peer demerit",
		Run: func(cmd *cobra.Command, args []string) {
			printResult(surface.GetMisbehaviors())
		},
	}
}
