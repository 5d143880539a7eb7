package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/karloscodes/lodge"
	"github.com/karloscodes/lodge/container"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the compiled routing rules",
	Long:  "Compile router.rules and print them in match order.",
	Args:  cobra.NoArgs,
	RunE:  runRoutes,
}

func init() {
	rootCmd.AddCommand(routesCmd)
}

func runRoutes(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}

	ctx, err := env.kernel().NewContext(lodge.NewRequest("GET", "/"), nil)
	if err != nil {
		return err
	}
	defer ctx.UnregisterServices()

	router, err := container.Resolve[*lodge.RuleRouter](ctx.Container, lodge.NameRuleRouter)
	if err != nil {
		return err
	}
	rules, err := router.Rules()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tPATTERN\tTYPE\tMETHODS\tTARGET")
	for i, r := range rules {
		methods := "*"
		if len(r.Methods) > 0 {
			methods = strings.Join(r.Methods, ",")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, r.Pattern, r.Type, methods, r.Target)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if len(rules) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "no rules under router.rules")
	}
	return nil
}
