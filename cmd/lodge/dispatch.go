package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/karloscodes/lodge"
)

var dispatchMethod string

var dispatchCmd = &cobra.Command{
	Use:   "dispatch <path>",
	Short: "Show where a request would be routed",
	Long:  "Run the configured router for a path without invoking the controller.",
	Args:  cobra.ExactArgs(1),
	RunE:  runDispatch,
}

func init() {
	dispatchCmd.Flags().StringVarP(&dispatchMethod, "method", "X", "GET", "HTTP method")
	rootCmd.AddCommand(dispatchCmd)
}

func runDispatch(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}

	req := lodge.NewRequest(strings.ToUpper(dispatchMethod), args[0])
	ctx, err := env.kernel().NewContext(req, nil)
	if err != nil {
		return err
	}
	defer ctx.UnregisterServices()

	app := lodge.NewApp()
	app.BindContext(ctx)
	router, err := app.Router()
	if err != nil {
		return err
	}
	if err := router.Dispatch(); err != nil {
		return err
	}
	res := router.Result()

	out := cmd.OutOrStdout()
	if rr, ok := router.(*lodge.RuleRouter); ok {
		rules, err := rr.Rules()
		if err != nil {
			return err
		}
		if rule, _, _, ok := lodge.MatchRules(rules, req.Method(), strings.Trim(req.Path(), "/")); ok {
			fmt.Fprintf(out, "rule        %s\n", rule.Pattern)
		} else {
			fmt.Fprintln(out, "rule        no rule matched, defaults applied")
		}
	}

	fmt.Fprintf(out, "controller  %s (%s)\n", res.Controller, res.OriginalController)
	fmt.Fprintf(out, "method      %s (%s)\n", res.Method, res.OriginalMethod)
	fmt.Fprintf(out, "registered  %t\n", ctx.Has(res.Controller))
	if res.Attributes != nil {
		for _, k := range res.Attributes.Keys() {
			v, _ := res.Attributes.Get(k)
			fmt.Fprintf(out, "attribute   %s = %v\n", k, v)
		}
	}
	return nil
}
