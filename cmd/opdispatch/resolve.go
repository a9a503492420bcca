package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/dshills/opdispatch/internal/app"
	"github.com/dshills/opdispatch/internal/dispatcher"
	"github.com/dshills/opdispatch/internal/dispatcher/execctx"
)

var (
	resolveOperationID string
	resolveTags        []string
	resolveMethod      string
	resolveInvoke      bool
	resolveBody        string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Show which handler a request would reach",
	Example: `  opdispatch resolve --operation-id searchFooBar
  opdispatch resolve --tag foo --tag bar --method GET
  opdispatch resolve --tag foo --tag biz --method post --invoke --body '{"a":1}'`,
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().StringVar(&resolveOperationID, "operation-id", "", "Operation ID")
	resolveCmd.Flags().StringArrayVar(&resolveTags, "tag", nil, "Tag, in order (repeatable)")
	resolveCmd.Flags().StringVar(&resolveMethod, "method", "", "Request method")
	resolveCmd.Flags().BoolVar(&resolveInvoke, "invoke", false, "Run the handler and print its result")
	resolveCmd.Flags().StringVar(&resolveBody, "body", "", "Request body for --invoke")
}

func runResolve(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := app.BuildRegistry(cfg, app.Options{})
	if err != nil {
		return err
	}

	ctx := execctx.New(resolveOperationID, resolveTags, resolveMethod)
	ctx.Body = []byte(resolveBody)
	out := cmd.OutOrStdout()

	m, ok := reg.Resolve(ctx)
	if !ok {
		fmt.Fprintln(out, "no match")
		return nil
	}
	fmt.Fprintf(out, "%s (%s)\n", m.Binding(), m.Source)
	if !resolveInvoke {
		return nil
	}

	d := dispatcher.NewWithRegistry(dispatcher.DefaultConfig(), reg)
	res, _ := d.Dispatch(ctx)
	view := map[string]any{
		"status":  res.Status.String(),
		"code":    app.StatusCode(res),
		"message": res.Message,
		"body":    res.Body,
		"headers": res.Header,
	}
	if res.Error != nil {
		view["error"] = res.Error.Error()
	}
	data, err := json.Marshal(view)
	if err != nil {
		return err
	}
	_, err = out.Write(pretty.Pretty(data))
	return err
}
