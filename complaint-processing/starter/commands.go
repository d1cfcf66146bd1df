package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"go-complaint-tasks/complaint-processing/types"
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgHiGreen)
	failure = color.New(color.FgRed)
)

type rootOptions struct {
	envFile string
	wait    time.Duration
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "starter",
		Short:         "Submit complaint tasks and print their results",
		Long:          "Talks to the customer-service backend through the task queue, falling back to direct calls when the queue does not answer in time",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional .env file to load")
	root.PersistentFlags().DurationVar(&opts.wait, "wait", 0, "how long to wait for a task result (default caller.wait_timeout)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		toolCmd(opts, "track [order_id]", "Show an order's status", cobra.ExactArgs(1),
			func(a *app, cmd *cobra.Command, args []string) string {
				return a.tools.TrackOrder(cmd.Context(), args[0])
			}),
		toolCmd(opts, "complain [order_id] [issue...]", "File a complaint about an order", cobra.MinimumNArgs(2),
			func(a *app, cmd *cobra.Command, args []string) string {
				return a.tools.FileComplaint(cmd.Context(), args[0], strings.Join(args[1:], " "))
			}),
		statusCmd(opts),
		toolCmd(opts, "details [complaint_id]", "Show the full record of a complaint", cobra.ExactArgs(1),
			func(a *app, cmd *cobra.Command, args []string) string {
				return a.tools.ComplaintDetails(cmd.Context(), args[0])
			}),
		toolCmd(opts, "escalate [complaint_id]", "Escalate a complaint for senior review", cobra.ExactArgs(1),
			func(a *app, cmd *cobra.Command, args []string) string {
				return a.tools.Escalate(cmd.Context(), args[0])
			}),
		toolCmd(opts, "workflow [order_id] [issue...]", "Check the order, file the complaint and escalate it if critical", cobra.MinimumNArgs(2),
			func(a *app, cmd *cobra.Command, args []string) string {
				return a.tools.ProcessComplaint(cmd.Context(), args[0], strings.Join(args[1:], " "))
			}),
		notifyCmd(opts),
		taskCmd(opts, "report", "Generate the daily complaint report", cobra.NoArgs, types.TaskGenerateDailyReport,
			func([]string) (any, error) { return types.ReportArgs{}, nil }),
		taskCmd(opts, "batch [order_id...]", "Check several orders at once", cobra.MinimumNArgs(1), types.TaskBatchCheckOrders,
			func(args []string) (any, error) { return types.BatchArgs{OrderIDs: args}, nil }),
		submitCmd(opts),
	)
	return root
}

// toolCmd runs one caller-adapter operation and prints its message
func toolCmd(
	opts *rootOptions,
	use, short string,
	args cobra.PositionalArgs,
	fn func(a *app, cmd *cobra.Command, args []string) string,
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.envFile, opts.wait, opts.verbose)
			if err != nil {
				return err
			}
			defer a.Close()
			printMessage(cmd.OutOrStdout(), fn(a, cmd, args))
			return nil
		},
	}
}

func statusCmd(opts *rootOptions) *cobra.Command {
	var byOrder bool
	cmd := toolCmd(opts, "status [id]", "Check a complaint by id, or by order with --order", cobra.ExactArgs(1),
		func(a *app, cmd *cobra.Command, args []string) string {
			if byOrder {
				return a.tools.CheckComplaintByOrder(cmd.Context(), args[0])
			}
			return a.tools.CheckComplaint(cmd.Context(), args[0])
		})
	cmd.Flags().BoolVar(&byOrder, "order", false, "treat the id as an order id")
	return cmd
}

func notifyCmd(opts *rootOptions) *cobra.Command {
	var data []string
	cmd := taskCmd(opts, "notify [recipient] [message_type]", "Send an email or SMS notification", cobra.ExactArgs(2),
		types.TaskSendNotification,
		func(args []string) (any, error) {
			fields := make(map[string]any, len(data))
			for _, kv := range data {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return nil, fmt.Errorf("invalid --data %q, want key=value", kv)
				}
				fields[k] = v
			}
			return types.NotificationArgs{Recipient: args[0], MessageType: args[1], Data: fields}, nil
		})
	cmd.Flags().StringArrayVar(&data, "data", nil, "notification field as key=value (repeatable)")
	return cmd
}

func submitCmd(opts *rootOptions) *cobra.Command {
	return taskCmd(opts, "submit [task] [json]", "Submit any task with a raw JSON payload", cobra.RangeArgs(1, 2), "",
		func(args []string) (any, error) {
			if len(args) < 2 {
				return nil, nil
			}
			if !json.Valid([]byte(args[1])) {
				return nil, fmt.Errorf("payload is not valid JSON")
			}
			return json.RawMessage(args[1]), nil
		})
}

// taskCmd submits a task through the queue and prints its JSON result. An
// empty name takes the task from the first argument.
func taskCmd(
	opts *rootOptions,
	use, short string,
	args cobra.PositionalArgs,
	name types.TaskName,
	payload func(args []string) (any, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			task := name
			if task == "" {
				task = types.TaskName(args[0])
				if !task.Valid() {
					return fmt.Errorf("%w: %s", types.ErrUnknownTask, task)
				}
			}
			body, err := payload(args)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), opts.envFile, opts.wait, opts.verbose)
			if err != nil {
				return err
			}
			defer a.Close()

			h, err := a.broker.Submit(cmd.Context(), task, body)
			if err != nil {
				return fmt.Errorf("submit %s: %w", task, err)
			}
			heading.Fprintf(cmd.OutOrStdout(), "Submitted %s (%s)\n", task, h.ID())

			var result json.RawMessage
			if err := h.Wait(cmd.Context(), a.cfg.Caller.WaitTimeout, &result); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func printMessage(w io.Writer, msg string) {
	if strings.Contains(msg, "unavailable") || strings.Contains(msg, "not found") {
		failure.Fprintln(w, msg)
		return
	}
	success.Fprintln(w, msg)
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	success.Fprintln(w, string(out))
	return nil
}
