package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"grabit/internal/ipc"
	"grabit/internal/logging"
	"grabit/internal/logs"
	"grabit/internal/logstream"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var component string
	var taskID string
	var level string
	var search string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			apiClient, err := logs.NewStreamClient(cfg.Server.Bind)
			if err != nil {
				return err
			}
			apiClient.SetToken(cfg.Server.APIToken)

			opts := logstream.Options{
				Lines:  lines,
				Follow: follow,
				Filters: logstream.Filters{
					Component: component,
					TaskID:    taskID,
					Level:     level,
					Search:    search,
				},
			}

			stdout := cmd.OutOrStdout()
			sink := logstream.Sink{
				Event: func(evt logging.LogEvent) {
					fmt.Fprintln(stdout, formatLogEvent(evt))
				},
				Line: func(line string) {
					fmt.Fprintln(stdout, line)
				},
			}

			src := logstream.Source{API: apiClient}
			if client, dialErr := ctx.dialClient(); dialErr == nil {
				defer client.Close()
				src.Tail = client
			}

			printed, err := logstream.Run(cmd.Context(), src, opts, sink)
			if err != nil {
				if errors.Is(err, logstream.ErrFiltersNeedAPI) {
					return errors.New("log filters require the HTTP API; start the daemon or clear the filters")
				}
				if errors.Is(err, logs.ErrAPIUnavailable) {
					return errors.New("daemon is not reachable; start it with `grabit start`")
				}
				return err
			}
			if !printed && !follow {
				fmt.Fprintln(stdout, "No log entries available")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	cmd.Flags().StringVar(&component, "component", "", "Only show events from this component")
	cmd.Flags().StringVar(&taskID, "task", "", "Only show events for this task id")
	cmd.Flags().StringVar(&level, "level", "", "Only show events at this level")
	cmd.Flags().StringVar(&search, "search", "", "Only show events whose message contains this text")
	return cmd
}

var _ logstream.TailClient = (*ipc.Client)(nil)

func formatLogEvent(evt logging.LogEvent) string {
	ts := evt.Timestamp.Format("2006-01-02 15:04:05")
	level := strings.ToUpper(strings.TrimSpace(evt.Level))
	if level == "" {
		level = "INFO"
	}
	parts := []string{ts, level}
	if component := strings.TrimSpace(evt.Component); component != "" {
		parts = append(parts, fmt.Sprintf("[%s]", component))
	}
	line := strings.Join(parts, " ")
	if subject := composeSubject(evt.TaskID, evt.Stage); subject != "" {
		line += " " + subject
	}
	if message := strings.TrimSpace(evt.Message); message != "" {
		line += " " + message
	}
	if len(evt.Fields) == 0 {
		return line
	}

	keys := make([]string, 0, len(evt.Fields))
	for key := range evt.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	builder := strings.Builder{}
	builder.WriteString(line)
	for _, key := range keys {
		value := strings.TrimSpace(evt.Fields[key])
		if value == "" {
			continue
		}
		builder.WriteString("\n    - ")
		builder.WriteString(key)
		builder.WriteString(": ")
		builder.WriteString(value)
	}
	return builder.String()
}

func composeSubject(taskID, stage string) string {
	taskID = strings.TrimSpace(taskID)
	stage = strings.TrimSpace(stage)
	switch {
	case taskID != "" && stage != "":
		return fmt.Sprintf("task %s (%s)", shortTaskID(taskID), stage)
	case taskID != "":
		return fmt.Sprintf("task %s", shortTaskID(taskID))
	default:
		return stage
	}
}

func shortTaskID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
