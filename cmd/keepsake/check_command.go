package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"keepsake/internal/deps"
	"keepsake/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check directories, external binaries and network reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			results := preflight.RunAll(cmd.Context(), cfg)
			printLines(out, renderSectionHeader("Preflight", colorize)...)
			printLines(out, preflightLines(results, colorize)...)

			statuses := preflight.CheckSystemDeps(cfg)
			fmt.Fprintln(out)
			printLines(out, renderSectionHeader("Dependencies", colorize)...)
			printLines(out, dependencyLines(statuses, colorize)...)

			if len(preflight.Failed(results)) > 0 || missingRequired(statuses) {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}
}

func preflightLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		kind := statusOK
		if !r.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	return lines
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses)+1)
	missing := make([]string, 0)
	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}

		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func missingRequired(statuses []deps.Status) bool {
	for _, dep := range statuses {
		if !dep.Available && !dep.Optional {
			return true
		}
	}
	return false
}
