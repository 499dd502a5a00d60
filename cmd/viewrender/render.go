package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-viewrender/pkg/csrf"
	"github.com/goliatone/go-viewrender/pkg/orchestrator"
)

type renderFlags struct {
	controller  string
	partial     bool
	interactive bool
	output      string
}

func newRenderCommand(a *app) *cobra.Command {
	flags := &renderFlags{}
	cmd := &cobra.Command{
		Use:   "render [view] [key=value ...]",
		Short: "Render a view to stdout or a file",
		Example: `  viewrender render index name=Ada --controller site
  viewrender render @views/site/about --layout @layout/print
  viewrender render --interactive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRender(cmd.Context(), flags, args)
		},
	}
	cmd.Flags().String("layout", "", "layout view, overrides the configured one")
	cmd.Flags().String("locale", "", "render locale, e.g. de_DE")
	cmd.Flags().StringVar(&flags.controller, "controller", "", "controller name, the view subdirectory")
	cmd.Flags().BoolVar(&flags.partial, "partial", false, "render without layout")
	cmd.Flags().BoolVarP(&flags.interactive, "interactive", "i", false, "prompt for the view and parameters")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output file (stdout if empty)")
	return cmd
}

func (a *app) runRender(ctx context.Context, flags *renderFlags, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	view := ""
	if len(args) > 0 && !strings.Contains(args[0], "=") {
		view, args = args[0], args[1:]
	}
	parameters, err := parseParameters(args)
	if err != nil {
		return err
	}

	if flags.interactive {
		view, err = a.promptRender(ctx, view, parameters)
		if err != nil {
			return err
		}
	}
	if strings.TrimSpace(view) == "" {
		return fmt.Errorf("render: view is required")
	}

	gen, err := a.orchestrator()
	if err != nil {
		return err
	}

	if a.cfg.Injections.CSRF.Enabled {
		token, err := csrf.NewToken()
		if err != nil {
			return err
		}
		ctx = csrf.WithToken(ctx, token)
	}

	out, err := gen.Generate(ctx, orchestrator.Request{
		View:           view,
		ControllerName: flags.controller,
		Partial:        flags.partial,
		Parameters:     parameters,
	})
	if err != nil {
		return err
	}

	if flags.output != "" {
		if err := os.WriteFile(flags.output, out, 0o644); err != nil {
			return fmt.Errorf("render: write output: %w", err)
		}
		a.logger.Info("view written", "file", flags.output, "bytes", len(out))
		return nil
	}
	_, err = fmt.Fprintln(a.out, string(out))
	return err
}

// promptRender asks for the view when missing and then for extra
// parameters until the user declines.
func (a *app) promptRender(ctx context.Context, view string, parameters map[string]any) (string, error) {
	if strings.TrimSpace(view) == "" {
		answer, err := a.prompter.Input(ctx, InputConfig{
			Message: "View",
			Help:    "relative to the view path, absolute, or starting with an alias",
			Validator: func(value string) error {
				if strings.TrimSpace(value) == "" {
					return fmt.Errorf("view is required")
				}
				return nil
			},
		})
		if err != nil {
			return "", err
		}
		view = strings.TrimSpace(answer)
	}

	for {
		more, err := a.prompter.Confirm(ctx, ConfirmConfig{Message: "Add a parameter?"})
		if err != nil {
			return "", err
		}
		if !more {
			return view, nil
		}
		key, err := a.prompter.Input(ctx, InputConfig{Message: "Name"})
		if err != nil {
			return "", err
		}
		value, err := a.prompter.Input(ctx, InputConfig{Message: "Value"})
		if err != nil {
			return "", err
		}
		if key = strings.TrimSpace(key); key != "" {
			parameters[key] = value
		}
	}
}

// parseParameters turns key=value arguments into render parameters.
func parseParameters(args []string) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("render: parameter %q must be key=value", arg)
		}
		out[key] = value
	}
	return out, nil
}
