package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	viewrender "github.com/goliatone/go-viewrender"
	"github.com/goliatone/go-viewrender/internal/config"
	"github.com/goliatone/go-viewrender/pkg/csrf"
	"github.com/goliatone/go-viewrender/pkg/i18n"
	"github.com/goliatone/go-viewrender/pkg/orchestrator"
	"github.com/goliatone/go-viewrender/pkg/tags"
	"github.com/goliatone/go-viewrender/pkg/themeinject"
)

// app holds state shared by the subcommands.
type app struct {
	cfgFile  string
	embedded bool

	cfg      *config.Config
	logger   *log.Logger
	out      io.Writer
	errOut   io.Writer
	prompter PromptDriver
}

func newApp(out, errOut io.Writer) *app {
	return &app{
		out:      out,
		errOut:   errOut,
		prompter: surveyDriver{},
		logger:   log.New(errOut),
	}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "viewrender",
		Short: "Render views with layouts and injections",
		Long: `viewrender renders pongo2 views through a view renderer that wraps them
in layouts and merges parameters, meta tags and link tags contributed by
injections.

Configuration is read from viewrender.yaml (or --config), VIEWRENDER_*
environment variables and flags, in increasing priority.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig(cmd)
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./viewrender.yaml)")
	flags.BoolVar(&a.embedded, "embedded", false, "use the built-in starter views")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("templates", "", "template root directory")
	flags.String("view-path", "", "view path or alias")
	flags.String("theme", "", "theme manifest file")
	flags.String("theme-variant", "", "theme variant")
	flags.String("i18n", "", "directory with translation catalogs")

	root.AddCommand(newRenderCommand(a), newServeCommand(a))
	return root
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	v := config.New(a.cfgFile)
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("config: log_level: %w", err)
	}
	a.logger.SetLevel(level)
	a.logger.Debug("config loaded", "file", v.ConfigFileUsed(), "view_path", cfg.ViewPath, "layout", cfg.Layout)
	return nil
}

// orchestrator wires the stack described by the loaded config.
func (a *app) orchestrator(extra ...orchestrator.Option) (*orchestrator.Orchestrator, error) {
	cfg := a.cfg
	opts := []orchestrator.Option{
		orchestrator.WithTemplateDir(cfg.Templates.Dir),
		orchestrator.WithExtensions(cfg.Templates.Extension, cfg.Templates.FallbackExtension),
		orchestrator.WithSourceLocale(cfg.Templates.SourceLocale),
		orchestrator.WithAliases(cfg.Aliases),
		orchestrator.WithViewPath(cfg.ViewPath),
		orchestrator.WithLayout(cfg.Layout),
		orchestrator.WithLocale(cfg.Locale),
		orchestrator.WithStaticInjections(cfg.Injections.Static...),
		orchestrator.WithTemplateGlobals(cfg.Templates.Globals),
		orchestrator.WithTagPolicy(tags.DefaultPolicy()),
		orchestrator.WithLogger(a.logger),
	}
	if a.embedded {
		opts = append(opts, viewrender.WithEmbeddedViews())
	}

	if csrfCfg := cfg.Injections.CSRF; csrfCfg.Enabled {
		inj := csrf.NewViewInjection(csrf.ContextTokenSource{}).
			WithParameterName(csrfCfg.ParameterName).
			WithMetaAttributeName(csrfCfg.MetaAttributeName)
		opts = append(opts, orchestrator.WithCSRF(inj))
	}

	if cfg.I18n.Dir != "" {
		catalog, err := i18n.LoadCatalog(os.DirFS(cfg.I18n.Dir), ".", cfg.I18n.Fallback)
		if err != nil {
			return nil, err
		}
		a.logger.Debug("translations loaded", "locales", catalog.Locales())
		opts = append(opts, orchestrator.WithTranslator(catalog, i18n.TemplateConfig{}))
	}

	if cfg.Theme.Manifest != "" {
		manifest, err := themeinject.LoadManifest(os.DirFS(filepath.Dir(cfg.Theme.Manifest)), filepath.Base(cfg.Theme.Manifest))
		if err != nil {
			return nil, err
		}
		selector := themeinject.StaticSelector{Manifest: manifest}
		opts = append(opts, orchestrator.WithTheme(themeinject.New(selector, manifest.Name, cfg.Theme.Variant)))
	}

	gen := orchestrator.New(append(opts, extra...)...)
	if err := gen.Err(); err != nil {
		return nil, err
	}
	return gen, nil
}
