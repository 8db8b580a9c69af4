// Command kahva is an interactive, mouse-driven commit graph for jj.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cj3636/kahva/internal/config"
	"github.com/cj3636/kahva/internal/export"
	"github.com/cj3636/kahva/internal/jj"
	"github.com/cj3636/kahva/internal/logger"
	"github.com/cj3636/kahva/internal/session"
	"github.com/cj3636/kahva/internal/tui"
	"github.com/cj3636/kahva/internal/watch"
)

const version = "0.1.0"

var (
	repoPath   string
	revisions  string
	configPath string
	logFile    string
	verbose    bool
	jjPath     string

	graphFormat string
	graphPreset string
	graphOutput string
	graphCopy   bool
)

var rootCmd = &cobra.Command{
	Use:   "kahva",
	Short: "Interactive commit graph for jj",
	Long: `kahva shows the commit graph of a jj workspace and edits history by drag and drop:
drop a commit on another to rebase it, alt+drop to squash, drop on a bookmark or drag a
bookmark to move it, and drop on the trash zone to abandon.`,
	Version:      version,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runTUI,
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the laid-out commit graph without starting the TUI",
	Args:  cobra.NoArgs,
	RunE:  runGraph,
}

func init() {
	addGlobalFlags(rootCmd.PersistentFlags())

	graphCmd.Flags().StringVar(&graphFormat, "format", "text", "Output format: text, markdown, ansi, or json")
	graphCmd.Flags().StringVar(&graphPreset, "preset", "kahva-log", "Revision set preset: kahva-log or log")
	graphCmd.Flags().StringVarP(&graphOutput, "output", "o", "", "Write the graph to a file")
	graphCmd.Flags().BoolVar(&graphCopy, "copy", false, "Copy the graph to your clipboard")
	rootCmd.AddCommand(graphCmd)
}

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&repoPath, "repository", "R", ".", "Path inside the jj workspace")
	fs.StringVarP(&revisions, "revisions", "r", "", "Revision set to show, overriding revsets.kahva-log and revsets.log")
	fs.StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/kahva/config.yml)")
	fs.StringVar(&logFile, "log-file", "", "Append logs to this file")
	fs.BoolVarP(&verbose, "verbose", "v", false, "Log debug messages")
	fs.StringVar(&jjPath, "jj", "", "Path to the jj binary")
}

// app is what both commands need before they can read history.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	closeLog func() error
	root     string
	client   *jj.Client
	revsets  session.Revsets
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	path := logFile
	if path == "" {
		path = cfg.LogFile
	}
	log, closeLog, err := logger.New(path, verbose)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, closeLog: closeLog}
	a.root, err = jj.FindWorkspace(repoPath)
	if err != nil {
		a.close()
		return nil, err
	}

	bin := jjPath
	if bin == "" {
		bin = cfg.JJPath
	}
	a.client = jj.New(jj.NewExecRunner(bin), a.root, log)

	if revisions != "" {
		a.revsets = session.Revsets{KahvaLog: revisions, Log: revisions}
	} else {
		kahvaLog, logRevset, err := a.client.Revsets(ctx)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("reading revset configuration: %w", err)
		}
		a.revsets = session.Revsets{KahvaLog: kahvaLog, Log: logRevset}
	}
	log.Debug("workspace opened", "root", a.root, "kahva_log", a.revsets.KahvaLog, "log", a.revsets.Log)
	return a, nil
}

func (a *app) close() {
	if err := a.closeLog(); err != nil {
		fmt.Fprintf(os.Stderr, "Error closing log file: %v\n", err)
	}
}

func (a *app) sessionOptions() ([]session.Option, error) {
	rules, err := a.cfg.GestureRules()
	if err != nil {
		return nil, err
	}
	planner, err := a.cfg.PlannerOptions()
	if err != nil {
		return nil, err
	}
	return []session.Option{
		session.WithLogger(a.log),
		session.WithGeometry(a.cfg.Geometry),
		session.WithRules(rules),
		session.WithPlannerOptions(planner...),
	}, nil
}

func runTUI(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	opts, err := a.sessionOptions()
	if err != nil {
		return err
	}
	s := session.New(a.client, a.client, a.revsets, opts...)
	defer s.Close()

	modelOpts := []tui.Option{tui.WithContext(ctx), tui.WithLogger(a.log)}
	if w, err := startWatcher(ctx, a); err != nil {
		// Without the watcher, changes made elsewhere show up on the next refresh.
		a.log.Warn("not watching for repository changes", "error", err)
	} else {
		defer w.Close()
		modelOpts = append(modelOpts, tui.WithChanges(w.Changes()))
	}

	p := tea.NewProgram(tui.NewModel(s, a.cfg, modelOpts...),
		tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}

func startWatcher(ctx context.Context, a *app) (*watch.Watcher, error) {
	dir, err := jj.OpHeadsDir(a.root)
	if err != nil {
		return nil, err
	}
	w, err := watch.New(dir, watch.WithLogger(a.log))
	if err != nil {
		return nil, err
	}
	w.Start(ctx)
	return w, nil
}

func runGraph(cmd *cobra.Command, _ []string) error {
	format, err := export.ParseFormat(graphFormat)
	if err != nil {
		return err
	}
	preset, err := session.ParsePreset(graphPreset)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	opts, err := a.sessionOptions()
	if err != nil {
		return err
	}
	s := session.New(a.client, nil, a.revsets, append(opts, session.WithPreset(preset))...)
	defer s.Close()
	s.ApplyRefresh(s.Refresh(ctx).Run())
	if err := s.Err(); err != nil {
		return err
	}

	rendered, err := export.Render(s.View(), s.Layout(), format, export.Options{Title: s.Revset(), Now: time.Now()})
	if err != nil {
		return err
	}
	if !strings.HasSuffix(rendered, "\n") {
		rendered += "\n"
	}

	if graphOutput != "" {
		if err := os.WriteFile(graphOutput, []byte(rendered), 0o644); err != nil {
			return fmt.Errorf("writing graph: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Graph saved to %s\n", graphOutput)
	}
	if graphCopy {
		if err := export.CopyToClipboard(rendered, cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("copying graph: %w", err)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "Graph copied to clipboard.")
	}
	if graphOutput == "" && !graphCopy {
		fmt.Fprint(cmd.OutOrStdout(), rendered)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
