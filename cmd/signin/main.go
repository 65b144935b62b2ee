/*
signin opens the daily check-in pages of the configured sites in a
browser that is already logged in and runs each site's sign-in flow.

Have a look at the README.md for more information.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/jakopako/signin/internal/browser"
	"github.com/jakopako/signin/internal/config"
	"github.com/jakopako/signin/internal/flow"
	"github.com/jakopako/signin/internal/log"
	"github.com/jakopako/signin/internal/notify"
	"github.com/jakopako/signin/internal/page"
	"github.com/jakopako/signin/internal/scheduler"
	"github.com/jakopako/signin/internal/site"
	"github.com/jakopako/signin/internal/status"
	"github.com/jakopako/signin/internal/store"
	"github.com/olekukonko/tablewriter"
)

var version = "dev"

const name = "signin"

const (
	schedulerOrigin = "scheduler"
	pageOrigin      = "page"
)

type VersionFlag string

func (v VersionFlag) Decode(_ *kong.DecodeContext) error { return nil }
func (v VersionFlag) IsBool() bool                       { return true }
func (v VersionFlag) BeforeApply(app *kong.Kong, vars kong.Vars) error {
	fmt.Println(vars["version"])
	app.Exit(0)
	return nil
}

type cli struct {
	Version VersionFlag `short:"v" long:"version" help:"Print the version and exit."`
	Debug   bool        `short:"d" long:"debug" help:"Set log level to 'debug' and store screenshots of every processed tab."`

	Completion CompletionCmd `cmd:"" help:"Generate autocompletion file."`

	Run    RunCmd    `cmd:"" help:"Run one check-in cycle over all sites that did not run today."`
	Daemon DaemonCmd `cmd:"" help:"Run a check-in cycle now and then periodically until interrupted."`
	Check  CheckCmd  `cmd:"" help:"Run a site's flow against a saved html file, without a browser."`
	List   ListCmd   `cmd:"" help:"List the configured sites."`
	Status StatusCmd `cmd:"" help:"Show the last run and last result of every site."`
}

// env bundles everything a cycle needs. close must be called when done.
type env struct {
	config    *config.Config
	opener    store.Opener
	browser   *browser.Browser
	scheduler *scheduler.Scheduler
}

func newEnv(ctx context.Context, configPath string, opts func(*scheduler.Options)) (*env, error) {
	c, err := config.NewConfig(configPath)
	if err != nil {
		return nil, err
	}
	opener, err := store.New(&c.Store)
	if err != nil {
		return nil, err
	}
	notifier, err := notify.NewNotifier(&c.Notifier)
	if err != nil {
		opener.Close()
		return nil, err
	}
	b, err := browser.New(ctx, &c.Browser, c.Sites, opener.Handle(pageOrigin))
	if err != nil {
		opener.Close()
		return nil, err
	}
	o := scheduler.OptionsFromConfig(&c.Scheduler)
	if opts != nil {
		opts(&o)
	}
	s := scheduler.New(scheduler.Capabilities{
		Store:    opener.Handle(schedulerOrigin),
		Opener:   b,
		Notifier: notifier,
	}, o)
	return &env{config: c, opener: opener, browser: b, scheduler: s}, nil
}

// close shuts the environment down. Tabs still running are waited for
// unless ctx is done.
func (e *env) close(ctx context.Context) {
	e.browser.Close(ctx)
	if err := e.opener.Close(); err != nil {
		slog.Warn(fmt.Sprintf("error while closing store: %v", err))
	}
}

// signalContext is cancelled by the first interrupt. Any further
// interrupt terminates the process the default way.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	context.AfterFunc(ctx, stop)
	return ctx, stop
}

type RunCmd struct {
	Config  string `short:"c" default:"./config.yaml" help:"The location of the configuration file." type:"path"`
	Name    string `short:"n" help:"The id of the site to be run, if only one of the configured ones should be run."`
	Force   bool   `short:"f" help:"Run sites even if they already ran today."`
	Summary bool   `short:"s" help:"Print a summary table after the cycle."`
}

func (rc *RunCmd) Run() error {
	ctx, stop := signalContext()
	defer stop()

	e, err := newEnv(ctx, rc.Config, func(o *scheduler.Options) {
		o.Force = rc.Force
		o.Only = rc.Name
	})
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	defer e.close(ctx)

	if rc.Name != "" {
		if _, ok := site.Find(e.config.Sites, rc.Name); !ok {
			err := fmt.Errorf("no site found for id %s", rc.Name)
			slog.Error(err.Error())
			return err
		}
	}

	outcomes := e.scheduler.RunCycle(ctx, e.config.Sites)
	if rc.Summary {
		printSummary(outcomes)
	}
	return nil
}

func printSummary(outcomes []scheduler.Outcome) {
	slog.Info("printing cycle summary")
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Site", "State", "Success", "Message", "Duration")
	for _, o := range outcomes {
		success, message := "", o.Reason
		if o.State == scheduler.StateRecorded {
			success = fmt.Sprintf("%v", o.Result.Success)
			message = o.Result.Message
		}
		table.Append([]string{o.Name, string(o.State), success, message, o.Duration.Round(time.Millisecond).String()})
	}
	table.Render()
}

type DaemonCmd struct {
	Config   string        `short:"c" default:"./config.yaml" help:"The location of the configuration file." type:"path"`
	Interval time.Duration `short:"i" help:"Time between two cycles. Overrides the configured interval."`
}

func (dc *DaemonCmd) Run() error {
	ctx, stop := signalContext()
	defer stop()

	e, err := newEnv(ctx, dc.Config, nil)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	defer e.close(ctx)

	interval := e.config.Scheduler.Interval
	if dc.Interval > 0 {
		interval = dc.Interval
	}
	slog.Info(fmt.Sprintf("starting daemon with interval %v", interval))
	if err := e.scheduler.Daemon(ctx, e.config.Sites, interval); err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	return nil
}

type CheckCmd struct {
	Config string `short:"c" default:"./config.yaml" help:"The location of the configuration file." type:"path"`
	Site   string `short:"s" help:"The id of the site whose flow should be run." required:""`
	File   string `short:"f" help:"The html file to run the flow against." required:"" type:"existingfile"`
	URL    string `short:"u" help:"The url the page pretends to have. Defaults to the site's entry url."`
}

func (cc *CheckCmd) Run() error {
	c, err := config.NewConfig(cc.Config)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	d, ok := site.Find(c.Sites, cc.Site)
	if !ok {
		err := fmt.Errorf("no site found for id %s", cc.Site)
		slog.Error(err.Error())
		return err
	}
	html, err := os.ReadFile(cc.File)
	if err != nil {
		slog.Error(fmt.Sprintf("error reading html file: %v", err))
		return err
	}
	u := cc.URL
	if u == "" {
		u = d.EntryURL
	}
	p, err := page.NewDocument(u, string(html))
	if err != nil {
		slog.Error(err.Error())
		return err
	}

	logger := slog.With(slog.String("site", d.ID))
	// waits on a static page can only time out
	steps := shortenWaits(d.Steps, time.Second)
	r := flow.Run(log.ContextWithLogger(context.Background(), logger), p, steps)
	fmt.Printf("success: %v\nmessage: %s\n", r.Success, r.Message)
	if len(p.Clicked()) > 0 {
		fmt.Printf("clicked: %s\n", strings.Join(p.Clicked(), ", "))
	}
	return nil
}

func shortenWaits(steps flow.Steps, limit time.Duration) flow.Steps {
	if steps == nil {
		return nil
	}
	out := make(flow.Steps, 0, len(steps))
	for _, st := range steps {
		switch s := st.(type) {
		case flow.Wait:
			if s.TimeoutMS <= 0 || time.Duration(s.TimeoutMS)*time.Millisecond > limit {
				s.TimeoutMS = int(limit.Milliseconds())
			}
			st = s
		case flow.Delay:
			st = flow.Delay{}
		case flow.Branch:
			s.IfTrue = shortenWaits(s.IfTrue, limit)
			s.IfFalse = shortenWaits(s.IfFalse, limit)
			st = s
		}
		out = append(out, st)
	}
	return out
}

type ListCmd struct {
	Config     string `short:"c" default:"./config.yaml" help:"The location of the configuration file." type:"path"`
	Completion bool   `short:"C" help:"If set to true, only the site ids are printed and errors are not printed."`
}

func (lc *ListCmd) Run() error {
	c, err := config.NewConfig(lc.Config)
	if err != nil {
		if lc.Completion {
			return nil
		}
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}

	sites := slices.Clone(c.Sites)
	slices.SortFunc(sites, func(a, b site.Definition) int { return strings.Compare(a.ID, b.ID) })
	if lc.Completion {
		for _, d := range sites {
			fmt.Println(d.ID)
		}
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Name", "Active", "Entry URL")
	for _, d := range sites {
		table.Append([]string{d.ID, d.DisplayName(), fmt.Sprintf("%v", d.IsActive()), d.EntryURL})
	}
	table.Render()
	return nil
}

type StatusCmd struct {
	Config string `short:"c" default:"./config.yaml" help:"The location of the configuration file." type:"path"`
}

func (sc *StatusCmd) Run() error {
	c, err := config.NewConfig(sc.Config)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	opener, err := store.New(&c.Store)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	defer opener.Close()
	s := opener.Handle(schedulerOrigin)

	ctx := context.Background()
	now := time.Now()
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Site", "Last run", "Today", "Last result")
	for _, d := range c.Sites {
		lastRun, today := "never", "no"
		last, ok, err := status.LastRun(ctx, s, d.ID)
		if err != nil {
			return errors.Join(fmt.Errorf("error reading run record of %s", d.ID), err)
		}
		if ok {
			lastRun = last.Local().Format(time.DateTime)
			if scheduler.IsSameDay(last, now) {
				today = "yes"
			}
		}
		result := "-"
		if r, ok, err := status.LastResult(ctx, s, d.ID); err == nil && ok {
			result = fmt.Sprintf("%v: %s", r.Success, r.Message)
		}
		table.Append([]string{d.ID, lastRun, today, result})
	}
	table.Render()
	return nil
}

func getVersion() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if ok {
		if buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
			return buildInfo.Main.Version
		}
	}
	return version
}

func main() {
	// a missing .env file is fine, variables may come from the environment
	_ = godotenv.Load()

	if isCompletionRequest(os.Args[1:]) {
		root := completionCommand(newParser().Model.Node)
		root.SetArgs(os.Args[1:])
		if err := root.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}

	cli := cli{
		Version: VersionFlag(getVersion()),
	}

	ctx := kong.Parse(&cli,
		kong.Name(name),
		kong.Vars{
			"version": string(cli.Version),
		})

	log.Debug = cli.Debug
	log.InitializeDefaultLogger()

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
