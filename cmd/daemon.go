package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/theirongolddev/cclog/internal/catalog"
	"github.com/theirongolddev/cclog/internal/cli"
	"github.com/theirongolddev/cclog/internal/config"
	"github.com/theirongolddev/cclog/internal/daemon"

	"github.com/spf13/cobra"
)

var (
	flagDaemonAddr         string
	flagDaemonInterval     time.Duration
	flagDaemonDetach       bool
	flagDaemonPIDFile      string
	flagDaemonLogFile      string
	flagDaemonEventsBuffer int
	flagDaemonChild        bool
	flagDaemonNoWatch      bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Keep project caches fresh in the background",
	Long: "Watch the projects directory for transcript writes and poll on an interval,\n" +
		"refreshing every project cache and the catalog. Status and change events are\n" +
		"served over HTTP at /v1/status, /v1/events and /v1/stream (SSE).",
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon process and refresh status",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStatus,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStop,
}

func init() {
	f := daemonCmd.PersistentFlags()
	f.StringVar(&flagDaemonAddr, "addr", "", "HTTP listen address (default from config)")
	f.DurationVar(&flagDaemonInterval, "interval", 0, "Polling interval (default from config)")
	f.StringVar(&flagDaemonPIDFile, "pid-file", filepath.Join(catalog.CacheDir(), "cclogd.pid"), "PID file path")
	f.StringVar(&flagDaemonLogFile, "log-file", filepath.Join(catalog.CacheDir(), "cclogd.log"), "Log file for detached mode")
	f.IntVar(&flagDaemonEventsBuffer, "events-buffer", 200, "Events kept in memory for /v1/events")

	daemonCmd.Flags().BoolVar(&flagDaemonDetach, "detach", false, "Run in the background")
	daemonCmd.Flags().BoolVar(&flagDaemonNoWatch, "no-watch", false, "Poll only; ignore file change notifications")
	daemonCmd.Flags().BoolVar(&flagDaemonChild, "child", false, "Internal: detached child process")
	_ = daemonCmd.Flags().MarkHidden("child")

	daemonCmd.AddCommand(daemonStatusCmd, daemonStopCmd)
	rootCmd.AddCommand(daemonCmd)
}

// daemonDefaults fills unset daemon flags from the [daemon] config section.
func daemonDefaults() {
	if flagDaemonAddr == "" {
		flagDaemonAddr = cfg.Daemon.Addr
	}
	if flagDaemonAddr == "" {
		flagDaemonAddr = config.DefaultConfig().Daemon.Addr
	}
	if flagDaemonInterval <= 0 {
		flagDaemonInterval = time.Duration(cfg.Daemon.IntervalSeconds) * time.Second
	}
}

func runDaemon(_ *cobra.Command, _ []string) error {
	daemonDefaults()
	switch {
	case flagDaemonDetach && flagDaemonChild:
		return errors.New("--detach and --child are exclusive")
	case flagDaemonDetach:
		return spawnDaemon()
	default:
		return serveDaemon()
	}
}

// spawnDaemon re-executes the current command line as a detached child with
// its output appended to the log file.
func spawnDaemon() error {
	pf := pidFile(flagDaemonPIDFile)
	if pid, running := pf.running(); running {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	for _, dir := range []string{filepath.Dir(flagDaemonPIDFile), filepath.Dir(flagDaemonLogFile)} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create daemon directory: %w", err)
		}
	}

	//nolint:gosec // log path is chosen by the local user
	logf, err := os.OpenFile(flagDaemonLogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open daemon log: %w", err)
	}
	defer func() { _ = logf.Close() }()

	child := exec.Command(exe, append(withoutDetach(os.Args[1:]), "--child")...) //nolint:gosec // re-exec of ourselves
	child.Stdout = logf
	child.Stderr = logf
	child.Env = os.Environ()
	if err := child.Start(); err != nil {
		return fmt.Errorf("start detached daemon: %w", err)
	}

	fmt.Printf("  Started daemon (pid %d)\n", child.Process.Pid)
	fmt.Printf("  Status: cclog daemon status\n")
	fmt.Printf("  API:    http://%s/v1/status\n", flagDaemonAddr)
	fmt.Printf("  Log:    %s\n", flagDaemonLogFile)
	return nil
}

func serveDaemon() error {
	pf := pidFile(flagDaemonPIDFile)
	if pid, running := pf.running(); running {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}
	if err := pf.write(daemonState{
		PID:       os.Getpid(),
		Addr:      flagDaemonAddr,
		StartedAt: time.Now(),
		DataDir:   flagDataDir,
		Watching:  !flagDaemonNoWatch,
	}); err != nil {
		return err
	}
	defer pf.remove()

	var cat *catalog.Catalog
	if useCache() {
		if c, err := openCatalog(); err != nil {
			logger.Warn("catalog unavailable, caches only", "error", err)
		} else {
			cat = c
			defer func() { _ = cat.Close() }()
		}
	}

	svc := daemon.New(daemon.Config{
		ProjectsDir:  flagDataDir,
		Range:        rng,
		UseCache:     useCache(),
		Store:        storeOptions(),
		Workers:      config.Workers(cfg),
		Interval:     flagDaemonInterval,
		Addr:         flagDaemonAddr,
		EventsBuffer: flagDaemonEventsBuffer,
		Watch:        !flagDaemonNoWatch,
		Catalog:      cat,
		Logger:       logger,
	})

	fmt.Printf("  cclog daemon listening on http://%s\n", flagDaemonAddr)
	fmt.Printf("  Refreshing %s every %s", flagDataDir, flagDaemonInterval)
	if !flagDaemonNoWatch {
		fmt.Print(" and on change")
	}
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runDaemonStatus(cmd *cobra.Command, _ []string) error {
	daemonDefaults()
	pf := pidFile(flagDaemonPIDFile)
	pid, running := pf.running()
	if !running {
		fmt.Println("  Daemon: not running")
		return nil
	}

	addr := flagDaemonAddr
	if st, err := pf.state(); err == nil && st.Addr != "" {
		addr = st.Addr
	}

	rows := [][]string{
		{"PID", fmt.Sprint(pid)},
		{"Address", "http://" + addr},
	}
	st, err := fetchStatus(cmd.Context(), addr)
	if err != nil {
		rows = append(rows, []string{"API", cli.RenderWarn(err.Error())})
	} else {
		lastPoll := "pending"
		if !st.LastPollAt.IsZero() {
			lastPoll = cli.FormatAge(st.LastPollAt)
		}
		rows = append(rows,
			[]string{"Projects dir", st.ProjectsDir},
			[]string{"Watching", fmt.Sprint(st.Watching)},
			[]string{"Last refresh", fmt.Sprintf("%s (%dms)", lastPoll, st.LastDurationMs)},
			[]string{"Refreshes", cli.FormatNumber(st.PollCount)},
			[]string{"---"},
			[]string{"Projects", fmt.Sprintf("%d (%d failed)", st.Summary.Projects, st.Summary.Failed)},
			[]string{"Sessions", cli.FormatNumber(int64(st.Summary.Sessions))},
			[]string{"Messages", cli.FormatNumber(int64(st.Summary.Messages))},
			[]string{"Tokens", cli.FormatTokens(st.Summary.Tokens)},
			[]string{"Cached files", cli.FormatNumber(int64(st.Summary.CachedFiles))},
		)
		if st.LastError != "" {
			rows = append(rows, []string{"Last error", cli.RenderWarn(st.LastError)})
		}
	}

	fmt.Print(cli.RenderTable(cli.Table{Title: "Daemon", Rows: rows}))
	return nil
}

func fetchStatus(ctx context.Context, addr string) (daemon.Status, error) {
	var st daemon.Status
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/v1/status", nil)
	if err != nil {
		return st, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return st, fmt.Errorf("unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("malformed status: %w", err)
	}
	return st, nil
}

func runDaemonStop(_ *cobra.Command, _ []string) error {
	pf := pidFile(flagDaemonPIDFile)
	pid, running := pf.running()
	if !running {
		return errors.New("daemon is not running")
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find daemon process: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal daemon process: %w", err)
	}

	tick := time.NewTicker(150 * time.Millisecond)
	defer tick.Stop()
	timeout := time.After(8 * time.Second)
	for {
		select {
		case <-tick.C:
			if !processAlive(pid) {
				pf.remove()
				fmt.Printf("  Stopped daemon (pid %d)\n", pid)
				return nil
			}
		case <-timeout:
			return fmt.Errorf("daemon (pid %d) did not exit in time", pid)
		}
	}
}

// withoutDetach drops --detach so the child runs in the foreground.
func withoutDetach(args []string) []string {
	return slices.DeleteFunc(slices.Clone(args), func(a string) bool {
		return a == "--detach" || strings.HasPrefix(a, "--detach=")
	})
}
