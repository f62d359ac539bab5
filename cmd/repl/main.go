package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sirupsen/logrus"

	"github.com/prologkit/warren/config"
	"github.com/prologkit/warren/solver"
	"github.com/prologkit/warren/trace"
	"github.com/prologkit/warren/wam"
)

var (
	configFile   = flag.String("config", "", "TOML configuration file")
	consultFiles = flag.String("consult-files", "", "Comma-separated files to consult, in order")
	factFiles    = flag.String("facts", "", "Comma-separated YAML fact files to load")
	query        = flag.String("query", "", "Initial query to issue")
	interactive  = flag.Bool("interactive", true, "Whether the REPL is interactive")
	traceFile    = flag.String("trace", "", "File to record machine steps, overriding the config")
)

type inputState int

const (
	readingQuery inputState = iota
	enumerateSolutions
)

type repl struct {
	log      *logrus.Logger
	solver   *solver.Solver
	readline *readline.Instance
	out      io.Writer
}

func main() {
	flag.Parse()
	log := logrus.New()
	if !*interactive && *query == "" {
		log.Fatal("No query provided for non-interactive REPL")
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}
	level, _ := cfg.LogLevel()
	log.SetLevel(level)

	obs, closer, err := cfg.OpenTrace()
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := closer.Close(); err != nil {
			log.WithError(err).Warn("closing trace")
		}
	}()
	if obs == nil && log.IsLevelEnabled(logrus.TraceLevel) {
		obs = trace.Logrus(log)
	}

	r := &repl{log: log, solver: solver.New(), out: os.Stdout}
	r.solver.SetLogger(log)
	r.solver.Configure = func(m *wam.Machine) {
		cfg.Apply(m)
		m.Observer = obs
	}
	r.consult(cfg)

	if !*interactive {
		ok := r.runQuery(*query)
		if !ok {
			closer.Close()
			os.Exit(1)
		}
		return
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 "?- ",
		HistoryFile:            filepath.Join(os.TempDir(), "warren-history"),
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer rl.Close()
	r.readline = rl
	r.out = rl.Stdout()
	log.SetOutput(rl.Stderr())

	r.mainLoop()
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			return nil, err
		}
	}
	// Paths given in flags are relative to the working dir.
	for _, file := range splitList(*consultFiles) {
		cfg.Consult.Files = append(cfg.Consult.Files, absPath(file))
	}
	for _, file := range splitList(*factFiles) {
		cfg.Consult.Facts = append(cfg.Consult.Facts, absPath(file))
	}
	if *traceFile != "" {
		cfg.Trace.File = absPath(*traceFile)
	}
	return cfg, cfg.Validate()
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func (r *repl) consult(cfg *config.Config) {
	// Facts have no calls, so they are loaded first to link programs using them.
	for _, file := range cfg.FactFiles() {
		if err := r.solver.LoadFactsFile(file); err != nil {
			r.log.WithError(err).WithField("file", file).Warn("loading facts failed")
			continue
		}
		r.log.WithField("file", file).Info("loaded facts")
	}
	for _, file := range cfg.ConsultFiles() {
		if err := r.solver.ConsultFile(file); err != nil {
			r.log.WithError(err).WithField("file", file).Warn("consult failed")
			continue
		}
		r.log.WithField("file", file).Info("consulted")
	}
}

// runQuery prints all solutions of a query, returning false on error.
func (r *repl) runQuery(text string) bool {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	sols, err := r.solver.Query(ctx, text)
	if err != nil {
		r.printError(err)
		return false
	}
	hasSolutions := false
	for sols.Next() {
		hasSolutions = true
		r.printSolution(sols.Solution())
	}
	if err := sols.Err(); err != nil {
		r.printError(err)
		return false
	}
	r.printResult(hasSolutions)
	return true
}

func (r *repl) mainLoop() {
	state := readingQuery
	var sols *wam.Solutions
	var stop func()
	text := *query
	if text != "" {
		state = enumerateSolutions
		sols, stop = r.startQuery(text)
	}
	for {
		switch state {
		default:
			r.log.Errorf("Invalid state: %v", state)
			return
		case readingQuery:
			var isClose bool
			text, isClose = r.readQuery()
			if isClose {
				return
			}
			if text == ":stats." {
				r.printStats()
				continue
			}
			sols, stop = r.startQuery(text)
			state = enumerateSolutions
		case enumerateSolutions:
			if sols != nil {
				r.enumerate(sols)
			}
			stop()
			state = readingQuery
		}
	}
}

// startQuery prepares a query that may be interrupted with Ctrl-C. The stop
// function releases the signal handler.
func (r *repl) startQuery(text string) (*wam.Solutions, func()) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	sols, err := r.solver.Query(ctx, text)
	if err != nil {
		r.printError(err)
		return nil, stop
	}
	return sols, stop
}

func (r *repl) enumerate(sols *wam.Solutions) {
	for {
		if !sols.Next() {
			if err := sols.Err(); err != nil {
				r.printError(err)
				return
			}
			r.printResult(false)
			return
		}
		sol := sols.Solution()
		if len(sol) == 0 {
			// Nothing else to show.
			r.printResult(true)
			return
		}
		r.printSolution(sol)
		if more := r.readCommand(); !more {
			r.printResult(true)
			return
		}
	}
}

func (r *repl) readQuery() (string, bool) {
	r.readline.SetPrompt("?- ")
	var lines []string
	for {
		line, err := r.readline.Readline()
		if err == readline.ErrInterrupt {
			lines = nil
			r.readline.SetPrompt("?- ")
			continue
		}
		if err != nil {
			return "", true
		}
		line = strings.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		lines = append(lines, line)
		if !strings.HasSuffix(line, ".") {
			r.readline.SetPrompt("|  ")
			continue
		}
		break
	}
	text := strings.Join(lines, " ")
	if err := r.readline.SaveHistory(text); err != nil {
		r.log.WithError(err).Debug("saving history")
	}
	return text, false
}

// readCommand asks whether to look for more solutions.
func (r *repl) readCommand() bool {
	r.readline.SetPrompt("")
	defer r.readline.SetPrompt("?- ")
	for {
		line, err := r.readline.Readline()
		if err != nil {
			return false
		}
		switch strings.TrimSpace(line) {
		case ";":
			return true
		case ".", "":
			return false
		}
		fmt.Fprintln(r.out, "Expecting '.' or ';'")
	}
}

func (r *repl) printSolution(sol wam.Solution) {
	if len(sol) == 0 {
		return
	}
	fmt.Fprintln(r.out, sol)
}

func (r *repl) printResult(ok bool) {
	if ok {
		fmt.Fprintln(r.out, "Yes.")
	} else {
		fmt.Fprintln(r.out, "No.")
	}
}

func (r *repl) printError(err error) {
	fmt.Fprintf(r.out, "Error: %v\n", err)
}

func (r *repl) printStats() {
	functors, vars := r.solver.Program.Interner.Len()
	procs := r.solver.Program.Procedures()
	fmt.Fprintf(r.out, "functors: %d, vars: %d, procedures: %d\n", functors, vars, len(procs))
}
