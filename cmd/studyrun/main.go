package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mbertin/studyrun/internal/config"
	"github.com/mbertin/studyrun/internal/study"
	"github.com/mbertin/studyrun/internal/watch"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		runValidate(os.Args[2:])
	case "studies":
		runStudies(os.Args[2:])
	case "cases":
		runCases(os.Args[2:])
	case "dump":
		runDump(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "version":
		fmt.Printf("studyrun %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`studyrun - studymanager configuration tool

usage: studyrun <command> [options]

commands:
  validate <smgr.xml>            check structure and report deprecated options
  studies <smgr.xml>             list enabled study labels
  cases <smgr.xml> <study> [--json]
                                 print the case records of a study
  dump <smgr.xml>                write the parsed document to stdout
  watch <smgr.xml>               reload the file on change until interrupted
  version                        print version`)
}

// loadToolConfig reads studyrun.yaml next to the study file when present.
func loadToolConfig(smgrPath string) *config.Config {
	path := filepath.Join(filepath.Dir(smgrPath), "studyrun.yaml")
	if _, err := os.Stat(path); err != nil {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func loadParser(path string, cfg *config.Config) *study.Parser {
	p, err := study.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", path, err)
		os.Exit(1)
	}
	if cfg.Repository != "" {
		p.SetRepository(cfg.Repository)
	}
	if cfg.Destination != "" {
		p.SetDestination(cfg.Destination)
	}
	return p
}

func runValidate(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: studyrun validate <smgr.xml>")
		os.Exit(1)
	}

	cfg := loadToolConfig(args[0])
	p := loadParser(args[0], cfg)

	labels, err := p.StudyLabels()
	if err != nil {
		fmt.Fprintf(os.Stderr, "validate: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.WalkTimeoutSec)*time.Second)
	defer cancel()

	failed := false
	for _, label := range labels {
		records, err := p.CaseRecords(label)
		if err != nil {
			fmt.Fprintf(os.Stderr, "study %q: %v\n", label, err)
			failed = true
			continue
		}
		for _, rec := range records {
			if _, err := p.CompareDirectives(rec.Node); err != nil {
				fmt.Fprintf(os.Stderr, "study %q case %q: %v\n", label, rec.Label, err)
				failed = true
			}
			if _, err := p.PreproDirectives(rec.Node); err != nil {
				fmt.Fprintf(os.Stderr, "study %q case %q: %v\n", label, rec.Label, err)
				failed = true
			}
			if _, err := p.ScriptDirectives(rec.Node); err != nil {
				fmt.Fprintf(os.Stderr, "study %q case %q: %v\n", label, rec.Label, err)
				failed = true
			}
		}
		if _, err := p.PostproDirectives(label); err != nil {
			fmt.Fprintf(os.Stderr, "study %q: %v\n", label, err)
			failed = true
		}
		if _, err := p.MeasurementFiles(ctx, label); err != nil {
			fmt.Fprintf(os.Stderr, "study %q: %v\n", label, err)
			failed = true
		}
	}

	for _, d := range p.Deprecations() {
		fmt.Fprintf(os.Stderr, "warning: %s (update the file to drop them)\n", d)
	}

	if failed {
		os.Exit(1)
	}
	fmt.Printf("%s: ok (%d studies)\n", args[0], len(labels))
}

func runStudies(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: studyrun studies <smgr.xml>")
		os.Exit(1)
	}

	p := loadParser(args[0], loadToolConfig(args[0]))
	labels, err := p.StudyLabels()
	if err != nil {
		fmt.Fprintf(os.Stderr, "studies: %v\n", err)
		os.Exit(1)
	}
	for _, label := range labels {
		fmt.Println(label)
	}
}

type caseJSON struct {
	Label  string `json:"label"`
	RunID  string `json:"run_id"`
	NProcs string `json:"n_procs,omitempty"`
	// Pointer so a genuine zero survives and an unset time is omitted.
	ExpectedTime *int     `json:"expected_time_min,omitempty"`
	Depends      string   `json:"depends,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

func caseJSONRecords(records []study.CaseRecord) []caseJSON {
	out := make([]caseJSON, 0, len(records))
	for _, rec := range records {
		c := caseJSON{
			Label:   rec.Label,
			RunID:   rec.RunID,
			NProcs:  rec.NProcs,
			Depends: rec.Depends,
			Tags:    rec.Tags,
		}
		if rec.ExpectedTime != study.ExpectedTimeUnset {
			minutes := rec.ExpectedTime
			c.ExpectedTime = &minutes
		}
		out = append(out, c)
	}
	return out
}

func runCases(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: studyrun cases <smgr.xml> <study> [--json]")
		os.Exit(1)
	}
	jsonOutput := false
	for _, a := range args[2:] {
		switch a {
		case "--json":
			jsonOutput = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: studyrun cases <smgr.xml> <study> [--json]\n", a)
			os.Exit(1)
		}
	}

	p := loadParser(args[0], loadToolConfig(args[0]))
	records, err := p.CaseRecords(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "cases: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(caseJSONRecords(records)); err != nil {
			fmt.Fprintf(os.Stderr, "cases: %v\n", err)
			os.Exit(1)
		}
		return
	}

	for _, rec := range records {
		line := fmt.Sprintf("%s/%s", rec.Label, rec.RunID)
		if rec.NProcs != "" {
			line += fmt.Sprintf(" n_procs=%s", rec.NProcs)
		}
		if rec.ExpectedTime != study.ExpectedTimeUnset {
			line += fmt.Sprintf(" expected=%dmin", rec.ExpectedTime)
		}
		if rec.Depends != "" {
			line += fmt.Sprintf(" depends=%s", rec.Depends)
		}
		if len(rec.Tags) > 0 {
			line += fmt.Sprintf(" tags=%v", rec.Tags)
		}
		fmt.Println(line)
	}
}

func runDump(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: studyrun dump <smgr.xml>")
		os.Exit(1)
	}

	p := loadParser(args[0], loadToolConfig(args[0]))
	content, err := p.Write()
	if err != nil {
		fmt.Fprintf(os.Stderr, "dump: %v\n", err)
		os.Exit(1)
	}
	os.Stdout.Write(content)
}

func runWatch(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: studyrun watch <smgr.xml>")
		os.Exit(1)
	}

	cfg := loadToolConfig(args[0])
	logger := log.New(os.Stderr, cfg.LogPrefix+" ", log.LstdFlags)

	r, err := watch.New(args[0], time.Duration(cfg.DebounceMs)*time.Millisecond, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		os.Exit(1)
	}
	if err := r.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		os.Exit(1)
	}
	logger.Printf("watching %s", args[0])

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	r.Stop()
}
