// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package scan is scan subcommand to scan module dependencies of
// translation units.
package scan

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/maruel/subcommands"
	"golang.org/x/sync/errgroup"

	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/modscan/depsformat"
	"go.chromium.org/infra/build/modscan/o11y/clog"
	"go.chromium.org/infra/build/modscan/osfs"
	"go.chromium.org/infra/build/modscan/pptrace"
	"go.chromium.org/infra/build/modscan/scanconfig"
	"go.chromium.org/infra/build/modscan/scandeps"
	"go.chromium.org/infra/build/modscan/scandeps/moduleoutput"
	"go.chromium.org/infra/build/modscan/sync/semaphore"
)

const usage = `scan module dependencies of translation units

 $ modscan scan -config scan.star [-flag key=value]... \
     [-format full|make|p1689] [-o out.json] <trace>...

<trace> is a preprocessing trace of a translation unit,
in json, optionally compressed with zstd.
`

// Cmd returns the Command for the `scan` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "scan [-config <file>] <trace>...",
		ShortDesc: "scan module dependencies",
		LongDesc:  usage,
		CommandRun: func() subcommands.CommandRun {
			c := &run{}
			c.init()
			return c
		},
	}
}

type run struct {
	subcommands.CommandRunBase

	configFile     string
	flags          keyValueFlag
	format         string
	moduleFilesDir string
	jobs           int
	output         string
	useOSFS        bool
}

func (c *run) init() {
	c.flags = make(keyValueFlag)
	c.Flags.StringVar(&c.configFile, "config", "", "starlark config file. see scanconfig package")
	c.Flags.Var(c.flags, "flag", "key=value flag passed to the config as ctx.flags. may be repeated")
	c.Flags.StringVar(&c.format, "format", "", `output format "full", "make" or "p1689". overrides config`)
	c.Flags.StringVar(&c.moduleFilesDir, "module-files-dir", "", "directory to put explicit module outputs. overrides config")
	c.Flags.IntVar(&c.jobs, "j", runtime.NumCPU(), "number of translation units to scan in parallel")
	c.Flags.StringVar(&c.output, "o", "", "output file. stdout if empty")
	c.Flags.BoolVar(&c.useOSFS, "osfs", false, "check files on the local disk, instead of files recorded in traces")
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	err := c.run(ctx, args)
	if err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			fmt.Fprintf(os.Stderr, "%v\n%s\n", err, usage)
		case errors.Is(err, scandeps.ErrInconsistentState):
			fmt.Fprintf(os.Stderr, "Error: inconsistent module state: %v\n", err)
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func (c *run) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("no trace: %w", flag.ErrHelp)
	}
	cfg, err := c.loadConfig(ctx)
	if err != nil {
		return err
	}
	started := time.Now()
	fsys := osfs.New("scan")
	s := scandeps.New(cfg.Options, moduleoutput.Controller{Dir: cfg.ModuleFilesDir})

	sema := semaphore.New("scan", c.jobs)
	reports := make([]*scandeps.Report, len(args))
	eg, ectx := errgroup.WithContext(ctx)
	for i, fname := range args {
		eg.Go(func() error {
			return sema.Do(ectx, func(ctx context.Context) error {
				spanID := uuid.New().String()
				ctx = clog.NewSpan(ctx, spanID, spanID, map[string]string{
					"trace": fname,
				})
				r, err := c.scan(ctx, s, fsys, fname)
				if err != nil {
					clog.Errorf(ctx, "failed to scan in slot %d: %v", semaphore.Slot(ctx), err)
					return fmt.Errorf("scan %s: %w", fname, err)
				}
				reports[i] = r
				return nil
			})
		})
	}
	err = eg.Wait()
	if err != nil {
		return err
	}
	log.Infof("scanned %d translation units in %s with %d slots: %s", sema.NumRequests(), time.Since(started), sema.Capacity(), fsys.Stats())

	var buf bytes.Buffer
	err = depsformat.Write(&buf, cfg.Options.Format, reports)
	if err != nil {
		return err
	}
	if c.output == "" {
		_, err = os.Stdout.Write(buf.Bytes())
		return err
	}
	return fsys.WriteFile(ctx, c.output, buf.Bytes(), 0644)
}

// loadConfig loads the config file, and applies flag overrides.
func (c *run) loadConfig(ctx context.Context) (*scanconfig.Config, error) {
	cfg := &scanconfig.Config{
		Options: scandeps.Options{
			Optimize: scandeps.OptimizeAll,
			Format:   scandeps.FormatFull,
		},
	}
	if c.configFile != "" {
		var err error
		cfg, err = scanconfig.Load(ctx, c.configFile, c.flags)
		if err != nil {
			return nil, err
		}
	}
	if c.format != "" {
		f, err := scandeps.ParseFormat(c.format)
		if err != nil {
			return nil, fmt.Errorf("bad -format: %w", err)
		}
		cfg.Options.Format = f
	}
	if c.moduleFilesDir != "" {
		cfg.ModuleFilesDir = c.moduleFilesDir
	}
	if cfg.ModuleFilesDir == "" {
		cfg.ModuleFilesDir = "modules"
	}
	return cfg, nil
}

func (c *run) scan(ctx context.Context, s *scandeps.ScanDeps, fsys *osfs.OSFS, fname string) (*scandeps.Report, error) {
	t, err := pptrace.Load(ctx, fsys, fname)
	if err != nil {
		return nil, err
	}
	var sfs scandeps.FileSystem
	if c.useOSFS {
		sfs = fsys.ScanFS(ctx, t.WorkingDir)
	}
	src, err := pptrace.NewSource(t, sfs)
	if err != nil {
		return nil, err
	}
	return s.Scan(ctx, src)
}

// keyValueFlag is a flag.Value of repeated key=value.
type keyValueFlag map[string]string

func (f keyValueFlag) String() string {
	var kvs []string
	for k, v := range f {
		kvs = append(kvs, k+"="+v)
	}
	sort.Strings(kvs)
	return strings.Join(kvs, ",")
}

func (f keyValueFlag) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return fmt.Errorf("want key=value, got %q", s)
	}
	f[k] = v
	return nil
}
