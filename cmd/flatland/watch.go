package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/flatland-lang/flatland"
	"github.com/fsnotify/fsnotify"
)

const watchSettle = 100 * time.Millisecond

// cmdWatch re-runs a program whenever it or a library file changes and prints
// a one line summary of each run
func cmdWatch(args []string) int {
	fs, common := newFlagSet("watch")
	against := fs.String("against", "", "program to score every run against")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		errorPrintf("usage: %s watch [flags] <file>\n", appName)
		return 2
	}
	fl, err := common.load()
	if err != nil {
		errorPrintf("%v\n", err)
		return 1
	}
	file, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		errorPrintf("%v\n", err)
		return 1
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		errorPrintf("%v\n", err)
		return 1
	}
	defer w.Close()
	dirs := []string{filepath.Dir(file)}
	if lib, err := filepath.Abs(fl.Config().LibraryDir); err == nil {
		if st, err := os.Stat(lib); err == nil && st.IsDir() && lib != dirs[0] {
			dirs = append(dirs, lib)
		}
	}
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			errorPrintf("watching %s: %v\n", d, err)
			return 1
		}
	}

	watchRun(fl, file, *against)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	var settle <-chan time.Time
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return 0
			}
			if !relevant(ev, file) {
				continue
			}
			fl.Logger().DebugCat(flatland.CatIO, "%s %s", ev.Op, ev.Name)
			settle = time.After(watchSettle)
		case err, ok := <-w.Errors:
			if !ok {
				return 0
			}
			errorPrintf("watch: %v\n", err)
		case <-settle:
			settle = nil
			watchRun(fl, file, *against)
		case <-sig:
			return 0
		}
	}
}

// relevant keeps writes to the watched file and to any program file of the
// library
func relevant(ev fsnotify.Event, file string) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	if ev.Name == file {
		return true
	}
	switch filepath.Ext(ev.Name) {
	case ".fbp", ".lisp":
		return true
	}
	return false
}

func watchRun(fl *flatland.Flatland, file, against string) {
	start := time.Now()
	run, err := fl.RunFile(file)
	if err != nil {
		fl.Logger().Report(err)
		return
	}
	g, err := run.Graph()
	if err != nil {
		fl.Logger().Report(err)
		return
	}
	line := fmt.Sprintf("%s: %d records, %d nodes, %d segments, %d arcs",
		time.Now().Format("15:04:05"), len(run.Records), len(g),
		len(run.Turtle.Segments()), len(run.Turtle.Arcs()))
	if against != "" {
		other, err := fl.Program(against)
		if err != nil {
			errorPrintf("%v\n", err)
			return
		}
		res, err := fl.Compare(g, other)
		if err != nil {
			errorPrintf("%v\n", err)
			return
		}
		line += fmt.Sprintf(", %s distance %.4f", res.Metric, res.Distance)
	}
	fmt.Printf("%s (%s)\n", line, time.Since(start).Round(time.Millisecond))
}
