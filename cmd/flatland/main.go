package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/flatland-lang/flatland"
	"github.com/flatland-lang/flatland/pkg/distance"
	"github.com/flatland-lang/flatland/pkg/turtle"
	"golang.org/x/term"
)

var version = "dev" // set via -ldflags at build time

const appName = "flatland"

// ANSI color codes for terminal output
const (
	colorYellow = "\x1b[93m"
	colorReset  = "\x1b[0m"
)

// stderrSupportsColor checks if stderr is a terminal that supports color output
func stderrSupportsColor() bool {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return false
	}
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}
	if t := os.Getenv("TERM"); t == "dumb" {
		return false
	}
	return true
}

// errorPrintf prints an error message to stderr, using color if supported
func errorPrintf(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	if stderrSupportsColor() {
		fmt.Fprintf(os.Stderr, "%s%s%s", colorYellow, message, colorReset)
	} else {
		fmt.Fprint(os.Stderr, message)
	}
}

// getConfigFilePath returns the path to ~/.flatland/config.toml
func getConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".flatland", "config.toml")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	cmd := os.Args[1]
	switch cmd {
	case "run":
		os.Exit(cmdRun(os.Args[2:]))
	case "draw":
		os.Exit(cmdDraw(os.Args[2:]))
	case "score":
		os.Exit(cmdScore(os.Args[2:]))
	case "ddist":
		os.Exit(cmdDomainDistance(os.Args[2:]))
	case "library":
		os.Exit(cmdLibrary(os.Args[2:]))
	case "repl":
		os.Exit(cmdRepl(os.Args[2:]))
	case "watch":
		os.Exit(cmdWatch(os.Args[2:]))
	case "metrics":
		fmt.Println(strings.Join(distance.Names(), "\n"))
	case "version":
		fmt.Println(version)
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		errorPrintf("%s: unknown command %q\n", appName, cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `flatland %s

Usage:
  %[2]s run [flags] <file>                   Evaluate a program and print its records
  %[2]s draw [flags] -o out.png <file>       Run a program and render the drawing
  %[2]s score [flags] <a> <b>                Compare two programs (or saved .json records)
  %[2]s ddist [flags] -train a,b -test c,d   Distance from a test set to a train set
  %[2]s library [flags] [dir]                Describe the primitives of a library directory
  %[2]s repl [flags]                         Interactive session
  %[2]s watch [flags] <file>                 Re-run a program whenever it changes
  %[2]s metrics                              List the distance metrics
  %[2]s version                              Print the version

Every command accepts -config, -library, -seed, -randomize, -norun, -metric and -debug.
`, version, appName)
}

// commonFlags are shared by every subcommand
type commonFlags struct {
	fs        *flag.FlagSet
	config    string
	library   string
	metric    string
	seed      int64
	randomize bool
	norun     bool
	debug     string
}

func newFlagSet(name string) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(appName+" "+name, flag.ContinueOnError)
	c := &commonFlags{fs: fs}
	fs.StringVar(&c.config, "config", "", "TOML configuration file (default ~/.flatland/config.toml when present)")
	fs.StringVar(&c.library, "library", "", "library directory searched by #include")
	fs.StringVar(&c.metric, "metric", "", "distance metric")
	fs.Int64Var(&c.seed, "seed", 0, "random seed, 0 for time based")
	fs.BoolVar(&c.randomize, "randomize", false, "randomize constant flow arguments and start positions")
	fs.BoolVar(&c.norun, "norun", false, "build the graph without drawing")
	fs.StringVar(&c.debug, "debug", "", "comma separated debug categories, or \"all\"")
	return fs, c
}

// load merges the config file with the flags that were set explicitly
func (c *commonFlags) load() (*flatland.Flatland, error) {
	cfg := flatland.DefaultConfig()
	path := c.config
	if path == "" {
		if p := getConfigFilePath(); p != "" {
			if _, err := os.Stat(p); err == nil {
				path = p
			}
		}
	}
	if path != "" {
		loaded, err := flatland.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	c.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "library":
			cfg.LibraryDir = c.library
		case "metric":
			cfg.Metric = c.metric
		case "seed":
			cfg.Seed = c.seed
		case "randomize":
			cfg.Randomize = c.randomize
		case "norun":
			cfg.Run = !c.norun
		case "debug":
			cfg.Debug = c.debug != ""
			cfg.DebugCategories = nil
			if c.debug != "all" {
				for _, cat := range strings.Split(c.debug, ",") {
					if cat = strings.TrimSpace(cat); cat != "" {
						cfg.DebugCategories = append(cfg.DebugCategories, cat)
					}
				}
			}
		}
	})
	if _, err := distance.Lookup(cfg.Metric); err != nil {
		return nil, err
	}
	return flatland.New(cfg), nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// openOutput returns stdout for "" or "-"
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func cmdRun(args []string) int {
	fs, common := newFlagSet("run")
	resolved := fs.Bool("resolved", false, "print the flattened graph instead of the raw records")
	trace := fs.Bool("trace", false, "print the drawn lines and circles instead of the records")
	out := fs.String("o", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		errorPrintf("usage: %s run [flags] <file>\n", appName)
		return 2
	}
	fl, err := common.load()
	if err != nil {
		errorPrintf("%v\n", err)
		return 1
	}
	run, err := fl.RunFile(fs.Arg(0))
	if err != nil {
		errorPrintf("%v\n", err)
		return 1
	}

	w, err := openOutput(*out)
	if err != nil {
		errorPrintf("%v\n", err)
		return 1
	}
	defer w.Close()

	switch {
	case *trace:
		err = flatland.WriteGraph(w, run.Trace())
	case *resolved:
		g, gerr := run.Graph()
		if gerr != nil {
			errorPrintf("%v\n", gerr)
			return 1
		}
		err = flatland.WriteGraph(w, g)
	default:
		err = flatland.WriteRecords(w, run.Records)
	}
	if err != nil {
		errorPrintf("%v\n", err)
		return 1
	}
	return 0
}

func cmdDraw(args []string) int {
	fs, common := newFlagSet("draw")
	out := fs.String("o", "", "PNG output file")
	opts := turtle.DefaultRasterOptions()
	fs.IntVar(&opts.Size, "size", opts.Size, "image side in pixels")
	fs.Float64Var(&opts.World, "world", opts.World, "world units mapped onto the image")
	fs.Float64Var(&opts.Width, "width", opts.Width, "stroke width in pixels")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 || *out == "" {
		errorPrintf("usage: %s draw [flags] -o out.png <file>\n", appName)
		return 2
	}
	fl, err := common.load()
	if err != nil {
		errorPrintf("%v\n", err)
		return 1
	}
	if !fl.Config().Run {
		errorPrintf("draw needs the program to run; drop -norun\n")
		return 2
	}
	run, err := fl.RunFile(fs.Arg(0))
	if err != nil {
		errorPrintf("%v\n", err)
		return 1
	}
	f, err := os.Create(*out)
	if err != nil {
		errorPrintf("%v\n", err)
		return 1
	}
	defer f.Close()
	if err := png.Encode(f, run.Turtle.Rasterize(opts)); err != nil {
		errorPrintf("writing %s: %v\n", *out, err)
		return 1
	}
	fl.Logger().InfoCat(flatland.CatIO, "wrote %s (%d segments, %d arcs)", *out, len(run.Turtle.Segments()), len(run.Turtle.Arcs()))
	return 0
}

func cmdScore(args []string) int {
	fs, common := newFlagSet("score")
	brief := fs.Bool("brief", false, "print only the distance")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 2 {
		errorPrintf("usage: %s score [flags] <a> <b>\n", appName)
		return 2
	}
	fl, err := common.load()
	if err != nil {
		errorPrintf("%v\n", err)
		return 1
	}
	res, err := fl.ScoreFiles(fs.Arg(0), fs.Arg(1))
	if err != nil {
		errorPrintf("%v\n", err)
		return 1
	}
	if *brief {
		fmt.Printf("%.4f\n", res.Distance)
		return 0
	}
	if err := writeJSON(os.Stdout, res); err != nil {
		errorPrintf("%v\n", err)
		return 1
	}
	return 0
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func cmdDomainDistance(args []string) int {
	fs, common := newFlagSet("ddist")
	train := fs.String("train", "", "comma separated train programs")
	test := fs.String("test", "", "comma separated test programs")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	trainFiles := splitList(*train)
	testFiles := append(splitList(*test), fs.Args()...)
	if len(trainFiles) == 0 || len(testFiles) == 0 {
		errorPrintf("usage: %s ddist [flags] -train a,b -test c,d\n", appName)
		return 2
	}
	fl, err := common.load()
	if err != nil {
		errorPrintf("%v\n", err)
		return 1
	}
	rep, err := fl.DomainDistance(trainFiles, testFiles)
	if err != nil {
		errorPrintf("%v\n", err)
		return 1
	}
	if err := writeJSON(os.Stdout, rep); err != nil {
		errorPrintf("%v\n", err)
		return 1
	}
	return 0
}

func cmdLibrary(args []string) int {
	fs, common := newFlagSet("library")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	fl, err := common.load()
	if err != nil {
		errorPrintf("%v\n", err)
		return 1
	}
	dir := fl.Config().LibraryDir
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}
	lib, err := flatland.BuildLibrary(dir, fl.Config(), fl.Logger())
	if err != nil {
		errorPrintf("%v\n", err)
		return 1
	}
	fmt.Println(lib.String())
	return 0
}
