package flatland

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/flatland-lang/flatland/pkg/distance"
)

// Config holds interpreter and scoring configuration
type Config struct {
	Debug           bool             `toml:"debug"`
	DebugCategories []string         `toml:"debug_categories"`
	LibraryDir      string           `toml:"library"`
	Randomize       bool             `toml:"randomize"`
	Run             bool             `toml:"run"`
	Seed            int64            `toml:"seed"` // 0 picks a time based seed
	Metric          string           `toml:"metric"`
	Canvas          float64          `toml:"canvas"`
	Distance        distance.Options `toml:"distance"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Debug:      false,
		LibraryDir: "./library",
		Randomize:  false,
		Run:        true,
		Seed:       0,
		Metric:     "recursive",
		Canvas:     128,
		Distance:   distance.DefaultOptions(),
	}
}

// LoadConfig reads a TOML file on top of DefaultConfig
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(IOError, "reading config: %v", err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, newError(IOError, "parsing config %s: %v", path, err)
	}
	return cfg, nil
}

// ErrorKind classifies interpreter failures
type ErrorKind int

const (
	SyntaxError ErrorKind = iota
	NameResolutionError
	DuplicateNameError
	TypeError
	ConsistencyError
	IOError
)

func (k ErrorKind) String() string {
	switch k {
	case SyntaxError:
		return "SyntaxError"
	case NameResolutionError:
		return "NameResolutionError"
	case DuplicateNameError:
		return "DuplicateNameError"
	case TypeError:
		return "TypeError"
	case ConsistencyError:
		return "ConsistencyError"
	case IOError:
		return "IOError"
	default:
		return "Error"
	}
}

// Sentinels for errors.Is
var (
	ErrSyntax         = &Error{Kind: SyntaxError}
	ErrNameResolution = &Error{Kind: NameResolutionError}
	ErrDuplicateName  = &Error{Kind: DuplicateNameError}
	ErrType           = &Error{Kind: TypeError}
	ErrConsistency    = &Error{Kind: ConsistencyError}
	ErrIO             = &Error{Kind: IOError}
)

// message used for a truncated s-expression
const msgUnexpectedEOF = "unexpected end of input"

// Error represents an interpreter error with an optional source file
type Error struct {
	Kind    ErrorKind
	Message string
	File    string
}

func (e *Error) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s (in %s)", e.Kind, e.Message, e.File)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// withFile attaches a file name to interpreter errors that have none yet
func withFile(err error, file string) error {
	var e *Error
	if errors.As(err, &e) && e.File == "" {
		c := *e
		c.File = file
		return &c
	}
	return err
}

// IsIncomplete reports whether err is a syntax error caused by input ending
// before every open paren was closed
func IsIncomplete(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == SyntaxError && e.Message == msgUnexpectedEOF
}
