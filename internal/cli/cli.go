package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	goflags "github.com/jessevdk/go-flags"

	"EventScanner/internal/config"
)

const dayLayout = "2006-01-02"

type commands struct {
	Run   *RunCommand
	Query *QueryCommand
}

func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "eventscanner"
	parser.LongDescription = "Crawl upcoming event listings day by day, enrich them with coordinates and genres, and query the stored datasets."

	cmds := &commands{
		Run:   &RunCommand{globals: &globals, version: version},
		Query: &QueryCommand{globals: &globals},
	}

	parser.AddCommand("run", "Crawl and enrich events", "Crawl a range of days, enrich the dataset and store it in the warehouse.", cmds.Run)
	parser.AddCommand("query", "Query stored events", "Print stored events matching the filters as JSON.", cmds.Query)

	return parser, &globals, cmds
}

// Run is the main entry point using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses args (or os.Args if nil) and executes the matched command.
func RunWithArgs(version string, args []string) error {
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("eventscanner %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		var flagsErr *goflags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == goflags.ErrHelp {
			return nil
		}
		return err
	}
	return nil
}

func loadConfig(globals *GlobalFlags) config.Config {
	cfg := config.Load(globals.Config)
	if globals.Verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg
}

func parseDay(value string, loc *time.Location) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	day, err := time.ParseInLocation(dayLayout, value, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid day %q, want YYYY-MM-DD: %w", value, err)
	}
	return &day, nil
}
