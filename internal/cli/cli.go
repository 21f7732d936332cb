package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vk/predictgrid/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("predictgrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
predictgrid - A prediction graph inference serving engine.

Usage:
  predictgrid [options] [TOPOLOGY_PATH]

Arguments:
  TOPOLOGY_PATH
    Path to a single .hcl topology file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	topologyFlag := flagSet.String("topology", "", "Path to the topology file or directory.")
	tFlag := flagSet.String("t", "", "Path to the topology file or directory (shorthand).")
	listenFlag := flagSet.String("listen", ":8080", "Address for the API server to listen on.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	requestTimeoutFlag := flagSet.Duration("request-timeout", 10*time.Second, "Overall deadline for one prediction request.")
	callTimeoutFlag := flagSet.Duration("node-call-timeout", 5*time.Second, "Deadline for a single node backend call.")
	maxDepthFlag := flagSet.Int("max-depth", 0, "Maximum graph walk depth. 0 uses the engine default.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := ""
	if *topologyFlag != "" {
		path = *topologyFlag
	} else if *tFlag != "" {
		path = *tFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}

	if path == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	config, err := app.NewConfig(app.Config{
		TopologyPath:    path,
		ListenAddr:      *listenFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		RequestTimeout:  *requestTimeoutFlag,
		NodeCallTimeout: *callTimeoutFlag,
		MaxDepth:        *maxDepthFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}
