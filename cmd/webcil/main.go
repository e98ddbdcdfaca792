package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/version"
	"github.com/spf13/afero"
	"gopkg.in/alecthomas/kingpin.v2"

	webcilcontext "github.com/grafana/webcil/pkg/context"
)

var cfg struct {
	verbose bool
	convert struct {
		input       string
		output      string
		keepPartial bool
	}
	inspect struct {
		files []string
	}
	verify struct {
		pe     string
		webcil string
	}
	dumpPE struct {
		files     []string
		noHexDump bool
	}
}

var (
	consoleOutput = os.Stderr
	logger        = log.NewLogfmtLogger(consoleOutput)
)

func main() {
	app := kingpin.New(filepath.Base(os.Args[0]), "Converts .NET PE assemblies to WebCIL files.").UsageWriter(os.Stdout)
	app.Version(version.Print("webcil"))
	app.HelpFlag.Short('h')
	app.Flag("verbose", "Enable verbose logging.").Short('v').Default("0").BoolVar(&cfg.verbose)

	convertCmd := app.Command("convert", "Convert a PE file to a WebCIL file.")
	convertCmd.Arg("input", "The PE file to convert.").Required().ExistingFileVar(&cfg.convert.input)
	convertCmd.Arg("output", "The WebCIL file to write. Defaults to the input with a .webcil extension.").StringVar(&cfg.convert.output)
	convertCmd.Flag("keep-partial-output", "Do not remove the output file when the conversion fails.").Default("false").BoolVar(&cfg.convert.keepPartial)

	inspectCmd := app.Command("inspect", "Print the header, sections and debug directory of WebCIL files.")
	inspectCmd.Arg("file", "WebCIL file path").Required().ExistingFilesVar(&cfg.inspect.files)

	verifyCmd := app.Command("verify", "Check a WebCIL file against the PE file it was converted from.")
	verifyCmd.Arg("pe", "The source PE file.").Required().ExistingFileVar(&cfg.verify.pe)
	verifyCmd.Arg("webcil", "The converted WebCIL file.").Required().ExistingFileVar(&cfg.verify.webcil)

	dumpPECmd := app.Command("dump-pe", "Print the sections, CLI header and metadata of PE files.")
	dumpPECmd.Arg("file", "PE file path").Required().ExistingFilesVar(&cfg.dumpPE.files)
	dumpPECmd.Flag("no-hex-dump", "Do not hex dump the metadata.").Default("false").BoolVar(&cfg.dumpPE.noHexDump)

	// parse command line arguments
	parsedCmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	// enable verbose logging if requested
	if !cfg.verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	ctx := webcilcontext.WithLogger(context.Background(), logger)
	ctx = webcilcontext.WithRegistry(ctx, prometheus.NewRegistry())
	ctx = withOutput(ctx, os.Stdout)
	fs := afero.NewOsFs()

	switch parsedCmd {
	case convertCmd.FullCommand():
		os.Exit(checkError(convert(ctx, fs, cfg.convert.input, cfg.convert.output, cfg.convert.keepPartial)))
	case inspectCmd.FullCommand():
		for _, file := range cfg.inspect.files {
			if err := inspect(ctx, fs, file); err != nil {
				os.Exit(checkError(err))
			}
		}
	case verifyCmd.FullCommand():
		os.Exit(checkError(verify(ctx, fs, cfg.verify.pe, cfg.verify.webcil)))
	case dumpPECmd.FullCommand():
		for _, file := range cfg.dumpPE.files {
			if err := dumpPE(ctx, fs, file, !cfg.dumpPE.noHexDump); err != nil {
				os.Exit(checkError(err))
			}
		}
	default:
		level.Error(logger).Log("msg", "unknown command", "cmd", parsedCmd)
	}
}

func checkError(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}

type contextKey uint8

const (
	contextKeyOutput contextKey = iota
)

func withOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, contextKeyOutput, w)
}

func output(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(contextKeyOutput).(io.Writer); ok {
		return w
	}
	return os.Stdout
}
