package app

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/maciekjanusz/covlink/internal/config"
	"github.com/maciekjanusz/covlink/internal/logger"
	"github.com/maciekjanusz/covlink/internal/measure"
	"github.com/maciekjanusz/covlink/internal/resource"
	"github.com/maciekjanusz/covlink/internal/sensor"
)

// NewAnalyseCommand creates the "analyse" subcommand.
func NewAnalyseCommand() *cobra.Command {
	var (
		configPath string
		noColor    bool
	)

	cmd := &cobra.Command{
		Use:   "analyse",
		Short: "Run the coverage analysis and write the coverage report.",
		Long: `Run one coverage analysis pass:

  1. Index the compiled class files under the configured binary roots
  2. Decode the recorded execution data into per-session record stores
  3. Correlate probes with source lines and branch outcomes
  4. Commit one coverage measure per resolved production source file
  5. Attribute covered lines to individual test sessions

Configuration is read from a yaml file (see --config); by default a
covlink.yaml is looked up in the working directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyse(configPath, noColor)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the covlink yaml configuration file")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runAnalyse(configPath string, noColor bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger.Init(cfg.LogLevel)
	logger.SetLevel(cfg.LogLevel)
	if noColor {
		logger.SetColorEnable(false)
		color.NoColor = true
	}

	registry := resource.NewDirRegistry(cfg.Sources, cfg.Tests)
	sink := measure.NewJSONReportSink()

	sensor.New().Analyse(&sensor.Context{
		BinaryRoots: cfg.Binaries,
		ExecFile:    cfg.ExecFile,
		Registry:    registry,
		Sink:        sink,
		PerTest:     cfg.PerTest,
	})

	if sink.CommittedFiles() == 0 {
		return nil
	}

	if err := sink.Write(cfg.Report); err != nil {
		return err
	}
	if info, statErr := os.Stat(cfg.Report); statErr == nil {
		logger.Info("Coverage report written to %s (%s)", cfg.Report, humanize.Bytes(uint64(info.Size())))
	}

	printSummary(sink.Files())
	return nil
}

// printSummary renders the per-file coverage table.
func printSummary(files []measure.FileMeasures) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"File", "Lines", "Covered", "Line Coverage"})

	totalLines, totalCovered := 0, 0
	for _, f := range files {
		covered := 0
		for _, line := range f.Lines {
			if line.Hits > 0 {
				covered++
			}
		}
		totalLines += len(f.Lines)
		totalCovered += covered
		t.AppendRow(table.Row{
			f.Key,
			humanize.Comma(int64(len(f.Lines))),
			humanize.Comma(int64(covered)),
			formatPercent(covered, len(f.Lines)),
		})
	}
	t.AppendFooter(table.Row{
		"Total",
		humanize.Comma(int64(totalLines)),
		humanize.Comma(int64(totalCovered)),
		formatPercent(totalCovered, totalLines),
	})
	t.Render()
}

func formatPercent(covered, total int) string {
	if total == 0 {
		return "-"
	}
	pct := 100 * float64(covered) / float64(total)
	text := fmt.Sprintf("%.1f%%", pct)
	switch {
	case pct >= 80:
		return color.GreenString(text)
	case pct >= 50:
		return color.YellowString(text)
	default:
		return color.RedString(text)
	}
}
