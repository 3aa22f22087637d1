package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"econdash/internal/chart"
	"econdash/internal/config"
	"econdash/internal/dataset"
	"econdash/internal/export"
	"econdash/internal/logging"
	"econdash/internal/model"
	"econdash/internal/providers/fred"
	"econdash/internal/sink"
)

const (
	defaultCompare  = "CPI,PPI,Unemployment Rate"
	comparisonTitle = "Comparison of Selected Indicators"
)

type metaFile struct {
	GeneratedAt string      `json:"generated_at"`
	Provider    string      `json:"provider"`
	Window      dateRange   `json:"window"`
	Range       dateRange   `json:"range"`
	Compare     []string    `json:"compare"`
	Indicators  []metaEntry `json:"indicators"`
}

type dateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type metaEntry struct {
	Indicator   string `json:"indicator"`
	Title       string `json:"title"`
	SeriesID    string `json:"series_id"`
	Group       string `json:"group"`
	Unit        string `json:"unit"`
	Description string `json:"description"`
	Points      int    `json:"points"`
	CSV         string `json:"csv"`
	XLSX        string `json:"xlsx"`
	Chart       string `json:"chart"`
}

type latestFile struct {
	GeneratedAt string        `json:"generated_at"`
	Rows        []latestEntry `json:"rows"`
}

type latestEntry struct {
	Indicator  string  `json:"indicator"`
	Title      string  `json:"title"`
	Date       string  `json:"date"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit"`
	Percentage bool    `json:"percentage"`
}

var (
	cfgFile string
	verbose bool
)

var buildFlags struct {
	out     string
	start   string
	end     string
	compare string
	format  string
	gzip    bool
	sink    string
	bucket  string
	prefix  string
}

var rootCmd = &cobra.Command{
	Use:   "publisher",
	Short: "Publish charts and downloads for the FRED indicators",
	Long: `publisher assembles the dataset, restricts it to a date range and
writes per indicator CSV and Excel downloads, charts, a comparison chart,
meta.json and latest.json to a directory or an S3 bucket.

Examples:
  publisher build --out site/data
  publisher build --start 2000-01-01 --compare "CPI,2-Year Treasury Rate"
  publisher build --sink s3 --bucket econdash-exports --prefix daily`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build every published artefact once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := cfg.Validate(); err != nil {
			return err
		}
		dest, err := openSink(ctx, cfg.Output)
		if err != nil {
			return err
		}
		return build(ctx, cmd.OutOrStdout(), cfg, dest, buildOptions{
			start:   buildFlags.start,
			end:     buildFlags.end,
			compare: buildFlags.compare,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "HCL config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	flags := buildCmd.Flags()
	flags.StringVar(&buildFlags.out, "out", "", "output directory for the fs sink")
	flags.StringVar(&buildFlags.start, "start", "", "range start YYYY-MM-DD (default: earliest data)")
	flags.StringVar(&buildFlags.end, "end", "", "range end YYYY-MM-DD (default: latest data)")
	flags.StringVar(&buildFlags.compare, "compare", defaultCompare, "comma-separated indicators for the comparison chart")
	flags.StringVar(&buildFlags.format, "format", "", "chart format: png or svg")
	flags.BoolVar(&buildFlags.gzip, "gzip", false, "gzip CSV downloads")
	flags.StringVar(&buildFlags.sink, "sink", "", "output sink: fs or s3")
	flags.StringVar(&buildFlags.bucket, "bucket", "", "S3 bucket for the s3 sink")
	flags.StringVar(&buildFlags.prefix, "prefix", "", "key prefix for published files")

	rootCmd.AddCommand(buildCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "publisher failed:", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("out") {
		cfg.Output.Dir = buildFlags.out
	}
	if flags.Changed("format") {
		cfg.Output.Format = strings.ToLower(strings.TrimSpace(buildFlags.format))
	}
	if flags.Changed("gzip") {
		cfg.Output.Gzip = buildFlags.gzip
	}
	if flags.Changed("sink") {
		cfg.Output.Sink = strings.ToLower(strings.TrimSpace(buildFlags.sink))
	}
	if flags.Changed("bucket") {
		cfg.Output.Bucket = buildFlags.bucket
	}
	if flags.Changed("prefix") {
		cfg.Output.Prefix = buildFlags.prefix
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func openSink(ctx context.Context, cfg config.OutputConfig) (sink.Sink, error) {
	switch cfg.Sink {
	case config.SinkS3:
		return sink.NewS3(ctx, sink.S3Config{
			Bucket:          cfg.Bucket,
			Prefix:          cfg.Prefix,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			PathStyle:       cfg.PathStyle,
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		})
	default:
		return sink.NewFS(cfg.Dir, cfg.Prefix)
	}
}

type buildOptions struct {
	start   string
	end     string
	compare string
	now     func() time.Time
}

func build(ctx context.Context, out io.Writer, cfg config.Config, dest sink.Sink, opts buildOptions) error {
	if opts.now == nil {
		opts.now = time.Now
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg.Fred.Logger = logger
	provider, err := fred.NewWithConfig(cfg.Fred)
	if err != nil {
		return err
	}
	defer provider.Close()

	assembler, err := dataset.NewAssembler(provider, dataset.Options{
		HistoryYears: cfg.Assembly.HistoryYears,
		Concurrency:  cfg.Assembly.Concurrency,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	catalog := assembler.Catalog()

	compare, err := catalog.ParseIndicators(parseList(opts.compare))
	if err != nil {
		return err
	}

	ds, err := assembler.Assemble(ctx)
	if err != nil {
		return err
	}

	start, end, err := resolveRange(ds, opts.start, opts.end)
	if err != nil {
		return err
	}
	filtered := ds.Filter(start, end)
	selected, err := filtered.Compare(compare)
	if err != nil {
		return err
	}

	now := opts.now().UTC().Format(time.RFC3339)
	p := &publisher{ctx: ctx, dest: dest, format: cfg.Output.Format, gzip: cfg.Output.Gzip, logger: logger}

	meta := metaFile{
		GeneratedAt: now,
		Provider:    ds.Provider,
		Window:      formatRange(ds.WindowStart, ds.WindowEnd),
		Range:       formatRange(start, end),
		Compare:     indicatorStrings(compare),
		Indicators:  make([]metaEntry, 0, len(catalog)),
	}
	for _, entry := range catalog {
		s, _ := filtered.Get(entry.Indicator)
		written, err := p.publishIndicator(entry, s)
		if err != nil {
			return err
		}
		meta.Indicators = append(meta.Indicators, written)
	}

	lines := make([]chart.Line, 0, len(compare))
	seen := make(map[model.Indicator]struct{}, len(compare))
	for _, indicator := range compare {
		if _, dup := seen[indicator]; dup {
			continue
		}
		seen[indicator] = struct{}{}
		entry, _ := catalog.Lookup(indicator)
		lines = append(lines, chart.Line{Name: entry.Title, Series: selected[indicator]})
	}
	if err := p.putChart("comparison", chart.Spec{Title: comparisonTitle, YAxisLabel: "Value"}, lines...); err != nil {
		return err
	}

	if err := p.putJSON("meta.json", meta); err != nil {
		return err
	}
	if err := p.putJSON("latest.json", latestFile{GeneratedAt: now, Rows: buildLatest(catalog, ds)}); err != nil {
		return err
	}

	fmt.Fprintf(out, "publisher build complete (out=%s indicators=%d range=%s..%s files=%d)\n",
		dest.Location(""),
		len(meta.Indicators),
		meta.Range.Start,
		meta.Range.End,
		p.files,
	)
	return nil
}

type publisher struct {
	ctx    context.Context
	dest   sink.Sink
	format string
	gzip   bool
	logger *zap.Logger
	files  int
}

func (p *publisher) publishIndicator(entry model.CatalogEntry, s model.Series) (metaEntry, error) {
	base := export.FileBase(entry.Indicator)
	written := metaEntry{
		Indicator:   string(entry.Indicator),
		Title:       entry.Title,
		SeriesID:    entry.SeriesID,
		Group:       string(entry.Group),
		Unit:        s.Unit,
		Description: entry.Description,
		Points:      s.Len(),
		CSV:         base + ".csv",
		XLSX:        base + ".xlsx",
		Chart:       string(entry.Indicator) + "." + p.chartFormat(),
	}

	if p.gzip {
		written.CSV += ".gz"
		err := p.put(written.CSV, export.ContentTypeGzip, func(w io.Writer) error {
			zw := export.Gzip(w)
			if err := export.WriteCSV(zw, s); err != nil {
				return err
			}
			return zw.Close()
		})
		if err != nil {
			return metaEntry{}, err
		}
	} else if err := p.put(written.CSV, export.ContentTypeCSV, func(w io.Writer) error {
		return export.WriteCSV(w, s)
	}); err != nil {
		return metaEntry{}, err
	}

	if err := p.put(written.XLSX, export.ContentTypeXLSX, func(w io.Writer) error {
		return export.WriteXLSX(w, s)
	}); err != nil {
		return metaEntry{}, err
	}

	spec := chart.Spec{Title: entry.Title, YAxisLabel: entry.YAxisLabel, Percentage: s.Percentage}
	if err := p.putChart(string(entry.Indicator), spec, chart.Line{Name: entry.Title, Series: s}); err != nil {
		return metaEntry{}, err
	}
	return written, nil
}

func (p *publisher) chartFormat() string {
	if p.format == "" {
		return chart.FormatPNG
	}
	return p.format
}

func (p *publisher) putChart(name string, spec chart.Spec, lines ...chart.Line) error {
	spec.Format = p.chartFormat()
	return p.put(name+"."+spec.Format, chart.ContentType(spec.Format), func(w io.Writer) error {
		return chart.Render(w, spec, lines...)
	})
}

func (p *publisher) putJSON(key string, value any) error {
	return p.put(key, "application/json", func(w io.Writer) error {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(value)
	})
}

// put renders into memory first so a failed render never leaves a partial
// object behind.
func (p *publisher) put(key, contentType string, render func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return fmt.Errorf("render %s: %w", key, err)
	}
	if err := p.dest.Put(p.ctx, key, bytes.NewReader(buf.Bytes()), contentType); err != nil {
		return err
	}
	p.files++
	p.logger.Debug("published", zap.String("key", key), zap.Int("bytes", buf.Len()))
	return nil
}

// resolveRange parses the optional range flags, defaulting each side to the
// dataset bounds.
func resolveRange(ds *dataset.Dataset, startValue, endValue string) (time.Time, time.Time, error) {
	start, end, ok := ds.Bounds()
	if !ok {
		start, end = ds.WindowStart, ds.WindowEnd
	}
	if strings.TrimSpace(startValue) != "" {
		parsed, err := time.Parse(model.DateLayout, strings.TrimSpace(startValue))
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", startValue, err)
		}
		start = parsed
	}
	if strings.TrimSpace(endValue) != "" {
		parsed, err := time.Parse(model.DateLayout, strings.TrimSpace(endValue))
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", endValue, err)
		}
		end = parsed
	}
	return start, end, nil
}

// buildLatest reports the most recent point of every indicator over the full
// fetched window, in catalog order. Empty series are left out.
func buildLatest(catalog model.Catalog, ds *dataset.Dataset) []latestEntry {
	rows := make([]latestEntry, 0, len(catalog))
	for _, entry := range catalog {
		s, ok := ds.Get(entry.Indicator)
		if !ok {
			continue
		}
		last, ok := s.Last()
		if !ok {
			continue
		}
		rows = append(rows, latestEntry{
			Indicator:  string(entry.Indicator),
			Title:      entry.Title,
			Date:       last.Date.Format(model.DateLayout),
			Value:      last.Value,
			Unit:       s.Unit,
			Percentage: s.Percentage,
		})
	}
	return rows
}

func formatRange(start, end time.Time) dateRange {
	return dateRange{Start: start.Format(model.DateLayout), End: end.Format(model.DateLayout)}
}

func indicatorStrings(indicators []model.Indicator) []string {
	out := make([]string, 0, len(indicators))
	for _, indicator := range indicators {
		out = append(out, string(indicator))
	}
	return out
}

func parseList(value string) []string {
	raw := strings.Split(value, ",")
	items := make([]string, 0, len(raw))
	for _, item := range raw {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		items = append(items, trimmed)
	}
	return items
}
