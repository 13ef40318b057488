// Command gqoi encodes and decodes QOI images from the command line.
//
// Usage:
//
//	gqoi enc [options] <input>        PNG/JPEG/GIF/BMP/TIFF/WebP/QOI → QOI (use "-" for stdin)
//	gqoi dec [options] <input.qoi>    QOI → PNG/JPEG (use "-" for stdin, -o - for stdout)
//	gqoi info <input.qoi>             Display QOI header
//
// Encoded files use row framing unless -framing sequential is given; only
// sequential files are readable by other QOI decoders. QOI input to enc is
// read as standard QOI unless -input_framing rows is given.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/deepteams/qoi"
	"github.com/deepteams/qoi/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch os.Args[1] {
	case "enc":
		err = runEnc(ctx, os.Args[2:])
	case "dec":
		err = runDec(os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	case "-h", "-help", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "gqoi: unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "gqoi: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage:
  gqoi enc [options] <input>        Encode PNG/JPEG/GIF/BMP/TIFF/WebP/QOI to QOI
  gqoi dec [options] <input.qoi>    Decode QOI to PNG or JPEG
  gqoi info <input.qoi>             Display QOI header

Use "-" as input to read from stdin, "-o -" to write to stdout.
Zstd-compressed QOI input is detected automatically.

Run "gqoi <command> -h" for command-specific options.
`)
}

// openInput returns an io.ReadCloser for the given path.
// If path is "-", stdin is returned (caller should not close).
func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// readInput reads the whole input and strips a zstd frame if present.
func readInput(path string) (data []byte, compressed bool, err error) {
	in, err := openInput(path)
	if err != nil {
		return nil, false, err
	}
	data, err = io.ReadAll(in)
	in.Close()
	if err != nil {
		return nil, false, fmt.Errorf("reading input: %w", err)
	}
	if !isZstd(data) {
		return data, false, nil
	}
	data, err = decompress(data)
	if err != nil {
		return nil, true, fmt.Errorf("zstd: %w", err)
	}
	return data, true, nil
}

// loadConfig returns the file configuration, or defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// newLogger returns a text logger on stderr. verbose forces debug level.
func newLogger(level string, verbose bool) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelWarn
	}
	if verbose {
		l = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// explicitFlags returns the names of flags set on the command line.
func explicitFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func parseFraming(s string) (qoi.Framing, error) {
	switch strings.ToLower(s) {
	case "rows", "":
		return qoi.FramingRows, nil
	case "sequential":
		return qoi.FramingSequential, nil
	default:
		return 0, fmt.Errorf("unknown framing %q (use rows/sequential)", s)
	}
}

func parseMerge(s string) (qoi.MergeStrategy, error) {
	switch strings.ToLower(s) {
	case "sequential", "":
		return qoi.MergeSequential, nil
	case "prefix-sum":
		return qoi.MergePrefixSum, nil
	default:
		return 0, fmt.Errorf("unknown merge strategy %q (use sequential/prefix-sum)", s)
	}
}

func parseColorspace(s string) (qoi.Colorspace, error) {
	switch strings.ToLower(s) {
	case "srgb", "":
		return qoi.SRGB, nil
	case "linear":
		return qoi.Linear, nil
	default:
		return 0, fmt.Errorf("unknown colorspace %q (use srgb/linear)", s)
	}
}

// writeOutput writes data to path, removing the file if anything fails.
func writeOutput(path string, write func(io.Writer) error) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(out); err != nil {
		out.Close()
		os.Remove(path)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// --- enc ---

func runEnc(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("enc", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "YAML configuration file")
	framing := fs.String("framing", "rows", "segment framing: rows/sequential")
	inFraming := fs.String("input_framing", "sequential", "framing of QOI input: rows/sequential")
	merge := fs.String("merge", "sequential", "merge strategy: sequential/prefix-sum")
	workers := fs.Int("workers", 0, "encoder goroutines (0=one per CPU)")
	channels := fs.Int("channels", 0, "output channels 3 or 4 (0=auto from alpha)")
	colorspace := fs.String("colorspace", "srgb", "colorspace tag: srgb/linear")
	maxMemory := fs.Int("max_memory", 0, "memory ceiling in MiB (0=unlimited)")
	useZstd := fs.Bool("zstd", false, "wrap the output in a zstd frame")
	zstdLevel := fs.Int("zstd_level", 2, "zstd level 1-4")
	verbose := fs.Bool("v", false, "debug logging")
	output := fs.String("o", "", `output path (default: <input>.qoi, "-" for stdout)`)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("enc: missing input file\nUsage: gqoi enc [options] <input>")
	}
	inputPath := fs.Arg(0)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("enc: %w", err)
	}
	// Flags given on the command line override the file.
	set := explicitFlags(fs)
	if set["framing"] {
		cfg.Encode.Framing = *framing
	}
	if set["merge"] {
		cfg.Encode.Merge = *merge
	}
	if set["workers"] {
		cfg.Encode.Workers = *workers
	}
	if set["channels"] {
		cfg.Encode.Channels = *channels
	}
	if set["colorspace"] {
		cfg.Encode.Colorspace = *colorspace
	}
	if set["max_memory"] {
		cfg.Encode.MaxMemoryMB = *maxMemory
	}
	if set["zstd"] {
		cfg.Output.Zstd = *useZstd
	}
	if set["zstd_level"] {
		cfg.Output.ZstdLevel = *zstdLevel
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("enc: %w", err)
	}

	opts, err := encoderOptions(cfg, newLogger(cfg.Log.Level, *verbose))
	if err != nil {
		return fmt.Errorf("enc: %w", err)
	}

	inputFraming, err := parseFraming(*inFraming)
	if err != nil {
		return fmt.Errorf("enc: %w", err)
	}
	data, _, err := readInput(inputPath)
	if err != nil {
		return fmt.Errorf("enc: %w", err)
	}
	img, err := decodeInput(data, inputFraming)
	if err != nil {
		return fmt.Errorf("enc: decoding input: %w", err)
	}

	write := func(w io.Writer) error {
		if !cfg.Output.Zstd {
			return qoi.EncodeContext(ctx, w, img, opts)
		}
		zw, err := newZstdWriter(w, cfg.Output.ZstdLevel)
		if err != nil {
			return err
		}
		if err := qoi.EncodeContext(ctx, zw, img, opts); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	}

	if *output == "-" {
		return write(os.Stdout)
	}

	outputPath := *output
	if outputPath == "" {
		ext := ".qoi"
		if cfg.Output.Zstd {
			ext = ".qoi.zst"
		}
		if inputPath == "-" {
			outputPath = "output" + ext
		} else {
			base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
			outputPath = base + ext
		}
	}

	if err := writeOutput(outputPath, write); err != nil {
		return fmt.Errorf("enc: %w", err)
	}

	fi, _ := os.Stat(outputPath)
	fmt.Fprintf(os.Stderr, "Encoded %s → %s (%d bytes)\n", inputPath, outputPath, fi.Size())
	return nil
}

// decodeInput decodes any registered image format. QOI input is read with
// the given framing instead of the standard decoder image.Decode would pick.
func decodeInput(data []byte, framing qoi.Framing) (image.Image, error) {
	if bytes.HasPrefix(data, []byte("qoif")) {
		return qoi.DecodeWithOptions(bytes.NewReader(data), &qoi.DecoderOptions{Framing: framing})
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

func encoderOptions(cfg *config.Config, logger *slog.Logger) (*qoi.EncoderOptions, error) {
	framing, err := parseFraming(cfg.Encode.Framing)
	if err != nil {
		return nil, err
	}
	merge, err := parseMerge(cfg.Encode.Merge)
	if err != nil {
		return nil, err
	}
	colorspace, err := parseColorspace(cfg.Encode.Colorspace)
	if err != nil {
		return nil, err
	}
	opts := qoi.DefaultOptions()
	opts.Framing = framing
	opts.Merge = merge
	opts.Colorspace = colorspace
	opts.Workers = cfg.Encode.Workers
	opts.Channels = cfg.Encode.Channels
	opts.MaxMemory = int64(cfg.Encode.MaxMemoryMB) << 20
	opts.Logger = logger
	return opts, nil
}

// --- dec ---

func runDec(args []string) error {
	fs := flag.NewFlagSet("dec", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "YAML configuration file")
	framing := fs.String("framing", "rows", "segment framing of the input: rows/sequential")
	output := fs.String("o", "", `output path (default: <input>.png, "-" for stdout)`)
	fmtFlag := fs.String("fmt", "", "output format: png, jpeg (auto-detect from extension if omitted)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("dec: missing input file\nUsage: gqoi dec [options] <input.qoi>")
	}
	inputPath := fs.Arg(0)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("dec: %w", err)
	}
	set := explicitFlags(fs)
	if set["framing"] {
		cfg.Decode.Framing = *framing
	}
	if set["fmt"] {
		cfg.Decode.Format = *fmtFlag
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("dec: %w", err)
	}
	f, err := parseFraming(cfg.Decode.Framing)
	if err != nil {
		return fmt.Errorf("dec: %w", err)
	}

	data, _, err := readInput(inputPath)
	if err != nil {
		return fmt.Errorf("dec: %w", err)
	}
	img, err := qoi.DecodeWithOptions(bytes.NewReader(data), &qoi.DecoderOptions{Framing: f})
	if err != nil {
		return fmt.Errorf("dec: %w", err)
	}

	outFmt := detectOutputFormat(cfg.Decode.Format, set["fmt"], *output)
	if *output == "-" {
		return encodeImage(os.Stdout, img, outFmt)
	}

	outputPath := *output
	if outputPath == "" {
		ext := ".png"
		if outFmt == "jpeg" {
			ext = ".jpg"
		}
		if inputPath == "-" {
			outputPath = "output" + ext
		} else {
			base := filepath.Base(inputPath)
			base = strings.TrimSuffix(base, ".zst")
			base = strings.TrimSuffix(base, filepath.Ext(base))
			outputPath = base + ext
		}
	}

	if err := writeOutput(outputPath, func(w io.Writer) error {
		return encodeImage(w, img, outFmt)
	}); err != nil {
		return fmt.Errorf("dec: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Decoded %s → %s\n", inputPath, outputPath)
	return nil
}

// detectOutputFormat returns "png" or "jpeg". An explicit -fmt wins, then
// the output extension, then the configured default.
func detectOutputFormat(format string, explicit bool, outputPath string) string {
	if !explicit && outputPath != "" && outputPath != "-" {
		switch strings.ToLower(filepath.Ext(outputPath)) {
		case ".jpg", ".jpeg":
			return "jpeg"
		case ".png":
			return "png"
		}
	}
	if format == "jpg" {
		return "jpeg"
	}
	return format
}

// encodeImage writes img in the specified format to w.
func encodeImage(w io.Writer, img image.Image, format string) error {
	switch format {
	case "jpeg", "jpg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	default:
		return png.Encode(w, img)
	}
}

// --- info ---

func runInfo(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("info: missing input file\nUsage: gqoi info <input.qoi>")
	}
	inputPath := args[0]

	data, compressed, err := readInput(inputPath)
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}
	feat, err := qoi.GetFeatures(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}

	name := inputPath
	if inputPath == "-" {
		name = "<stdin>"
	}

	fmt.Printf("File:       %s\n", name)
	fmt.Printf("Format:     qoi\n")
	fmt.Printf("Dimensions: %d x %d\n", feat.Width, feat.Height)
	fmt.Printf("Channels:   %d\n", feat.Channels)
	fmt.Printf("Colorspace: %s\n", feat.Colorspace)
	fmt.Printf("Alpha:      %v\n", feat.HasAlpha)
	fmt.Printf("Zstd:       %v\n", compressed)
	fmt.Printf("QOI size:   %d bytes\n", len(data))

	if inputPath != "-" {
		fi, err := os.Stat(inputPath)
		if err == nil {
			fmt.Printf("File size:  %d bytes\n", fi.Size())
		}
	}

	return nil
}
