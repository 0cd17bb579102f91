package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"go.uber.org/zap"

	"frame-sampler/decoder"
	"frame-sampler/imagefmt"
	"frame-sampler/storage"
	"frame-sampler/video"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code: 0 on success, 1 when any video failed, 2 on bad usage.
func run(args []string) int {
	flags := flag.NewFlagSet("sample-frames", flag.ContinueOnError)
	interval := flags.Duration("interval", 0, "time between sampled frames, 0 samples every frame")
	format := flags.String("format", video.DefaultImageFormat, "image format of the written frames")
	quality := flags.Int("quality", imagefmt.DefaultQuality, "jpeg/webp quality")
	out := flags.String("out", "frames", "output directory")
	perVideo := flags.Bool("per-video", false, "write each video into its own subdirectory of -out")
	verbose := flags.Bool("v", false, "verbose logging")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	if flags.NArg() == 0 {
		log.Print("Please provide at least one video path")
		return 2
	}

	if !imagefmt.IsSupported(*format) {
		log.Printf("Unsupported image format: %s", *format)
		return 2
	}

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			log.Print(err)
			return 1
		}
		logger = l
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	backend := decoder.NewAstiav(decoder.AstiavOptions{}, logger)
	sink := storage.NewDiskSink("", *quality)

	failed := false
	save := func(outputDir string, paths ...string) {
		collection, err := video.NewCollection(backend, logger, nil, paths...)
		if err != nil {
			failed = true
			log.Print(err)
			return
		}

		results, err := collection.SaveFrames(ctx, sink, outputDir, *interval, imagefmt.Normalize(*format))
		if err != nil && len(results) < len(paths) {
			failed = true
			log.Print(err)
		}

		for _, result := range results {
			if result.Err != nil {
				failed = true
				fmt.Fprintf(os.Stderr, "%s: %v\n", result.Path, result.Err)
				continue
			}
			fmt.Printf("%s: %d frames -> %s\n", result.Path, result.Saved, outputDir)
		}
	}

	if *perVideo {
		for _, path := range flags.Args() {
			name := filepath.Base(path)
			save(filepath.Join(*out, name[:len(name)-len(filepath.Ext(name))]), path)
		}
	} else {
		save(*out, flags.Args()...)
	}

	if failed {
		return 1
	}
	return 0
}
