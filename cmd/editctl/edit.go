package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/DMarby/picsum-editor/internal/blob"
	"github.com/DMarby/picsum-editor/internal/cache/memory"
	"github.com/DMarby/picsum-editor/internal/cropper"
	"github.com/DMarby/picsum-editor/internal/download"
	"github.com/DMarby/picsum-editor/internal/editor"
	"github.com/DMarby/picsum-editor/internal/filter"
	"github.com/DMarby/picsum-editor/internal/format"
	"github.com/DMarby/picsum-editor/internal/logger"
	"github.com/DMarby/picsum-editor/internal/script"
	"github.com/DMarby/picsum-editor/internal/storage"
	fileStorage "github.com/DMarby/picsum-editor/internal/storage/file"
	"github.com/DMarby/picsum-editor/internal/tracing"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

func newEditCmd() *cobra.Command {
	var (
		scriptPath  string
		outDir      string
		storagePath string
		source      string
		logLevel    string
	)

	cmd := &cobra.Command{
		Use:   "edit [image]",
		Short: "Edit an image by replaying a script",
		Example: `  # Apply the steps in edits.yaml to photo.png and write the result to ./out
  editctl edit photo.png --script edits.yaml --out out

  # Edit an image from file storage
  editctl edit --storage ./images --source 1 --script edits.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			level, err := zapcore.ParseLevel(envDefault(logLevel, "EDITCTL_LOG_LEVEL", "warn"))
			if err != nil {
				return err
			}

			log := logger.New(level, logger.WithConsole())
			defer log.Sync()

			tracer := tracing.Noop(log, "editctl")

			var store storage.Provider
			if path := envDefault(storagePath, "EDITCTL_STORAGE_PATH", ""); path != "" {
				store, err = fileStorage.New(path)
				if err != nil {
					return fmt.Errorf("error opening storage: %w", err)
				}
			}

			cache := memory.New()
			defer cache.Shutdown()

			blobs := blob.New(tracer, cache, store)
			registry := editor.NewRegistry(editor.Deps{
				Log:     log,
				Tracer:  tracer,
				Blobs:   blobs,
				Decoder: cropper.NewDecoder(ctx, log, tracer, runtime.GOMAXPROCS(0)),
			})
			defer registry.Shutdown(ctx)

			var upload editor.Upload
			switch {
			case source != "":
				upload, err = editor.StoredUpload(ctx, blobs, source)
			case len(args) == 1:
				upload, err = fileUpload(args[0])
			default:
				return fmt.Errorf("an image or --source is required")
			}
			if err != nil {
				return err
			}

			session, err := registry.Create(ctx, upload)
			if err != nil {
				return err
			}

			// The image loads in the background, nothing can run until it is displayed
			if err := session.Wait(ctx); err != nil {
				return fmt.Errorf("error loading image: %w", err)
			}

			if scriptPath != "" {
				f, err := os.Open(scriptPath)
				if err != nil {
					return err
				}
				defer f.Close()

				s, err := script.Parse(f)
				if err != nil {
					return err
				}

				if err := script.Run(ctx, log, session, s); err != nil {
					return err
				}
			}

			d := &download.File{Dir: outDir}
			if err := session.Export(ctx, d); err != nil {
				return fmt.Errorf("error exporting: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), d.Path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&scriptPath, "script", "s", "", "YAML script of edit steps")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory to export into")
	cmd.Flags().StringVar(&storagePath, "storage", "", "path to the file storage (env EDITCTL_STORAGE_PATH)")
	cmd.Flags().StringVar(&source, "source", "", "id of an image in storage to edit")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level (env EDITCTL_LOG_LEVEL, default \"warn\")")

	return cmd
}

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List the export formats",
		RunE: func(cmd *cobra.Command, args []string) error {
			for i, s := range format.Settings {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%g\n", i, s.Icon, s.MIME, s.Quality)
			}
			return nil
		},
	}
}

func newFiltersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "filters",
		Short: "List the filters and their ranges",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range filter.Names() {
				lo, hi, def, err := filter.Range(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%g..%g\tdefault %g\n", name, lo, hi, def)
			}
			return nil
		},
	}
}

// fileUpload reads an image file as an upload
func fileUpload(path string) (editor.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return editor.Upload{}, err
	}

	mime, err := format.Sniff(data)
	if err != nil {
		return editor.Upload{}, fmt.Errorf("%s: %w", path, err)
	}

	return editor.Upload{
		Name: filepath.Base(path),
		MIME: mime,
		Data: data,
	}, nil
}

// envDefault returns value, falling back to the environment and then def
func envDefault(value, env, def string) string {
	if value != "" {
		return value
	}

	if v := os.Getenv(env); v != "" {
		return v
	}

	return def
}
