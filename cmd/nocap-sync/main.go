// Command nocap-sync edits cloud projects from the command line through a
// headless editing session.
//
//	nocap-sync import -server URL -project ID -file design.json
//	nocap-sync render -server URL -project ID -out preview.png
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"nocap-editor/config"
	"nocap-editor/document"
	"nocap-editor/persistence"
	"nocap-editor/session"
	"nocap-editor/stores"
	"nocap-editor/stores/remote"
	"nocap-editor/surface/headless"
	"nocap-editor/thumbnail"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type commonFlags struct {
	configPath string
	server     string
	token      string
	project    string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", os.Getenv("CONFIG_PATH"), "Path to a TOML config file.")
	fs.StringVar(&c.server, "server", os.Getenv("NOCAP_SERVER"), "Base URL of the project API.")
	fs.StringVar(&c.token, "token", os.Getenv("NOCAP_TOKEN"), "Bearer token for the project API.")
	fs.StringVar(&c.project, "project", "", "Project id.")
}

func (c *commonFlags) validate() error {
	if c.server == "" {
		return errors.New("-server is required")
	}
	if c.project == "" {
		return errors.New("-project is required")
	}
	return nil
}

// importObjects appends every object of the snapshot in file to the project
// and pushes the result before returning.
func importObjects(ctx context.Context, cfg config.Config, c commonFlags, file string) (int, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return 0, err
	}
	doc, err := document.Deserialize(document.Snapshot(data))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", file, err)
	}

	projects, err := remote.NewStore(c.server, remote.WithToken(c.token))
	if err != nil {
		return 0, err
	}
	kv, err := stores.GetLocalStore(cfg.Storage)
	if err != nil {
		return 0, err
	}
	defer stores.Close(kv)

	renderer := thumbnail.New(cfg.Editor.ThumbnailWidth)
	bridge := persistence.New(kv, projects,
		persistence.WithDebounceWindow(time.Duration(cfg.Editor.DebounceWindow)),
		persistence.WithRemoteTimeout(time.Duration(cfg.Editor.RemoteTimeout)),
		persistence.WithThumbnailer(renderer.DataURL),
	)
	defer bridge.Close()

	s, err := session.Restore(ctx, bridge, projects, session.WithHistoryLimit(cfg.Editor.HistoryLimit))
	if err != nil {
		return 0, err
	}
	if err := s.AttachSurface(ctx, headless.New()); err != nil {
		return 0, err
	}
	defer s.Detach()

	if err := s.LoadFromProject(ctx, c.project); err != nil {
		return 0, err
	}
	if len(doc.Objects) == 0 {
		return 0, nil
	}
	if err := s.Add(doc.Objects...); err != nil {
		return 0, err
	}
	if err := bridge.Flush(ctx); err != nil {
		return 0, err
	}
	return len(doc.Objects), nil
}

// renderProject writes a PNG preview of the project's current content.
func renderProject(ctx context.Context, cfg config.Config, c commonFlags, out string, width int) error {
	projects, err := remote.NewStore(c.server, remote.WithToken(c.token))
	if err != nil {
		return err
	}
	p, err := projects.FetchProject(ctx, c.project)
	if err != nil {
		return err
	}
	doc, err := document.Deserialize(document.Snapshot(p.Content))
	if err != nil {
		return err
	}
	if width <= 0 {
		width = cfg.Editor.ThumbnailWidth
	}
	png, err := thumbnail.New(width).PNG(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(out, png, 0644)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: nocap-sync <import|render> [flags]")
	os.Exit(2)
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found")
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if len(os.Args) < 2 {
		usage()
	}

	var c commonFlags
	fs := flag.NewFlagSet(os.Args[1], flag.ExitOnError)
	c.register(fs)
	logLevel := fs.String("loglevel", "warn", "The log level (debug, info, warn, error).")

	var run func(context.Context, config.Config) error
	switch os.Args[1] {
	case "import":
		file := fs.String("file", "", "Snapshot file whose objects are appended.")
		run = func(ctx context.Context, cfg config.Config) error {
			n, err := importObjects(ctx, cfg, c, *file)
			if err == nil {
				fmt.Printf("imported %d objects into %s\n", n, c.project)
			}
			return err
		}
	case "render":
		out := fs.String("out", "preview.png", "Output PNG path.")
		width := fs.Int("width", 0, "Output width in pixels. Defaults to the configured thumbnail width.")
		run = func(ctx context.Context, cfg config.Config) error {
			return renderProject(ctx, cfg, c, *out, *width)
		}
	default:
		usage()
	}
	fs.Parse(os.Args[2:])

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)

	if err := c.validate(); err != nil {
		logrus.Fatal(err)
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := run(ctx, cfg); err != nil {
		logrus.WithError(err).WithField("project_id", c.project).Fatal(os.Args[1] + " failed")
	}
}
