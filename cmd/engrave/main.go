package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/banshee-data/crystal.engrave/internal/cloud"
	"github.com/banshee-data/crystal.engrave/internal/config"
	"github.com/banshee-data/crystal.engrave/internal/depthapi"
	"github.com/banshee-data/crystal.engrave/internal/projectstore"
	"github.com/banshee-data/crystal.engrave/internal/session"
)

const version = "0.1.0"

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	switch command {
	case "capture":
		handleCapture(args)
	case "scale":
		handleScale(args)
	case "clip":
		handleClip(args)
	case "export":
		handleExport(args)
	case "projects":
		handleProjects(args)
	case "version":
		fmt.Printf("engrave version %s\n", version)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func loadConfig(path string) *config.TuningConfig {
	if path == "" {
		return config.EmptyTuningConfig()
	}
	cfg, err := config.LoadTuningConfig(path)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	return cfg
}

// loadSession restores a project file into a fresh session.
func loadSession(cfg *config.TuningConfig, projectPath string) *session.Session {
	data, err := os.ReadFile(projectPath)
	if err != nil {
		log.Fatalf("read project: %v", err)
	}
	s := session.New(cfg, nil, nil)
	if err := s.LoadProject(data); err != nil {
		log.Fatalf("load project: %v", err)
	}
	return s
}

func writeProject(s *session.Session, path string) {
	data, err := s.SaveProject()
	if err != nil {
		log.Fatalf("save project: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Fatalf("write project: %v", err)
	}
	log.Printf("wrote %s (%d bytes)", path, len(data))
}

func handleCapture(args []string) {
	fs := flag.NewFlagSet("capture", flag.ExitOnError)
	imagePath := fs.String("image", "", "source image to send to the depth service")
	service := fs.String("service", "", "depth service base URL (overrides config)")
	configPath := fs.String("config", "", "tuning config file")
	out := fs.String("out", "project.json", "output project file")
	timeout := fs.Duration("timeout", 120*time.Second, "depth service timeout")
	fs.Parse(args)

	if *imagePath == "" {
		log.Fatal("capture requires --image")
	}
	cfg := loadConfig(*configPath)
	base := *service
	if base == "" {
		base = cfg.GetDepthServiceURL()
	}
	if base == "" {
		log.Fatal("capture requires --service or depth_service_url in config")
	}

	raw, err := os.ReadFile(*imagePath)
	if err != nil {
		log.Fatalf("read image: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	s := session.New(cfg, depthapi.NewClient(base, nil), nil)
	if err := s.CaptureFromService(ctx, raw); err != nil {
		log.Fatalf("capture: %v", err)
	}
	log.Printf("reconstructed %d points", len(s.Object().Points))
	writeProject(s, *out)
}

func handleScale(args []string) {
	fs := flag.NewFlagSet("scale", flag.ExitOnError)
	projectPath := fs.String("project", "", "project file to edit")
	factor := fs.Float64("factor", 1.0, "uniform scale to bake into resolution")
	configPath := fs.String("config", "", "tuning config file")
	out := fs.String("out", "", "output project file (default: overwrite input)")
	fs.Parse(args)

	if *projectPath == "" {
		log.Fatal("scale requires --project")
	}
	s := loadSession(loadConfig(*configPath), *projectPath)
	if err := s.SetUniformScale(*factor); err != nil {
		log.Fatalf("set scale: %v", err)
	}
	if err := s.CommitScale(); err != nil {
		log.Fatalf("bake scale: %v", err)
	}
	log.Printf("baked %gx scale, %d points", *factor, len(s.Object().Points))

	dest := *out
	if dest == "" {
		dest = *projectPath
	}
	writeProject(s, dest)
}

func handleClip(args []string) {
	fs := flag.NewFlagSet("clip", flag.ExitOnError)
	projectPath := fs.String("project", "", "project file to edit")
	width := fs.Float64("width", 0, "crystal width")
	height := fs.Float64("height", 0, "crystal height")
	depth := fs.Float64("depth", 0, "crystal depth")
	configPath := fs.String("config", "", "tuning config file")
	out := fs.String("out", "", "output project file (default: overwrite input)")
	fs.Parse(args)

	if *projectPath == "" {
		log.Fatal("clip requires --project")
	}
	if *width <= 0 || *height <= 0 || *depth <= 0 {
		log.Fatal("clip requires positive --width, --height and --depth")
	}
	s := loadSession(loadConfig(*configPath), *projectPath)
	if err := s.Clip(cloud.Box{Width: *width, Height: *height, Depth: *depth}); err != nil {
		log.Fatalf("clip: %v", err)
	}
	log.Printf("clipped to %gx%gx%g, %d points remain", *width, *height, *depth, len(s.Object().Points))

	dest := *out
	if dest == "" {
		dest = *projectPath
	}
	writeProject(s, dest)
}

func handleExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	projectPath := fs.String("project", "", "project file to export")
	configPath := fs.String("config", "", "tuning config file")
	out := fs.String("out", "points.dxf", "output DXF file")
	fs.Parse(args)

	if *projectPath == "" {
		log.Fatal("export requires --project")
	}
	s := loadSession(loadConfig(*configPath), *projectPath)

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("create output: %v", err)
	}
	defer f.Close()
	if err := s.ExportVector(f); err != nil {
		log.Fatalf("export: %v", err)
	}
	log.Printf("wrote %s", *out)
}

func handleProjects(args []string) {
	fs := flag.NewFlagSet("projects", flag.ExitOnError)
	dbPath := fs.String("db", "projects.db", "project store database")
	save := fs.String("save", "", "project file to store")
	name := fs.String("name", "", "name for the stored project")
	load := fs.String("load", "", "project id to extract")
	out := fs.String("out", "project.json", "output file for --load")
	remove := fs.String("delete", "", "project id to delete")
	fs.Parse(args)

	store, err := projectstore.Open(*dbPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	switch {
	case *save != "":
		doc, err := os.ReadFile(*save)
		if err != nil {
			log.Fatalf("read project: %v", err)
		}
		n := *name
		if n == "" {
			n = *save
		}
		p := &projectstore.SavedProject{Name: n, Document: doc}
		if err := store.Insert(p); err != nil {
			log.Fatalf("store project: %v", err)
		}
		fmt.Println(p.ProjectID)

	case *load != "":
		p, err := store.Get(*load)
		if err != nil {
			log.Fatalf("get project: %v", err)
		}
		if err := os.WriteFile(*out, p.Document, 0o644); err != nil {
			log.Fatalf("write project: %v", err)
		}
		log.Printf("wrote %s", *out)

	case *remove != "":
		if err := store.Delete(*remove); err != nil {
			log.Fatalf("delete project: %v", err)
		}

	default:
		list, err := store.List()
		if err != nil {
			log.Fatalf("list projects: %v", err)
		}
		for _, p := range list {
			ts := p.CreatedAtNs
			if p.UpdatedAtNs != nil {
				ts = *p.UpdatedAtNs
			}
			fmt.Printf("%s  %s  %s\n", p.ProjectID, time.Unix(0, ts).Format(time.RFC3339), p.Name)
		}
	}
}

func printUsage() {
	fmt.Println(`engrave - point cloud engraving pipeline

Usage: engrave <command> [options]

Commands:
  capture    Build a point cloud from an image via the depth service
  scale      Bake a uniform scale into grid resolution
  clip       Clip the cloud to a crystal volume
  export     Write the cloud as DXF point entities
  projects   Manage the saved-project store
  version    Show engrave version
  help       Show this help message

Examples:
  # Capture a photo into a project file
  engrave capture --image photo.png --service http://localhost:8080 --out giraffe.json

  # Double the sampling resolution, then clip to an 80x80x100 crystal
  engrave scale --project giraffe.json --factor 2
  engrave clip --project giraffe.json --width 80 --height 80 --depth 100

  # Export for fabrication
  engrave export --project giraffe.json --out giraffe.dxf

  # Keep projects in a local store
  engrave projects --db projects.db --save giraffe.json --name "giraffe"
  engrave projects --db projects.db`)
}
