package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/menta2k/yolo-labeler/pkg/imageio"
	"github.com/menta2k/yolo-labeler/pkg/llamacpp"
	"github.com/menta2k/yolo-labeler/pkg/ollama"
	"github.com/menta2k/yolo-labeler/pkg/vision"
	"github.com/menta2k/yolo-labeler/pkg/workspace"
)

const providerSaliency = "saliency"

var suggestFlags struct {
	provider      string
	endpoint      string
	model         string
	minConfidence float64
	createClasses bool
	only          string
	skipAnnotated bool
	check         bool
}

var suggestCmd = &cobra.Command{
	Use:   "suggest [folder]",
	Short: "Pre-label images with boxes proposed by a vision model",
	Long: `Asks a vision model (ollama or a llama.cpp server) for the objects in each
image and appends the proposed boxes to its annotation file. The saliency
provider needs no model and proposes visually prominent regions labelled with
the current class.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := folderArg(args)
		if err != nil {
			return err
		}
		applySuggestFlags(cmd)

		ws, err := openWorkspace(dir, nil)
		if err != nil {
			return err
		}
		labels := ws.Classes().Names()
		if cfg.Vision.CreateClasses {
			labels = nil
		}
		p, err := newProposer(cfg.Vision.Provider, labels, suggestFlags.minConfidence)
		if err != nil {
			return err
		}
		if suggestFlags.check {
			return checkVision(cmd.Context(), ws, p)
		}

		opts := suggestOptions(cfg.Vision.Provider, cfg.Vision.CreateClasses)
		total := 0
		for i, path := range ws.Images() {
			if suggestFlags.only != "" && filepath.Base(path) != suggestFlags.only {
				continue
			}
			if suggestFlags.skipAnnotated {
				if boxes, err := ws.Annotations(i); err == nil && len(boxes) > 0 {
					continue
				}
			}
			if err := ws.OpenImage(i); err != nil {
				appLog.Error("%v", err)
				continue
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), visionTimeout())
			n, err := ws.Suggest(ctx, p, opts)
			cancel()
			if err != nil {
				appLog.Error("%s: %v", filepath.Base(path), err)
				continue
			}
			fmt.Printf("%s: %d boxes\n", filepath.Base(path), n)
			total += n
		}
		if err := ws.Close(); err != nil {
			return err
		}
		fmt.Printf("added %d boxes\n", total)
		return nil
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models served by the configured vision provider",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		applySuggestFlags(cmd)
		var (
			models []string
			err    error
		)
		switch strings.ToLower(cfg.Vision.Provider) {
		case "ollama":
			c, cerr := ollama.NewClient(cfg.Vision.Endpoint, visionTimeout())
			if cerr != nil {
				return cerr
			}
			models, err = c.Models(cmd.Context())
		case "llamacpp":
			c, cerr := llamacpp.NewClient(cfg.Vision.Endpoint, visionTimeout())
			if cerr != nil {
				return cerr
			}
			models, err = c.Models(cmd.Context())
		default:
			return fmt.Errorf("provider %q has no models", cfg.Vision.Provider)
		}
		if err != nil {
			return err
		}
		for _, m := range models {
			fmt.Println(m)
		}
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{suggestCmd, modelsCmd} {
		cmd.Flags().StringVar(&suggestFlags.provider, "provider", "", "ollama, llamacpp or saliency (default vision.provider)")
		cmd.Flags().StringVar(&suggestFlags.endpoint, "endpoint", "", "server URL (default vision.endpoint)")
	}
	f := suggestCmd.Flags()
	f.StringVar(&suggestFlags.model, "model", "", "model name (default vision.model)")
	f.Float64Var(&suggestFlags.minConfidence, "min-confidence", 0.3, "drop proposals below this confidence")
	f.BoolVar(&suggestFlags.createClasses, "create-classes", false, "add unknown labels to classes.txt")
	f.StringVar(&suggestFlags.only, "image", "", "only process this image file name")
	f.BoolVar(&suggestFlags.skipAnnotated, "skip-annotated", false, "skip images that already have boxes")
	f.BoolVar(&suggestFlags.check, "check", false, "ask the model to describe the first image and exit")
}

func applySuggestFlags(cmd *cobra.Command) {
	if suggestFlags.provider != "" {
		cfg.Vision.Provider = suggestFlags.provider
	}
	if suggestFlags.endpoint != "" {
		cfg.Vision.Endpoint = suggestFlags.endpoint
	}
	if suggestFlags.model != "" {
		cfg.Vision.Model = suggestFlags.model
	}
	if cmd.Flags().Changed("create-classes") {
		cfg.Vision.CreateClasses = suggestFlags.createClasses
	}
}

// newProposer builds the proposer named by provider from the vision config
func newProposer(provider string, labels []string, minConfidence float64) (vision.Proposer, error) {
	opts := vision.Options{
		Model:         cfg.Vision.Model,
		Labels:        labels,
		MinConfidence: minConfidence,
		MaxDimension:  cfg.Vision.MaxDimension,
		Quality:       cfg.Vision.Quality,
	}

	switch strings.ToLower(provider) {
	case "ollama":
		c, err := ollama.NewClient(cfg.Vision.Endpoint, visionTimeout())
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return vision.NewDetector(c, opts), nil
	case "llamacpp":
		c, err := llamacpp.NewClient(cfg.Vision.Endpoint, visionTimeout())
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return vision.NewDetector(c, opts), nil
	case providerSaliency:
		return vision.NewSaliency(vision.DefaultSaliencyOptions()), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (use ollama, llamacpp or saliency)", provider)
	}
}

// suggestOptions assigns saliency regions, which carry no real label, to
// the current class
func suggestOptions(provider string, createClasses bool) workspace.SuggestOptions {
	if strings.EqualFold(provider, providerSaliency) {
		return workspace.SuggestOptions{UseCurrentClass: true}
	}
	return workspace.SuggestOptions{CreateClasses: createClasses}
}

func checkVision(ctx context.Context, ws *workspace.Workspace, p vision.Proposer) error {
	d, ok := p.(*vision.Detector)
	if !ok {
		return fmt.Errorf("--check needs a model provider")
	}
	images := ws.Images()
	if len(images) == 0 {
		return workspace.ErrNoImages
	}
	img, err := imageio.Load(images[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, visionTimeout())
	defer cancel()
	answer, err := d.TestVision(ctx, img)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", filepath.Base(images[0]), answer)
	return nil
}
