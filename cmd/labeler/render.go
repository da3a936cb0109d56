package main

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/menta2k/yolo-labeler/internal/utils"
	"github.com/menta2k/yolo-labeler/pkg/canvas"
	"github.com/menta2k/yolo-labeler/pkg/geometry"
	"github.com/menta2k/yolo-labeler/pkg/imageio"
	"github.com/menta2k/yolo-labeler/pkg/render"
)

var renderFlags struct {
	out      string
	ext      string
	size     string
	lossless bool
}

var renderCmd = &cobra.Command{
	Use:   "render [folder]",
	Short: "Write preview images with the annotations painted on",
	Long: `Paints every image's boxes and labels and writes the result to the output
folder. With --size the preview is fitted into a viewport of that size the
same way the editor shows it; otherwise it keeps the image resolution.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := folderArg(args)
		if err != nil {
			return err
		}
		out := renderFlags.out
		if out == "" {
			out = cfg.Render.OutputDir
		}
		ext := strings.TrimPrefix(strings.ToLower(renderFlags.ext), ".")
		switch ext {
		case "jpg", "jpeg", "png", "webp":
		default:
			return fmt.Errorf("unsupported output format %q (use jpg, png or webp)", renderFlags.ext)
		}

		var viewport geometry.Size
		if renderFlags.size != "" {
			if _, err := fmt.Sscanf(renderFlags.size, "%dx%d", &viewport.W, &viewport.H); err != nil || viewport.Empty() {
				return fmt.Errorf("invalid --size %q, want WIDTHxHEIGHT", renderFlags.size)
			}
		}

		ws, err := openWorkspace(dir, nil)
		if err != nil {
			return err
		}
		if err := utils.EnsureDir(out); err != nil {
			return err
		}

		style := render.DefaultStyle()
		style.Stroke = cfg.Render.Stroke
		style.Labels = cfg.Render.Labels
		opts := imageio.SaveOptions{Quality: cfg.Render.Quality, Lossless: renderFlags.lossless}

		written := 0
		for i, path := range ws.Images() {
			base := filepath.Base(path)
			img, err := imageio.Load(path)
			if err != nil {
				appLog.Error("%v", err)
				continue
			}
			boxes, err := ws.Annotations(i)
			if err != nil {
				appLog.Error("%s: %v", base, err)
				continue
			}

			var frame *image.NRGBA
			if viewport.Empty() {
				frame = render.Annotated(img, boxes, ws.Classes(), style)
			} else {
				e := canvas.New(canvasConfig(), nil)
				e.SetImage(imageio.SizeOf(img), boxes)
				e.Resize(viewport)
				frame = render.Frame(img, e.Scene(ws.Classes()), style)
			}

			dst := utils.PreviewPath(path, out, ext)
			if err := imageio.Save(frame, dst, opts); err != nil {
				appLog.Error("save %s failed: %v", dst, err)
				continue
			}
			appLog.Info("wrote %s", dst)
			written++
		}
		fmt.Printf("wrote %d previews to %s\n", written, out)
		return nil
	},
}

func init() {
	f := renderCmd.Flags()
	f.StringVarP(&renderFlags.out, "out", "o", "", "output directory (default render.output_dir)")
	f.StringVar(&renderFlags.ext, "ext", "jpg", "output format: jpg|png|webp")
	f.StringVar(&renderFlags.size, "size", "", "fit previews into a WIDTHxHEIGHT viewport")
	f.BoolVar(&renderFlags.lossless, "lossless", false, "WebP lossless mode")
}
