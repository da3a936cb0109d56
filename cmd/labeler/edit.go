package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/spf13/cobra"
	"github.com/sqweek/dialog"

	"github.com/menta2k/yolo-labeler/internal/logger"
)

var editProvider string

var editCmd = &cobra.Command{
	Use:   "edit [folder]",
	Short: "Open the annotation editor on a folder of images",
	Long: `Opens a window showing the images of a folder one at a time.

Drag on empty space to draw a box, click a box to select it, drag a selected
box to move it and drag its grips to resize it. Right-click deletes a box.
Without a folder argument a folder picker is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := folderArg(args)
		if err != nil {
			dir, err = dialog.Directory().Title("Open image folder").Browse()
			if errors.Is(err, dialog.ErrCancelled) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to pick folder: %w", err)
			}
		}
		return runEditor(dir, appLog)
	},
}

func init() {
	editCmd.Flags().StringVar(&editProvider, "suggest-with", "", "proposer used by the G key: ollama, llamacpp or saliency (default vision.provider)")
}

func runEditor(dir string, log *logger.Logger) error {
	status := &statusLine{log: log}
	ws, err := openWorkspace(dir, status)
	if err != nil {
		return err
	}

	if cfg.Dataset.WatchClasses {
		if err := ws.WatchClasses(200 * time.Millisecond); err != nil {
			log.Warning("class file changes will not be picked up: %v", err)
		}
	}

	provider := editProvider
	if provider == "" {
		provider = cfg.Vision.Provider
	}
	ed := newEditor(ws, status, provider)
	if ws.Len() > 0 {
		if err := ws.OpenImage(0); err != nil {
			status.Error(err)
		}
	}

	ebiten.SetWindowSize(cfg.Canvas.WindowWidth, cfg.Canvas.WindowHeight)
	ebiten.SetWindowTitle("labeler - " + dir)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowClosingHandled(true)

	if err := ebiten.RunGame(ed); err != nil {
		ws.Close()
		return err
	}
	return nil
}
