package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/menta2k/yolo-labeler/internal/utils"
	"github.com/menta2k/yolo-labeler/pkg/annotation"
	"github.com/menta2k/yolo-labeler/pkg/classes"
	"github.com/menta2k/yolo-labeler/pkg/imageio"
)

var scanCmd = &cobra.Command{
	Use:   "scan [folder]",
	Short: "Summarize the images and annotations of a folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := folderArg(args)
		if err != nil {
			return err
		}
		ws, err := openWorkspace(dir, nil)
		if err != nil {
			return err
		}
		reg := ws.Classes()

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "IMAGE\tSIZE\tBOXES")
		perClass := make(map[int]int)
		annotated, total := 0, 0
		for i, path := range ws.Images() {
			size := "?"
			if s, err := imageio.Size(path); err == nil {
				size = fmt.Sprintf("%dx%d", s.W, s.H)
			}
			boxes, err := ws.Annotations(i)
			if err != nil {
				fmt.Fprintf(tw, "%s\t%s\terror: %v\n", filepath.Base(path), size, err)
				continue
			}
			if len(boxes) > 0 {
				annotated++
			}
			for _, b := range boxes {
				perClass[b.ClassID]++
			}
			total += len(boxes)
			fmt.Fprintf(tw, "%s\t%s\t%d\n", filepath.Base(path), size, len(boxes))
		}
		tw.Flush()

		fmt.Printf("\n%d images, %d annotated, %d boxes\n", ws.Len(), annotated, total)
		for id := 0; id < reg.Len(); id++ {
			fmt.Printf("  %d %-20s %d\n", id, reg.Name(id), perClass[id])
			delete(perClass, id)
		}
		for id, n := range perClass {
			fmt.Printf("  %d %-20s %d (not in %s)\n", id, reg.Name(id), n, classes.FileName)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list <image>",
	Short: "Print the annotation list of one image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if !utils.FileExists(path) {
			return fmt.Errorf("image not found: %s", path)
		}
		reg, err := classes.Load(classes.PathIn(filepath.Dir(path)))
		if err != nil {
			return err
		}
		boxes, err := annotation.LoadFile(annotation.PathFor(path))
		if err != nil {
			return err
		}
		for i, b := range boxes {
			fmt.Println(annotation.Describe(i, reg.Name(b.ClassID), b))
		}
		return nil
	},
}
