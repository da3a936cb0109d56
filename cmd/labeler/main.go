// Command labeler edits YOLO bounding-box annotations for a folder of images.
package main

func main() {
	Execute()
}
