package main

import "github.com/heathweaver/video-transcription/cmd"

func main() {
	cmd.Execute()
}
