package main

import (
	"path/filepath"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
)

// We supply an ID because fyne wants one for its preferences API
const appID = "io.github.insar-tools.ddphase"

// ResultImage is a rendered figure to display together with its width/height ratio.
type ResultImage struct {
	Path   string
	Aspect float64
}

// buildResultWindows creates one window per image. The first image is the
// main window, sized size pixels wide; the rest are secondary windows.
func buildResultWindows(a fyne.App, title string, size int, images []ResultImage) []fyne.Window {
	windows := make([]fyne.Window, 0, len(images))
	for i, ri := range images {
		img := canvas.NewImageFromFile(ri.Path)
		img.FillMode = canvas.ImageFillContain

		aspect := ri.Aspect
		if aspect <= 0 {
			aspect = 1
		}
		winSize := fyne.NewSize(float32(size), float32(size)/float32(aspect))

		var w fyne.Window
		if i == 0 {
			w = a.NewWindow(title)
			w.SetPadded(false)
			w.SetContent(container.NewStack(img))
		} else {
			w = a.NewWindow(filepath.Base(ri.Path))
			img.SetMinSize(winSize)
			w.SetContent(container.NewCenter(img))
		}
		w.Resize(winSize)
		windows = append(windows, w)
	}
	return windows
}

// showResults displays the images and blocks until the main window is closed.
func showResults(title string, size int, images []ResultImage) {
	if len(images) == 0 {
		return
	}
	myApp := app.NewWithID(appID)
	windows := buildResultWindows(myApp, title, size, images)

	windows[0].CenterOnScreen()
	windows[0].SetMaster()
	for _, w := range windows[1:] {
		w.Show()
	}
	windows[0].ShowAndRun()
}
