package main

import (
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildResultWindows(t *testing.T) {
	a := test.NewApp()
	defer a.Quit()

	images := []ResultImage{
		{Path: "out/A-B.jpeg", Aspect: 3},
		{Path: "out/A-B_map.jpeg", Aspect: 6.0 / 9.0},
	}
	windows := buildResultWindows(a, "A-B", 900, images)
	require.Len(t, windows, 2)

	assert.Equal(t, "A-B", windows[0].Title())
	assert.Equal(t, "A-B_map.jpeg", windows[1].Title())

	content, ok := windows[0].Content().(*fyne.Container)
	require.True(t, ok)
	require.Len(t, content.Objects, 1)
	img, ok := content.Objects[0].(*canvas.Image)
	require.True(t, ok)
	assert.Equal(t, "out/A-B.jpeg", img.File)
	assert.Equal(t, canvas.ImageFillContain, img.FillMode)

	assert.Empty(t, buildResultWindows(a, "none", 900, nil))
}
