// Package render holds the pixel grids and does all pixel-level picker work.
package render

// Preview surface defaults
const (
	// Source pixels per preview side; odd so one cell sits at the center
	DefaultPreviewSize = 11

	// Preview pixels per source pixel
	DefaultZoom = 10

	// Upper bound on the magnified side, keeps a bad config from allocating huge surfaces
	MaxSurfaceSide = 4096
)
