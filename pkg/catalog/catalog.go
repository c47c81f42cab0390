package catalog

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cbodonnell/minegrid/pkg/game/types"
	"github.com/cbodonnell/minegrid/pkg/geometry"
	"github.com/cbodonnell/minegrid/pkg/log"
	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// DefaultAttackerShapes is the attacker shape set used to seed storage.
var DefaultAttackerShapes = []geometry.Footprint{
	{{1, 1}, {1, 1}},
	{{1, 1, 1, 1}},
	{{1, 0, 0}, {1, 1, 1}},
	{{0, 1, 0}, {1, 1, 1}},
	{{0, 1, 1}, {1, 1, 0}},
	{{1, 1, 0}, {0, 1, 1}},
	{{1}},
}

// Catalog supplies the shapes players start with or can be given.
type Catalog interface {
	// ListAttackerShapes returns the ordered attacker footprints.
	ListAttackerShapes(ctx context.Context) ([]geometry.Footprint, error)
	// ListDefenderShapes returns the ordered image-backed defender shapes.
	ListDefenderShapes(ctx context.Context) ([]types.Shape, error)
}

// ShapeSource is the storage the attacker shape set is read from.
type ShapeSource interface {
	ListAttackerShapes(ctx context.Context) ([]geometry.Footprint, error)
}

// AttackerInventory loads the attacker shapes and assigns each a fresh instance id.
func AttackerInventory(ctx context.Context, c Catalog) ([]types.Shape, error) {
	footprints, err := c.ListAttackerShapes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list attacker shapes: %v", err)
	}
	shapes := make([]types.Shape, len(footprints))
	for i, fp := range footprints {
		shapes[i] = types.Shape{
			InstanceID: uuid.NewString(),
			Footprint:  fp.Copy(),
		}
	}
	return shapes, nil
}

type catalog struct {
	shapes    ShapeSource
	imageDir  string
	urlPrefix string
}

type NewCatalogOptions struct {
	// Shapes is the attacker shape storage. When nil DefaultAttackerShapes is used.
	Shapes ShapeSource
	// ImageDir is the directory scanned for defender images
	ImageDir string
	// URLPrefix is prepended to image file names to build asset references
	URLPrefix string
}

// NewCatalog creates a Catalog backed by shape storage and an image directory.
func NewCatalog(opts NewCatalogOptions) Catalog {
	prefix := opts.URLPrefix
	if prefix == "" {
		prefix = "/image"
	}
	return &catalog{
		shapes:    opts.Shapes,
		imageDir:  opts.ImageDir,
		urlPrefix: prefix,
	}
}

func (c *catalog) ListAttackerShapes(ctx context.Context) ([]geometry.Footprint, error) {
	if c.shapes == nil {
		return copyFootprints(DefaultAttackerShapes), nil
	}
	shapes, err := c.shapes.ListAttackerShapes(ctx)
	if err != nil {
		return nil, err
	}
	return shapes, nil
}

var dimensionPattern = regexp.MustCompile(`(\d+)[xX](\d+)`)

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".webp": {},
	".bmp":  {},
}

// ListDefenderShapes scans the image directory. A file named like "crate_2x3.png" is a
// 2 wide, 3 tall shape; files without dimensions are 1x1. Files that cannot be decoded
// as images are skipped.
func (c *catalog) ListDefenderShapes(ctx context.Context) ([]types.Shape, error) {
	if c.imageDir == "" {
		return []types.Shape{}, nil
	}
	entries, err := os.ReadDir(c.imageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read image directory: %v", err)
	}

	shapes := []types.Shape{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if _, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]; !ok {
			continue
		}
		if err := decodeConfig(filepath.Join(c.imageDir, name)); err != nil {
			log.Warn("Skipping image %s: %v", name, err)
			continue
		}

		width, height := dimensionsFromName(name)
		shapes = append(shapes, types.Shape{
			Footprint: solidFootprint(width, height),
			Src:       path.Join(c.urlPrefix, name),
			Width:     width,
			Height:    height,
		})
	}

	sort.Slice(shapes, func(i, j int) bool {
		return shapes[i].Src < shapes[j].Src
	})
	return shapes, nil
}

func decodeConfig(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, _, err := image.DecodeConfig(f); err != nil {
		return fmt.Errorf("failed to decode image header: %v", err)
	}
	return nil
}

func dimensionsFromName(name string) (int, int) {
	match := dimensionPattern.FindStringSubmatch(name)
	if match == nil {
		return 1, 1
	}
	width, err := strconv.Atoi(match[1])
	if err != nil || width < 1 {
		width = 1
	}
	height, err := strconv.Atoi(match[2])
	if err != nil || height < 1 {
		height = 1
	}
	return width, height
}

func solidFootprint(width, height int) geometry.Footprint {
	fp := make(geometry.Footprint, height)
	for r := range fp {
		fp[r] = make([]int, width)
		for c := range fp[r] {
			fp[r][c] = 1
		}
	}
	return fp
}

func copyFootprints(footprints []geometry.Footprint) []geometry.Footprint {
	out := make([]geometry.Footprint, len(footprints))
	for i, fp := range footprints {
		out[i] = fp.Copy()
	}
	return out
}
