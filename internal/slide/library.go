package slide

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ironsheep/slide-server/internal/problem"
)

// DefaultOpenImages is the number of images kept open when none is
// configured.
const DefaultOpenImages = 32

// Library opens images below a root directory.
//
// Opened images are kept in an LRU keyed by path and modification time, so a
// file replaced on disk is decoded again. Concurrent opens of the same file
// are collapsed into one decode. Library is safe for concurrent use.
type Library struct {
	root     string
	tileSize int
	log      *zap.Logger

	images *lru.Cache[string, *FileImage]
	group  singleflight.Group
}

// NewLibrary returns a library serving files below root.
func NewLibrary(root string, tileSize, openImages int, log *zap.Logger) (*Library, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve image root: %w", err)
	}
	if st, err := os.Stat(abs); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("image root %s is not a directory", abs)
	}
	if openImages <= 0 {
		openImages = DefaultOpenImages
	}
	images, err := lru.New[string, *FileImage](openImages)
	if err != nil {
		return nil, fmt.Errorf("failed to create image cache: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Library{root: abs, tileSize: tileSize, log: log, images: images}, nil
}

// Root returns the absolute root directory.
func (l *Library) Root() string { return l.root }

// Resolve maps a client path to a file below the root. Paths escaping the
// root are reported as not found.
func (l *Library) Resolve(path string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(path))
	full := filepath.Join(l.root, clean)
	rel, err := filepath.Rel(l.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", problem.NotFound("image", path)
	}
	return full, nil
}

// Stat returns the modification key of a client path: the resolved file
// and its modification time in nanoseconds.
func (l *Library) Stat(path string) (string, int64, error) {
	full, err := l.Resolve(path)
	if err != nil {
		return "", 0, err
	}
	st, err := os.Stat(full)
	if err != nil || st.IsDir() {
		return "", 0, problem.NotFound("image", path)
	}
	return full, st.ModTime().UnixNano(), nil
}

// Open returns the image at a client path.
//
// Returns a problem.NotFound error if the path does not name a file below the
// root. Decoding failures are returned as they are.
func (l *Library) Open(path string) (*FileImage, error) {
	full, mtime, err := l.Stat(path)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s@%d", full, mtime)
	if img, ok := l.images.Get(key); ok {
		return img, nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		if img, ok := l.images.Get(key); ok {
			return img, nil
		}
		img, err := OpenFile(full, l.tileSize)
		if err != nil {
			return nil, err
		}
		l.images.Add(key, img)
		l.log.Debug("opened image",
			zap.String("path", path),
			zap.Int("width", img.Width()),
			zap.Int("height", img.Height()),
			zap.Int("tiers", img.Pyramid().Len()))
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*FileImage), nil
}

// Len returns the number of open images.
func (l *Library) Len() int { return l.images.Len() }
