package media

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/evanoberholster/imagemeta/exif2"
)

// Kind is the broad media type of a file.
type Kind int

const (
	KindUnknown Kind = iota
	KindImage
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// Target is a media file to annotate.
type Target struct {
	Path string
	Kind Kind
}

// Classify returns the media kind for a path based on its extension.
func Classify(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case imageExt[ext] || rawExt[ext]:
		return KindImage
	case videoExt[ext]:
		return KindVideo
	default:
		return KindUnknown
	}
}

// IsSidecar reports whether path is an XMP sidecar.
func IsSidecar(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xmp")
}

// exifWallClock is how the capture time is handed to the timestamp normalizer.
const exifWallClock = "2006:01:02 15:04:05"

// ReadCaptureTime extracts the capture time of an image without exiftool.
// The result is the EXIF wall-clock string; an offset is appended only when
// the file records one.
func ReadCaptureTime(path string) (string, error) {
	if Classify(path) != KindImage {
		return "", fmt.Errorf("%s is not an image", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	exif, err := decodeExifSafe(file, path)
	if err != nil {
		return "", fmt.Errorf("decode metadata: %w", err)
	}

	ts := exif.DateTimeOriginal()
	if ts.IsZero() {
		ts = exif.CreateDate()
	}
	if ts.IsZero() {
		ts = exif.ModifyDate()
	}
	if ts.IsZero() {
		return "", fmt.Errorf("capture time not found in metadata")
	}

	if ts.Location() == time.UTC {
		return ts.Format(exifWallClock), nil
	}
	return ts.Format(exifWallClock + "-07:00"), nil
}

// decodeExifSafe protects against panics from the decoder on malformed files.
func decodeExifSafe(r io.ReadSeeker, path string) (ex exif2.Exif, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic while decoding %s: %v", path, rec)
		}
	}()

	ex, err = imagemeta.Decode(r)
	return ex, err
}

var imageExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".jpe":  true,
	".png":  true,
	".tif":  true,
	".tiff": true,
	".heic": true,
	".heif": true,
	".hif":  true,
	".avif": true,
	".webp": true,
}

var videoExt = map[string]bool{
	".mp4":  true,
	".m4v":  true,
	".mov":  true,
	".qt":   true,
	".3gp":  true,
	".avi":  true,
	".mkv":  true,
	".mts":  true,
	".m2ts": true,
	".webm": true,
}

var rawExt = map[string]bool{
	".3fr": true, // Hasselblad
	".arw": true, // Sony
	".cr2": true, // Canon
	".cr3": true, // Canon
	".dng": true, // Adobe DNG
	".erf": true, // Epson
	".kdc": true, // Kodak
	".mrw": true, // Minolta
	".nef": true, // Nikon
	".nrw": true, // Nikon
	".orf": true, // Olympus
	".pef": true, // Pentax
	".raf": true, // Fujifilm
	".raw": true, // Panasonic/Leica generic
	".rw2": true, // Panasonic
	".rwl": true, // Leica
	".sr2": true, // Sony
	".srf": true, // Sony
	".srw": true, // Samsung
	".x3f": true, // Sigma
}
