package lookup

import (
	"bytes"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder

	"github.com/go-faster/errors"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

// imageFormat returns the registered format name of data. The whole image is
// decoded, so a body cut short after a valid header is rejected too.
func imageFormat(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty image body")
	}
	// Header first: cheap rejection of non-images and absurd dimensions.
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "decode image header")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", errors.Errorf("image has invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return "", errors.Wrapf(err, "decode %s image", format)
	}
	return format, nil
}
