package media

import (
	"fmt"
	"image"

	"github.com/corona10/goimagehash"
)

// PerceptualHash returns the 64-bit perceptual hash of img as hex
func PerceptualHash(img image.Image) (string, error) {
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return "", fmt.Errorf("failed to calculate perceptual hash: %w", err)
	}
	return fmt.Sprintf("%016x", hash.GetHash()), nil
}
