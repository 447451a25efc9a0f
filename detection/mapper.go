package detection

// DefaultInferenceSize is the square resolution the detector consumes
const DefaultInferenceSize = 640

// MapBox converts a raw detector box from inference space to the original
// media's pixel space. The axes scale independently because the source is
// resized to a square before inference regardless of its aspect ratio.
func MapBox(raw RawDetection, inference, original Size) BBox {
	sx := axisScale(original.Width, inference.Width)
	sy := axisScale(original.Height, inference.Height)

	x1 := raw.X1 * sx
	y1 := raw.Y1 * sy
	x2 := raw.X2 * sx
	y2 := raw.Y2 * sy

	return BBox{
		XCenter: (x1 + x2) / 2,
		YCenter: (y1 + y2) / 2,
		Width:   x2 - x1,
		Height:  y2 - y1,
	}
}

// axisScale returns original/inference, or 1 when the inference side is zero
func axisScale(original, inference int) float64 {
	if inference <= 0 {
		return 1
	}
	return float64(original) / float64(inference)
}

// MapDetections maps every raw detection into original-space detections
// with class names resolved through the detector's class table
func MapDetections(raws []RawDetection, names map[int]string, inference, original Size) []Detection {
	detections := make([]Detection, 0, len(raws))
	for _, raw := range raws {
		detections = append(detections, Detection{
			ClassName:  lookupName(names, raw.ClassID),
			Confidence: raw.Score,
			BBox:       MapBox(raw, inference, original),
		})
	}
	return detections
}
