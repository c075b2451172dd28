package facematch

// BoxFromCorners converts an [x1, y1, x2, y2] pixel bbox into a BoundingBox.
// Returns false if the slice is malformed.
func BoxFromCorners(bbox []float64) (BoundingBox, bool) {
	if len(bbox) != 4 {
		return BoundingBox{}, false
	}
	w := bbox[2] - bbox[0]
	h := bbox[3] - bbox[1]
	if w < 0 || h < 0 {
		return BoundingBox{}, false
	}
	return BoundingBox{X: bbox[0], Y: bbox[1], Width: w, Height: h}, true
}

// SizeRatio returns how much of the frame the box fills along its dominant axis:
// max(width/frameWidth, height/frameHeight). Returns 0 for invalid frame dimensions.
func (b BoundingBox) SizeRatio(frameWidth, frameHeight int) float64 {
	if frameWidth <= 0 || frameHeight <= 0 {
		return 0
	}
	return max(b.Width/float64(frameWidth), b.Height/float64(frameHeight))
}
