// Package sequencer picks the next photo to present for cropping.
//
// Photos are walked left to right. After a crop is confirmed at index k,
// the scan resumes strictly after k and only wraps to the start when
// nothing pending remains to the right.
package sequencer

import "github.com/photoprep/photoprep/internal/models"

// First returns the lowest pending index
func First(photos []models.PhotoMetadata) (int, bool) {
	return scan(photos, 0, len(photos))
}

// Next returns the first pending index after `after`, falling back to a
// full scan. Pass -1 to scan from the start.
func Next(photos []models.PhotoMetadata, after int) (int, bool) {
	if after >= 0 {
		if i, ok := scan(photos, after+1, len(photos)); ok {
			return i, true
		}
	}
	return First(photos)
}

// Valid reports whether index still points at a pending photo. A deferred
// open uses it to detect a target removed in the meantime.
func Valid(photos []models.PhotoMetadata, index int) bool {
	return index >= 0 && index < len(photos) && photos[index].Pending()
}

// After returns the first pending index strictly after `after` without
// wrapping around
func After(photos []models.PhotoMetadata, after int) (int, bool) {
	return scan(photos, after+1, len(photos))
}

func scan(photos []models.PhotoMetadata, from, to int) (int, bool) {
	if from < 0 {
		from = 0
	}
	for i := from; i < to && i < len(photos); i++ {
		if photos[i].Pending() {
			return i, true
		}
	}
	return -1, false
}
