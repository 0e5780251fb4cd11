package models

import "strings"

// UnknownCrop is reported when a classifier label does not name a crop.
const UnknownCrop = "Unknown crop"

// CropFromLabel derives the crop from a classifier label such as
// "Maize_blight" or "Plantain___pestalotiopsis". Labels without an
// underscore separator, or with nothing before it, yield UnknownCrop.
func CropFromLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" || strings.EqualFold(label, UnknownLabel) {
		return UnknownCrop
	}
	crop, _, found := strings.Cut(label, "_")
	crop = strings.TrimSpace(crop)
	if !found || crop == "" {
		return UnknownCrop
	}
	return strings.ToLower(crop)
}
