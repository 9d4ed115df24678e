package models

import (
	"time"
)

// FoodPosition is one food item and its clock-position around the tray center
type FoodPosition struct {
	Food     string `json:"food"`
	Position string `json:"position"` // e.g. "7시"
}

// AnalysisResponse is the envelope returned to callers
type AnalysisResponse struct {
	FoodPositions []FoodPosition `json:"food_positions"`
}

// Upload represents an image stored for rehosting
type Upload struct {
	Name         string    `json:"name"` // generated file name, unique
	OriginalName string    `json:"original_name"`
	URL          string    `json:"url"` // public URL handed to the model provider
	CreatedAt    time.Time `json:"created_at"`
}
