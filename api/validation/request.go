package validation

import (
	"fmt"
	"unicode/utf8"

	"imageGateway/api/models"
)

const (
	MaxPromptLen = 1000
	MaxImages    = 10
	MaxImageSize = 10 * 1024 * 1024
)

var allowedStyles = map[string]bool{
	"":           true,
	"realistic":  true,
	"anime":      true,
	"sketch":     true,
	"watercolor": true,
}

var allowedAspectRatios = map[string]bool{
	"":     true,
	"1:1":  true,
	"4:3":  true,
	"3:4":  true,
	"16:9": true,
	"9:16": true,
}

var allowedSizes = map[string]bool{
	"":          true,
	"512x512":   true,
	"768x768":   true,
	"1024x768":  true,
	"768x1024":  true,
	"1024x1024": true,
}

var allowedKinds = map[models.TaskKind]bool{
	models.KindGeneration: true,
	models.KindEdit:       true,
	models.KindRefinement: true,
}

// ValidateParams checks kind, prompt and the optional enum parameters,
// accumulating every failure. imageCount is the number of uploaded
// reference images; edit and refinement require at least one.
func ValidateParams(kind models.TaskKind, prompt, style, aspectRatio, size string, imageCount int) *Errors {
	verr := &Errors{}

	if !allowedKinds[kind] {
		verr.Add(fmt.Sprintf("Unknown task kind %q", kind))
	}

	if prompt == "" {
		verr.Add("Prompt is required")
	} else if utf8.RuneCountInString(prompt) > MaxPromptLen {
		verr.Add(fmt.Sprintf("Prompt exceeds %d characters", MaxPromptLen))
	}

	if !allowedStyles[style] {
		verr.Add(fmt.Sprintf("Unknown style %q", style))
	}
	if !allowedAspectRatios[aspectRatio] {
		verr.Add(fmt.Sprintf("Unknown aspect ratio %q", aspectRatio))
	}
	if !allowedSizes[size] {
		verr.Add(fmt.Sprintf("Unknown size %q", size))
	}

	if kind == models.KindEdit || kind == models.KindRefinement {
		if imageCount == 0 {
			verr.Add("At least one image is required")
		}
	}
	if imageCount > MaxImages {
		verr.Add(fmt.Sprintf("At most %d images are allowed", MaxImages))
	}

	return verr
}
