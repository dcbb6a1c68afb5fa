package service

import (
	"math/rand"
	"strings"

	"github.com/jklovins/mediagen/internal/models"
)

// promptCategoryOrder fixes the insertion points of the sentence
// template. Categories with no active options are omitted from the
// prompt and the recorded parameters.
var promptCategoryOrder = []models.ParameterCategory{
	models.CategorySetting,
	models.CategoryActivity,
	models.CategoryTimeOfDay,
	models.CategoryWeather,
	models.CategoryMood,
	models.CategoryClothing,
	models.CategoryStyle,
}

// PromptComposer builds generation prompts from the parameter catalog.
// The randomness source is injected so draws are reproducible in tests.
type PromptComposer struct {
	rng *rand.Rand
}

func NewPromptComposer(rng *rand.Rand) *PromptComposer {
	return &PromptComposer{rng: rng}
}

// Compose selects one option per category by weighted draw and renders
// the natural-language prompt plus the structured (category, value)
// record of the same selection.
func (c *PromptComposer) Compose(options []models.ParameterOption, settings *models.GenerationSettings) (string, []models.GenerationParameter) {
	selected := make(map[models.ParameterCategory]string)
	var params []models.GenerationParameter

	for _, category := range promptCategoryOrder {
		var candidates []models.ParameterOption
		for _, opt := range options {
			if opt.Category == category {
				candidates = append(candidates, opt)
			}
		}
		if len(candidates) == 0 {
			continue
		}

		value := c.pickWeighted(candidates).Value
		selected[category] = value
		params = append(params, models.GenerationParameter{
			Category: category,
			Value:    value,
		})
	}

	var b strings.Builder
	b.WriteString("A photorealistic portrait of a person")

	if v, ok := selected[models.CategorySetting]; ok {
		b.WriteString(" in a " + v)
	}
	if v, ok := selected[models.CategoryActivity]; ok {
		b.WriteString(", " + strings.ToLower(v))
	}
	if v, ok := selected[models.CategoryTimeOfDay]; ok {
		b.WriteString(", during " + strings.ToLower(v))
	}
	if v, ok := selected[models.CategoryWeather]; ok {
		b.WriteString(", " + strings.ToLower(v) + " weather")
	}
	if v, ok := selected[models.CategoryMood]; ok {
		b.WriteString(". " + v + " mood")
	}
	if v, ok := selected[models.CategoryClothing]; ok {
		b.WriteString(". Wearing " + strings.ToLower(v) + " attire")
	}
	if v, ok := selected[models.CategoryStyle]; ok {
		b.WriteString(". " + v + " style")
	}

	b.WriteString(". " + settings.SafetyTier + ". High quality, professional photography.")

	return b.String(), params
}

// pickWeighted draws one option with probability proportional to its
// weight; each weight unit is one equally likely ticket.
func (c *PromptComposer) pickWeighted(candidates []models.ParameterOption) models.ParameterOption {
	total := 0
	for _, opt := range candidates {
		total += optionWeight(opt)
	}

	ticket := c.rng.Intn(total)
	for _, opt := range candidates {
		ticket -= optionWeight(opt)
		if ticket < 0 {
			return opt
		}
	}
	return candidates[len(candidates)-1]
}

func optionWeight(opt models.ParameterOption) int {
	if opt.Weight < 1 {
		return 1
	}
	return opt.Weight
}
