package agent

import (
	"strings"

	"github.com/carebridge-ai/companion/models"
)

// categoryKeywords pairs each category with its trigger substrings. Slice
// order mirrors the category declaration order: classification keeps the
// first maximum it sees, so reordering entries changes tie outcomes.
var categoryKeywords = []struct {
	category models.QueryCategory
	keywords []string
}{
	{models.CategorySymptoms, []string{"symptom", "pain", "lump", "discharge", "swelling", "fatigue", "tired", "ache"}},
	{models.CategoryTreatment, []string{"treatment", "surgery", "mastectomy", "lumpectomy", "radiation", "chemo", "therapy"}},
	{models.CategoryMedication, []string{"medicine", "medication", "drug", "tamoxifen", "herceptin", "dose", "prescription"}},
	{models.CategorySideEffects, []string{"side effect", "nausea", "hair loss", "fatigue", "vomiting", "pain", "reaction"}},
	{models.CategoryLifestyle, []string{"exercise", "diet", "sleep", "work", "travel", "activity", "daily life"}},
	{models.CategoryEmotionalSupport, []string{"scared", "anxious", "depressed", "worried", "cope", "support", "family", "feeling"}},
	{models.CategoryNutrition, []string{"food", "eat", "diet", "nutrition", "supplement", "vitamin", "weight"}},
	{models.CategoryFollowUpCare, []string{"follow up", "checkup", "scan", "mammogram", "monitoring", "recurrence", "survivor"}},
}

// Classify scores each category by counting its keywords present in the
// text (case-insensitive substring match) and returns the first category
// with the highest score. Zero matches everywhere means general.
func Classify(text string) models.QueryCategory {
	lower := strings.ToLower(text)

	best := models.CategoryGeneral
	bestScore := 0
	for _, ck := range categoryKeywords {
		score := 0
		for _, kw := range ck.keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = ck.category
		}
	}
	return best
}
