package models

import "time"

// Disclaimer is appended to every chat response. Educational information
// only, never a substitute for a care team.
const Disclaimer = "This information is for educational purposes only and should not replace professional medical advice. Please consult your healthcare provider for personalized guidance."

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatMessage is a single turn in a conversation.
type ChatMessage struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

type QueryCategory string

const (
	CategorySymptoms         QueryCategory = "symptoms"
	CategoryTreatment        QueryCategory = "treatment"
	CategoryMedication       QueryCategory = "medication"
	CategorySideEffects      QueryCategory = "side_effects"
	CategoryLifestyle        QueryCategory = "lifestyle"
	CategoryEmotionalSupport QueryCategory = "emotional_support"
	CategoryNutrition        QueryCategory = "nutrition"
	CategoryFollowUpCare     QueryCategory = "follow_up_care"
	CategoryGeneral          QueryCategory = "general"
)

// QueryCategories lists every category in declaration order. Classification
// tie-breaking depends on this order; do not reorder.
var QueryCategories = []QueryCategory{
	CategorySymptoms,
	CategoryTreatment,
	CategoryMedication,
	CategorySideEffects,
	CategoryLifestyle,
	CategoryEmotionalSupport,
	CategoryNutrition,
	CategoryFollowUpCare,
	CategoryGeneral,
}

// ValidCategory reports whether s names a known query category.
func ValidCategory(s string) bool {
	for _, c := range QueryCategories {
		if string(c) == s {
			return true
		}
	}
	return false
}

type ContentType string

const (
	ContentMedicalArticle  ContentType = "medical_article"
	ContentFAQ             ContentType = "faq"
	ContentPatientGuide    ContentType = "patient_guide"
	ContentResearchSummary ContentType = "research_summary"
	ContentSupportResource ContentType = "support_resource"
)

var ContentTypes = []ContentType{
	ContentMedicalArticle,
	ContentFAQ,
	ContentPatientGuide,
	ContentResearchSummary,
	ContentSupportResource,
}

// ValidContentType reports whether s names a known content type.
func ValidContentType(s string) bool {
	for _, ct := range ContentTypes {
		if string(ct) == s {
			return true
		}
	}
	return false
}

// KnowledgeDocument is a document in the knowledge base. Immutable once
// indexed except through explicit update/delete.
type KnowledgeDocument struct {
	ID            string                 `json:"id,omitempty"`
	Title         string                 `json:"title"`
	Content       string                 `json:"content"`
	ContentType   ContentType            `json:"content_type"`
	Category      QueryCategory          `json:"category"`
	SourceURL     string                 `json:"source_url,omitempty"`
	Author        string                 `json:"author,omitempty"`
	PublishedDate *time.Time             `json:"published_date,omitempty"`
	Tags          []string               `json:"tags,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Embedding     []float32              `json:"embedding,omitempty"`
}

// SearchResult is one ranked hit from the knowledge base. RelevanceScore is
// on the engine's scale; when vector and keyword scores are blended it is
// not guaranteed to stay within [0,1].
type SearchResult struct {
	DocumentID     string        `json:"document_id"`
	Title          string        `json:"title"`
	ContentExcerpt string        `json:"content_excerpt"`
	RelevanceScore float64       `json:"relevance_score"`
	ContentType    ContentType   `json:"content_type"`
	Category       QueryCategory `json:"category"`
	SourceURL      string        `json:"source_url,omitempty"`
}

// SourceCitation points a chat answer back at a knowledge base document.
type SourceCitation struct {
	Title          string      `json:"title"`
	ContentType    ContentType `json:"content_type"`
	RelevanceScore float64     `json:"relevance_score"`
	SourceURL      string      `json:"source_url,omitempty"`
	Excerpt        string      `json:"excerpt,omitempty"`
}

// ChatResponse is the envelope returned for every chat turn.
type ChatResponse struct {
	Answer          string           `json:"answer"`
	SessionID       string           `json:"session_id"`
	QueryCategory   QueryCategory    `json:"query_category"`
	Sources         []SourceCitation `json:"sources"`
	ConfidenceScore float64          `json:"confidence_score"`
	ResponseTimeMs  float64          `json:"response_time_ms"`
	Disclaimer      string           `json:"disclaimer"`
}
