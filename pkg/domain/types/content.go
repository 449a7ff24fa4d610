package types

import "fmt"

// ContentType represents the structural classification of analyzed content
type ContentType string

const (
	ContentTypeArticle        ContentType = "article"
	ContentTypeTechnical      ContentType = "technical"
	ContentTypeStructuredData ContentType = "structured_data"
	ContentTypeConversational ContentType = "conversational"
	ContentTypeMixed          ContentType = "mixed"
	ContentTypeUnknown        ContentType = "unknown"
)

// AllContentTypes returns all valid content types
func AllContentTypes() []ContentType {
	return []ContentType{
		ContentTypeArticle,
		ContentTypeTechnical,
		ContentTypeStructuredData,
		ContentTypeConversational,
		ContentTypeMixed,
		ContentTypeUnknown,
	}
}

// IsValid checks if the content type is valid
func (t ContentType) IsValid() bool {
	switch t {
	case ContentTypeArticle,
		ContentTypeTechnical,
		ContentTypeStructuredData,
		ContentTypeConversational,
		ContentTypeMixed,
		ContentTypeUnknown:
		return true
	default:
		return false
	}
}

// String returns the string representation of the content type
func (t ContentType) String() string {
	return string(t)
}

// ParseContentType parses a string into a ContentType
func ParseContentType(s string) (ContentType, error) {
	t := ContentType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid content type: %s", s)
	}
	return t, nil
}

// Complexity represents the estimated processing complexity of content
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// AllComplexities returns all valid complexity levels
func AllComplexities() []Complexity {
	return []Complexity{
		ComplexitySimple,
		ComplexityMedium,
		ComplexityComplex,
	}
}

// IsValid checks if the complexity level is valid
func (c Complexity) IsValid() bool {
	switch c {
	case ComplexitySimple, ComplexityMedium, ComplexityComplex:
		return true
	default:
		return false
	}
}

// String returns the string representation of the complexity level
func (c Complexity) String() string {
	return string(c)
}

// ParseComplexity parses a string into a Complexity
func ParseComplexity(s string) (Complexity, error) {
	c := Complexity(s)
	if !c.IsValid() {
		return "", fmt.Errorf("invalid complexity: %s", s)
	}
	return c, nil
}
