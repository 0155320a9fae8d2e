package models

// Speaker is one of the two fixed host roles.
type Speaker string

const (
	// SpeakerA is the primary narrator.
	SpeakerA Speaker = "A"
	// SpeakerB is the reactor / questioner.
	SpeakerB Speaker = "B"
)

// Valid reports whether s is one of the two recognized roles.
func (s Speaker) Valid() bool {
	return s == SpeakerA || s == SpeakerB
}

// Segment is one turn of dialogue. The order of a script is the speaking order.
type Segment struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// ExtractedContent is the transient output of the extraction stage.
type ExtractedContent struct {
	Title     string  `json:"title"`
	Author    *string `json:"author"`
	FullText  string  `json:"fullText"`
	WordCount int     `json:"wordCount"`
	SourceURL string  `json:"sourceUrl"`
}
