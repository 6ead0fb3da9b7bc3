package model

// Reference points a meaning at an encyclopedia article.
type Reference struct {
	Title            string `json:"title"`
	Link             string `json:"link"`
	ShortDescription string `json:"short_desc"`
	PageID           int    `json:"page_id,omitempty"`
	Failed           bool   `json:"failed,omitempty"`
}

// FailedReference is the marker attached to a meaning whose lookup failed.
func FailedReference() Reference {
	return Reference{
		Title:            "Error",
		Link:             "",
		ShortDescription: "lookup failed",
		Failed:           true,
	}
}

// MeaningCandidate is one resolved meaning of a word. It becomes a Sense node
// only once the user selects it.
type MeaningCandidate struct {
	Meaning   string    `json:"meaning"`
	Reference Reference `json:"wikipedia"`
}

// SenseTitle is the display content of the Sense node created from c.
func (c MeaningCandidate) SenseTitle() string {
	if c.Reference.Failed || c.Reference.Title == "" {
		return c.Meaning
	}
	return c.Reference.Title
}
