package models

// Page is the text of one physical PDF page. Index is 0-based.
type Page struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Passage is a bounded slice of one page, the unit of embedding and retrieval.
type Passage struct {
	ID      int    `json:"id"`
	Page    int    `json:"page"`
	Start   int    `json:"start"` // rune offset in the page text
	Content string `json:"content"`
}

// ChatTurn pairs a question (or a mode marker) with its answer.
type ChatTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
