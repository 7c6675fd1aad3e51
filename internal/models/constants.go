package models

const (
	ThinkTag         = `(?s)<think>.*?</think>`
	ContextSeparator = "\n\n---\n\n"
	PassageJoiner    = "\n\n"

	SummaryMarker        = "[Document Summary]"
	SummaryFailureMarker = "[Summary]"

	StatusLoaded      = "PDF loaded and RAG pipeline built successfully"
	StatusUploadError = "Error processing PDF: %v"
	StatusNoFile      = "No file uploaded"
	StatusNoDocument  = "Please upload a PDF first"
	StatusNoQuestion  = "Please enter a question"
	StatusSummary     = "Summary generated from document content"
	AnswerErrorPrefix = "Error processing request: "
)

var (
	AnswerPromptTemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

%s

Question: %s
Helpful Answer:`

	SummaryPromptTemplate = `Please provide a comprehensive summary of this document in %s sentences, highlighting the main points and key information:

%s

Summary:`
)
