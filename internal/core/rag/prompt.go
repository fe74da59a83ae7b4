package rag

import "fmt"

// InsufficientInformation is the sentence the model is told to use when the
// documents do not answer the question.
const InsufficientInformation = "I don't have enough information to answer this question."

const promptTemplate = `You are a helpful AI assistant that answers questions based on the provided documents.
Use ONLY the information from the provided documents to answer the question.
If the documents don't contain the answer, say "%s"
Don't make up information that's not in the documents.

CONTEXT DOCUMENTS:
%s

USER QUESTION: %s

ANSWER:`

// BuildPrompt wraps the assembled context and the question in the answer
// instructions.
func BuildPrompt(query, context string) string {
	return fmt.Sprintf(promptTemplate, InsufficientInformation, context, query)
}
