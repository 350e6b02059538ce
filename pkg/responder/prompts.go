package responder

const contextualizePrompt = "Given a chat history and the latest user question which might reference " +
	"context in the chat history, formulate a standalone question which can be " +
	"understood without the chat history. Do NOT answer the question, just " +
	"reformulate it if needed and otherwise return it as is."

const answerPrompt = "You are a helpful AI assistant. Use the following context from the uploaded PDF " +
	"to answer the user's question accurately and concisely.\n\n" +
	"Important guidelines:\n" +
	"- If the answer is in the context, provide a clear and detailed response\n" +
	"- If you're unsure or the information isn't in the context, say so honestly\n" +
	"- Use bullet points or numbered lists when appropriate for clarity\n" +
	"- Cite specific sections when relevant\n\n" +
	"Context:\n%s"
