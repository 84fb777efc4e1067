package prompt

// defaults are the built-in prompt templates. They are deliberately strict
// about output shape: every model-facing stage parses the reply as JSON.
var defaults = map[string]string{
	KeyIntent: `You classify shopping-assistant queries.

Conversation so far:
{{range .History}}User: {{.Query}}
Assistant: {{.Answer}}
{{end}}
Query: {{.Query}}

Reply with a single JSON object:
{"label": one of ["product_query","review_query","cart_action","out_of_scope"],
 "confidence": number between 0 and 1,
 "rationale": short string}
Use "out_of_scope" for anything unrelated to finding or buying products.`,

	KeyPlan: `You plan tool calls for a shopping assistant.

Available tools:
{{range .Tools}}- {{.Name}}: {{.Description}}
{{end}}
Intent: {{.Intent}}
Query: {{.Query}}

Reply with a single JSON object:
{"steps": [{"id": "s1", "tool": tool name, "arguments": object,
            "depends_on": [ids of earlier steps whose results are needed]}],
 "rationale": short string}
Steps without depends_on run concurrently. Return {"steps": []} if no tool
can help.`,

	KeyReplan: `You are revising a shopping-assistant tool plan mid-turn.

Query: {{.Query}}
Steps already executed: {{join .Executed ", "}}
Passages gathered so far: {{len .Passages}}
{{range .Passages}}- {{.Text}}
{{end}}
Available tools:
{{range .Tools}}- {{.Name}}: {{.Description}}
{{end}}

If the gathered context already answers the query, reply {"steps": []}.
Otherwise reply with additional steps in the same JSON shape as before. Do
not repeat steps that are already executed.`,

	KeySynthesize: `You answer shopping queries strictly from retrieved context.

Query: {{.Query}}
{{if .Passages}}Retrieved passages:
{{range .Passages}}- {{.Text}} (source: {{.Source}})
{{end}}{{end}}{{if .CartData}}Cart state: {{.CartData}}
{{end}}
Answer the query using only the context above. Mention concrete products
when present. If the context is empty or insufficient, say you could not
find matching products. Reply with plain text, no JSON.`,
}
