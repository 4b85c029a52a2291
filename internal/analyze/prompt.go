// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analyze

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/digestkit/arxiv-digest/pkg/types"
)

// analysisPromptTmpl is the prompt sent to the model for each batch of
// papers. It pins the exact section headers the parser keys on, so a reply
// that drifts from the format is rejected rather than half-understood.
// Per prd004-analysis R3.1.
var analysisPromptTmpl = template.Must(template.New("analysis").Funcs(template.FuncMap{
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
}).Parse(`You are a research analyst helping a {{.Audience}} audience keep up with the field of {{.Field}}.

Below are {{len .Papers}} recent arXiv papers. For EACH paper, write an analysis using EXACTLY this format, repeating the whole block once per paper, in the same order the papers are given:

Title: <the paper's full title, copied verbatim from the input>
Authors: <the author list, copied verbatim from the input>
Key Contributions: <2-4 sentences on what the paper contributes>
Importance: <1-3 sentences on why it matters to the field>
Citation: <a short citation line: first author et al., arXiv ID, year>
Reason Chosen: <1-2 sentences on why this paper is relevant to a {{.Audience}} audience>

Rules:
- Produce exactly one block per paper, every block containing all six labeled lines.
- Never invent a paper. Never merge two papers into one block.
- Never use placeholder text such as "Unknown Title" or "[Paper title]". Copy the real title.
- Do not add any text before the first "Title:" line or after the last block.

Papers:
{{range $i, $p := .Papers}}
--- Paper {{inc $i}} ---
Title: {{$p.Title}}
Authors: {{join $p.Authors ", "}}
arXiv ID: {{$p.ID}}
Categories: {{join $p.Categories ", "}}
Abstract: {{$p.Abstract}}
{{end}}`))

// promptData is the template input for one batch.
type promptData struct {
	Field    string
	Audience string
	Papers   []types.Paper
}

// renderPrompt executes the analysis template for one batch of papers.
func renderPrompt(field, audience string, papers []types.Paper) (string, error) {
	var buf bytes.Buffer
	if err := analysisPromptTmpl.Execute(&buf, promptData{Field: field, Audience: audience, Papers: papers}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
