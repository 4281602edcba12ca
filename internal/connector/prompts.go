package connector

import (
	"fmt"
	"strings"

	"github.com/sells-group/geo-audit/internal/domains"
	"github.com/sells-group/geo-audit/internal/model"
)

const structuredSystemPrompt = `You are a search assistant that recommends businesses, brands and service providers. Answer with a single JSON object and nothing else: no markdown, no commentary.`

const structuredUserPrompt = `Question: %s
%s
Answer the question, then return ONLY a JSON object with exactly these keys:
- "ordered_entities": the businesses or brands your answer recommends, most prominent first. Each item is {"name": string, "domain": string (website domain, "" if unknown), "rationale": string (one sentence), "position": integer starting at 1}.
- "citations": the web pages that support the answer. Each item is {"url": string, "domain": string, "entity_ref": string (name of the entity the page is about, optional)}.
- "answer_summary": a two or three sentence prose answer.
- "notes": {"flags": [...]} using only these values: %s. Use "no_sources" when you cannot cite any page and "possible_hallucination" when you are unsure the entities exist.`

const naturalSystemPrompt = `You are a helpful assistant. Answer the user's question in natural, conversational prose, the way you normally would. Recommend specific businesses, brands or providers by name where it helps, and mention the sources you relied on. Do not answer in JSON.`

const analyzerSystemPrompt = `You are an analyst who extracts structured data from answers written by AI assistants. Report only what the answer actually says; never add entities, links or facts of your own. Respond with a single JSON object and nothing else.`

const analyzerUserPrompt = `An AI assistant was asked: %q

Its answer was:
<answer>
%s
</answer>
%s
We track the brand %q (websites: %s). Known competitors: %s.
Expected brand location: %s.

Return ONLY a JSON object with two keys.

"answer_block":
- "ordered_entities": every business or brand the answer names, ordered by how prominently the answer presents it (recommended first or described in most detail = position 1). Items are {"name", "domain" ("" if unknown), "rationale" (why the answer mentions it), "position"}.
- "citations": every URL the answer or its sources reference, as {"url", "domain", "entity_ref"}.
- "answer_summary": a one or two sentence summary of the answer.
- "notes": {"flags": [...]} using only: %s. Use "no_sources" if the answer cites nothing, "nap_mismatch" if it gives the tracked brand a wrong name, address or phone, "outdated_info" or "conflicting_prices" when you can tell, and "possible_hallucination" if it describes businesses that seem invented.

"analysis":
- "entities": the same entities as {"name", "domain", "position", "prominence" ("primary", "secondary" or "minor"), "mention_count" (times named), "first_mention_quote" (the sentence where it first appears)}.
- "citations": {"url", "domain", "citation_type"}; "explicit" if the URL appears in the answer text, otherwise "inferred".
- "brand_analysis": {"mentioned": bool, "position": integer or null, "location_stated": string or null (where the answer places the brand), "location_correct": bool or null (compared with the expected location), "prominence": "primary", "secondary", "minor" or null}.
- "extraction_confidence": 0 to 100, how confident you are in this extraction.`

func flagList() string {
	names := make([]string, len(model.Flags))
	for i, f := range model.Flags {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

func structuredPrompt(query, location string) string {
	loc := ""
	if location = strings.TrimSpace(location); location != "" {
		loc = fmt.Sprintf("Location: %s. Only recommend providers that serve this location.\n", location)
	}
	return fmt.Sprintf(structuredUserPrompt, strings.TrimSpace(query), loc, flagList())
}

func analyzerPrompt(ac NaturalAnalyzeContext) string {
	return fmt.Sprintf(analyzerUserPrompt,
		strings.TrimSpace(ac.QueryText),
		strings.TrimSpace(ac.NaturalResponse.Text),
		sourcesSection(ac.NaturalResponse.SearchSources),
		ac.BrandName,
		listOrNone(domains.NormalizeAll(ac.BrandDomains)),
		listOrNone(ac.Competitors),
		expectedLocation(ac.ExpectedCity, ac.ExpectedState),
		flagList(),
	)
}

func sourcesSection(sources []model.SearchSource) string {
	if len(sources) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\nThe assistant consulted these web sources:\n")
	for i, s := range sources {
		fmt.Fprintf(&sb, "%d. %s", i+1, s.URL)
		if s.Title != "" {
			fmt.Fprintf(&sb, " (%s)", s.Title)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func expectedLocation(city, state string) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{city, state} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, ", ")
}

func listOrNone(items []string) string {
	kept := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			kept = append(kept, it)
		}
	}
	if len(kept) == 0 {
		return "none"
	}
	return strings.Join(kept, ", ")
}
