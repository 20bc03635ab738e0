package analyze

import "strings"

// resumeKeywords is a coarse lexical signal of resume-ness, not a
// classifier. Three hits are enough to pass the gate.
var resumeKeywords = []string{
	"experience", "education", "skills", "work", "employment", "job",
	"degree", "university", "college", "certification", "technical",
	"achievement", "project", "responsibility", "proficiency", "expert",
	"professional", "background", "summary", "objective", "core competencies",
	"languages", "tools", "technologies", "qualifications",
}

const (
	gateMinChars         = 200
	gateMinKeywords      = 3
	gateMinLines         = 5
	gateMinNonEmptyLines = 5
)

// GateVerdict is the outcome of the resume pre-filter.
type GateVerdict struct {
	Valid  bool
	Reason string
}

// CheckResume decides whether text is plausibly a resume before an
// expensive model call is spent on it. Rules short-circuit in order:
// length, keyword density, line count, non-empty line count. Each
// failure carries its own user-facing reason.
func CheckResume(text string) GateVerdict {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < gateMinChars {
		return GateVerdict{Reason: "Text is too short to be a resume. Please upload a valid resume."}
	}

	lower := strings.ToLower(text)
	found := 0
	for _, keyword := range resumeKeywords {
		if strings.Contains(lower, keyword) {
			found++
		}
	}
	if found < gateMinKeywords {
		return GateVerdict{Reason: "This doesn't appear to be a resume. Please upload a valid resume with sections like Experience, Education, or Skills."}
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < gateMinLines {
		return GateVerdict{Reason: "Resume appears incomplete or improperly formatted. Please upload a valid resume."}
	}

	nonEmpty := 0
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			nonEmpty++
		}
	}
	if nonEmpty < gateMinNonEmptyLines {
		return GateVerdict{Reason: "Resume appears to have very little content. Please upload a valid resume with substantial information."}
	}

	return GateVerdict{Valid: true, Reason: "Valid resume"}
}
