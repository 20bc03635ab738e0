package llm

import (
	"fmt"
	"strings"
)

// Rubric carries the swappable prompt text around a fixed verdict shape.
// Wording is data; only the JSON contract below is structural.
type Rubric struct {
	ScoringBands string
	Criteria     string
	RedFlags     string
}

// DefaultRubric is the scoring rubric used in production.
var DefaultRubric = Rubric{
	ScoringBands: `90-100 -> Exceptional (top 5%, interview-ready)
80-89  -> Very strong (minor improvements needed)
70-79  -> Good (solid profile, but gaps exist)
60-69  -> Average (skills exist, weak execution)
50-59  -> Below average (poor impact, ATS issues)
<50    -> Weak (low interview chances)`,
	Criteria: `1. Skill relevance to the target role
2. Clarity and structure (ATS readability)
3. Use of strong action verbs
4. Presence of measurable impact (numbers, results)
5. Keyword coverage (role-specific)
6. Project depth and technical credibility
7. Formatting consistency and section clarity`,
	RedFlags: `- Generic summaries
- Vague bullets ("worked on", "helped with")
- Missing metrics or outcomes
- Long paragraphs instead of bullets
- Non-standard symbols or formatting
- Missing or weak section headers
- Keyword gaps for the target role`,
}

// BuildPrompt renders the analysis prompt for a resume and optional
// target role. The resume text is expected to be pre-truncated by the
// caller for token safety.
func (r Rubric) BuildPrompt(resumeText, roleTarget string) string {
	role := strings.TrimSpace(roleTarget)
	if role == "" {
		role = "general job applications"
	}
	return fmt.Sprintf(`You are a senior ATS (Applicant Tracking System) evaluator, technical recruiter, and resume strategist with 10+ years of real-world hiring experience across product companies, startups, and MNCs.

Your task is to evaluate the resume below for the given role and provide an HONEST, REALISTIC, and CLEAR analysis.

IMPORTANT MINDSET:
- Do NOT be overly positive.
- Do NOT be harsh without reason.
- Score resumes the way a real recruiter + ATS would.

TARGET ROLE:
%s

==============================
SCORING CALIBRATION (CRITICAL)
==============================
Use this scale STRICTLY:

%s

Do NOT inflate scores.
If impact, metrics, or clarity are missing, the score MUST drop.

==============================
EVALUATION CRITERIA
==============================
%s

==============================
ATS RED FLAGS TO IDENTIFY
==============================
%s

==============================
OUTPUT INSTRUCTIONS (VERY IMPORTANT)
==============================
- Use SIMPLE, PROFESSIONAL English.
- Be direct and practical.
- Return ONLY valid JSON.
- NO markdown, NO explanations, NO extra text.

==============================
RESPONSE JSON FORMAT
==============================
{
  "overall_score": 0-100 integer,
  "score_verdict": "one short honest sentence explaining the score",
  "summary_insight": "1-2 lines explaining the biggest reason this resume is not scoring higher",
  "strengths": ["specific strength tied to actual resume content"],
  "weaknesses": ["clear weakness with real impact"],
  "ats_issues": ["specific ATS parsing or formatting issue"],
  "improved_bullets": [
    {
      "original": "exact original resume bullet",
      "improved": "improved version using strong verbs + realistic metric + clear impact"
    }
  ],
  "recommendations": ["clear and actionable recommendation"]
}

==============================
RESUME TO ANALYZE
==============================
%s
`, role, r.ScoringBands, r.Criteria, r.RedFlags, resumeText)
}
