package summary

import (
	"fmt"
	"strings"
)

const promptHeader = `You are a medical AI assistant helping hospital physicians review trauma patient data.

Generate a concise clinical summary for the following patient:

`

const promptInstructions = `Based on the above data, please provide:
1. Current patient status assessment
2. Key vital signs trends and concerns (if available)
3. Summary of paramedic interventions performed
4. Critical recommendations for hospital preparation
5. Any red flags or immediate concerns

Keep the summary concise but comprehensive for emergency physicians.
Do not use markdown formatting in your response. Keep it plain text.
`

// BuildPrompt is pure: identical inputs give byte-identical prompts.
func BuildPrompt(info PatientInfo, vitalsBlock, timelineBlock string) string {
	eta := unknown
	if info.ETA.IsSet() {
		eta = info.ETA.Or(unknown) + " minutes"
	}

	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("PATIENT INFORMATION:\n")
	fmt.Fprintf(&b, "- Name: %s\n", info.Name.Or(unknown))
	fmt.Fprintf(&b, "- Age: %s\n", info.Age.Or(unknown))
	fmt.Fprintf(&b, "- Gender: %s\n", info.Gender.Or(unknown))
	fmt.Fprintf(&b, "- Status: %s\n", info.Status.Or(unknown))
	fmt.Fprintf(&b, "- Initial Complaint: %s\n", info.InitialComplaint.Or("Not specified"))
	fmt.Fprintf(&b, "- Trauma Site: %s\n", info.TraumaSiteName.Or(unknown))
	fmt.Fprintf(&b, "- ETA: %s\n\n", eta)
	b.WriteString(vitalsBlock)
	b.WriteString(timelineBlock)
	b.WriteString(promptInstructions)
	return b.String()
}

// PromptFor renders both blocks and composes the prompt for a snapshot.
func PromptFor(data PatientData) string {
	return BuildPrompt(data.PatientInfo, RenderVitals(data.VitalSigns), RenderTimeline(data.Timeline))
}
