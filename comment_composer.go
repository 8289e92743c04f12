package main

import (
	"fmt"
	"strings"
)

const (
	sectionAnalysisResults = "## 📋 Analysis Results"
	sectionNextSteps       = "## 🚀 Next Steps"
	sectionAdditionalInfo  = "## 📚 Additional Information"
)

var bugNextSteps = []string{
	"Reproduce the problem and confirm the affected version",
	"Collect logs, error messages and environment details",
	"Identify the root cause and add a failing test",
	"Submit a fix together with a regression test",
}

var featureNextSteps = []string{
	"Review the request against the project roadmap",
	"Discuss the design and scope with the maintainers",
	"Implement the feature with tests",
	"Update the documentation and examples",
}

var questionNextSteps = []string{
	"Check the documentation and existing issues for an answer",
	"Add more context if the question is still unclear",
	"A maintainer will follow up with an answer",
}

const tpmInfoBlock = `### 🔐 TPM
This issue mentions the Trusted Platform Module. Include the TPM version (1.2 or 2.0), the platform firmware, and the output of the failing TPM operation. For simulated environments, state which simulator is in use.`

const dockerInfoBlock = `### 🐳 Docker
This issue involves Docker. Include the Docker version (` + "`docker version`" + `), the image tag, and the full container logs (` + "`docker logs <container>`" + `). If the container needs device access, list the ` + "`--device`" + ` flags in use.`

const aiInfoBlock = `### 🤖 Azure OpenAI
This issue involves OpenAI or Azure OpenAI. Check that the endpoint, API version and deployment name are correct and that the API key has access to the deployment. Never paste API keys into issues.`

// ComposeComment renders a Classification and the original issue text into a
// Markdown comment. method is only reflected in the attribution lines.
func ComposeComment(c Classification, issueText string, method AnalysisMethod) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🤖 **Automated issue analysis** using %s.\n\n", method)

	b.WriteString(sectionAnalysisResults + "\n\n")
	fmt.Fprintf(&b, "- **Type:** %s\n", c.Type)
	fmt.Fprintf(&b, "- **Priority:** %s\n", c.Priority)
	if len(c.Topics) > 0 {
		fmt.Fprintf(&b, "- **Topics:** %s\n", strings.Join(c.Topics, ", "))
	}
	if c.Summary != "" && c.Summary != issueText {
		fmt.Fprintf(&b, "- **Summary:** %s\n", c.Summary)
	}

	b.WriteString("\n" + sectionNextSteps + "\n\n")
	for i, step := range nextStepsFor(c.Type) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}

	if blocks := additionalInfoBlocks(c); len(blocks) > 0 {
		b.WriteString("\n" + sectionAdditionalInfo + "\n\n")
		b.WriteString(strings.Join(blocks, "\n\n"))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\n---\n*This comment was generated automatically using %s.*\n", method)

	return b.String()
}

func nextStepsFor(t IssueType) []string {
	switch t {
	case IssueTypeBug:
		return bugNextSteps
	case IssueTypeFeature:
		return featureNextSteps
	default:
		return questionNextSteps
	}
}

func additionalInfoBlocks(c Classification) []string {
	var blocks []string
	if c.HasTopic(TopicTPM) {
		blocks = append(blocks, tpmInfoBlock)
	}
	if c.HasTopic(TopicDocker) {
		blocks = append(blocks, dockerInfoBlock)
	}
	if c.HasTopic(TopicOpenAI) || c.HasTopic(TopicAzure) {
		blocks = append(blocks, aiInfoBlock)
	}
	return blocks
}
