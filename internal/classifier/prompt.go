package classifier

import "fmt"

const nistTemplate = `You are an expert in medical device cybersecurity.
Analyze the following text and classify it into the NIST Cybersecurity Framework categories in English.

NIST Categories:
- ID: Identify (Asset Management, Business Environment, Governance, Risk Assessment, Risk Management Strategy)
- PR: Protect (Access Control, Awareness and Training, Data Security, Information Protection Processes and Procedures, Maintenance, Protective Technology)
- DE: Detect (Anomalies and Events, Continuous Security Monitoring, Detection Processes)
- RS: Respond (Response Planning, Communications, Analysis, Mitigation, Improvements)
- RC: Recover (Recovery Planning, Improvements, Communications)

Text:
%s

Please respond with valid JSON only, in the format:
{
    "categories": {"ID": {"score": 0, "reason": ""}, "PR": {"score": 0, "reason": ""}, "DE": {"score": 0, "reason": ""}, "RS": {"score": 0, "reason": ""}, "RC": {"score": 0, "reason": ""}},
    "primary_category": "",
    "explanation": ""
}`

const iecTemplate = `You are an expert in medical device cybersecurity.
Analyze the following text and classify it into the IEC 62443 Foundational Requirements in English.

IEC 62443 Foundational Requirements:
- FR1: Identification and authentication control
- FR2: Use control
- FR3: System integrity
- FR4: Data confidentiality
- FR5: Restricted data flow
- FR6: Timely response to events
- FR7: Resource availability

Text:
%s

Please respond with valid JSON only, in the format:
{
    "requirements": {"FR1": {"score": 0, "reason": ""}, "FR2": {"score": 0, "reason": ""}, "FR3": {"score": 0, "reason": ""}, "FR4": {"score": 0, "reason": ""}, "FR5": {"score": 0, "reason": ""}, "FR6": {"score": 0, "reason": ""}, "FR7": {"score": 0, "reason": ""}},
    "primary_requirement": "",
    "explanation": ""
}`

const extractTemplate = `You are an expert in medical device cybersecurity.
The text below contains "Recommendations" and "Mandatory requirements (Obligations)" related to security measures.

Text:
%s

Extract security requirements from this text and list them as structured items.
Respond in JSON:
{
  "requirements": [{"id": 1, "type": "", "text": ""}]
}`

const keywordsTemplate = `You are an expert in medical device cybersecurity.
Extract important keywords related to medical device cybersecurity from the text below.
At least %d characters long, up to %d keywords.

Text:
%s

Respond in JSON:
{
  "keywords": [{"keyword": "", "importance": 0, "description": ""}]
}`

func nistPrompt(text string) string {
	return fmt.Sprintf(nistTemplate, text)
}

func iecPrompt(text string) string {
	return fmt.Sprintf(iecTemplate, text)
}

func extractPrompt(text string) string {
	return fmt.Sprintf(extractTemplate, text)
}

func keywordsPrompt(text string, minLength, maxKeywords int) string {
	return fmt.Sprintf(keywordsTemplate, minLength, maxKeywords, text)
}
