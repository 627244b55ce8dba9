package triage

import (
	"fmt"
	"strings"

	"mailtriage/internal/models"
)

const triageSystemPrompt = `You are the mail triage assistant of an accounting and consulting office.
You route each incoming client email to the single most appropriate staff member and you
pick up any client contact details present in the message. You answer with JSON only.`

const triagePromptTemplate = `Staff members and their responsibilities:
--- STAFF ---
%s
-------------

Incoming email:
--- EMAIL ---
From: %s
Subject: %s
Body:
%s
-------------

Reply with a JSON object and nothing else:
{
  "assigned_to_staff_id": "ID of the chosen staff member from the list, or null if nobody fits",
  "ai_confidence_score": a number between 0.0 (not sure) and 1.0 (very sure),
  "ai_reasoning": "one short sentence explaining the choice",
  "is_urgent": true or false,
  "client_name": "full name of the client if stated, else null",
  "client_phone_number": "phone number of the client if stated, else null",
  "client_city": "city of the client if stated, else null"
}`

const contactSystemPrompt = `You extract client contact details from emails. You answer with JSON only.`

const contactPromptTemplate = `Extract the client's full name, phone number and city from this email.

From: %s
Subject: %s
Body:
%s

Reply with a JSON object and nothing else:
{"client_name": string or null, "client_phone_number": string or null, "client_city": string or null}`

const skillsSystemPrompt = `You extract individual skills from a description of a job role. You answer with JSON only.`

const skillsPromptTemplate = `Extract the single skills from this description and return them as a JSON array of strings.

Example input: "Handles general ledger and invoicing, prepares tax returns. Knows Excel and SAP."
Example output: ["general ledger", "invoicing", "tax returns", "Excel", "SAP"]

Description:
"""
%s
"""`

func buildTriagePrompt(roster []models.StaffMember, sender, subject, body string) string {
	var staff strings.Builder
	if len(roster) == 0 {
		staff.WriteString("(no staff configured)\n")
	}
	for _, member := range roster {
		fmt.Fprintf(&staff, "ID: %s, Name: %s, Responsibilities: %s", member.ID, member.Name, member.Responsibilities)
		if skills := member.SkillList(); len(skills) > 0 {
			fmt.Fprintf(&staff, ", Skills: %s", strings.Join(skills, ", "))
		}
		fmt.Fprintf(&staff, ", Email: %s\n", member.Email)
	}

	return fmt.Sprintf(triagePromptTemplate, strings.TrimRight(staff.String(), "\n"), sender, subject, body)
}
