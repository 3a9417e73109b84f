package domain

// ActionKind identifies a side-effect the engine asks the host to perform.
type ActionKind string

// Standard action kinds.
const (
	// ActionSendWhatsApp sends a free-form text. Payload: SendWhatsApp
	ActionSendWhatsApp ActionKind = "send_whatsapp"
	// ActionSendWhatsAppTemplate sends an approved template. Payload: SendWhatsAppTemplate
	ActionSendWhatsAppTemplate ActionKind = "send_whatsapp_template"
	// ActionSendEmail sends an email notification. Payload: SendEmail
	ActionSendEmail ActionKind = "send_email"
	// ActionWait asks the host to schedule a wake-up. Payload: Wait
	ActionWait ActionKind = "wait"
	// ActionAssignToAdmin hands the conversation to an admin. Payload: AssignToAdmin
	ActionAssignToAdmin ActionKind = "assign_to_admin"
	// ActionAssignConversation hands the conversation to an agent or team. Payload: AssignConversation
	ActionAssignConversation ActionKind = "assign_conversation"
)

// Action describes one side-effect. The engine returns actions, it never performs them.
type Action struct {
	Kind    ActionKind `json:"kind"`
	Payload any        `json:"payload"`
}

// SendWhatsApp is the payload of ActionSendWhatsApp.
type SendWhatsApp struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// SendWhatsAppTemplate is the payload of ActionSendWhatsAppTemplate.
type SendWhatsAppTemplate struct {
	To        string            `json:"to"`
	Template  string            `json:"template"`
	Language  string            `json:"language,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
}

// SendEmail is the payload of ActionSendEmail.
type SendEmail struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Wait is the payload of ActionWait.
type Wait struct {
	Duration int      `json:"duration"`
	Unit     WaitUnit `json:"unit"`
}

// AssignToAdmin is the payload of ActionAssignToAdmin.
type AssignToAdmin struct {
	Admin string `json:"admin"`
}

// AssignConversation is the payload of ActionAssignConversation.
type AssignConversation struct {
	AssigneeID   string `json:"assignee_id"`
	AssigneeType string `json:"assignee_type"`
	SessionID    string `json:"session_id"`
}

func NewSendWhatsApp(to, text string) Action {
	return Action{Kind: ActionSendWhatsApp, Payload: SendWhatsApp{To: to, Text: text}}
}

func NewSendWhatsAppTemplate(to, template, language string, vars map[string]string) Action {
	return Action{Kind: ActionSendWhatsAppTemplate, Payload: SendWhatsAppTemplate{
		To:        to,
		Template:  template,
		Language:  language,
		Variables: vars,
	}}
}

func NewSendEmail(to, subject, body string) Action {
	return Action{Kind: ActionSendEmail, Payload: SendEmail{To: to, Subject: subject, Body: body}}
}

func NewWait(duration int, unit WaitUnit) Action {
	return Action{Kind: ActionWait, Payload: Wait{Duration: duration, Unit: unit}}
}

func NewAssignToAdmin(admin string) Action {
	return Action{Kind: ActionAssignToAdmin, Payload: AssignToAdmin{Admin: admin}}
}

func NewAssignConversation(assigneeID, assigneeType, sessionID string) Action {
	return Action{Kind: ActionAssignConversation, Payload: AssignConversation{
		AssigneeID:   assigneeID,
		AssigneeType: assigneeType,
		SessionID:    sessionID,
	}}
}
