package normalizer

// Program is a declarative description of how to project a provider envelope
// into the intermediate event document. It is plain data so alternative
// programs can be swapped in tests or when the provider shape evolves.
type Program struct {
	Name string
	// Entries, Changes and Value locate entry[].changes[].value.
	Entries string
	Changes string
	Value   string
	// Notification is read relative to each entry.
	Notification string
	// Branches are scanned in order across every entry and change; the first
	// branch to produce a document wins.
	Branches []Branch
}

// Binding names a path so rules can refer to it as the first path segment.
type Binding struct {
	Name string
	Path string
}

type Branch struct {
	Name string
	// Items is the array (relative to value) whose first element is bound as "item".
	Items    string
	Bindings []Binding
	// Require lists paths that must be present for the candidate to be actionable.
	Require []string
	Rules   []Rule
	// Fallback runs when no rule matches. Nil means the candidate is skipped.
	Fallback *Rule
}

// Condition holds when the path is present, or absent when Missing is set.
// With Equals the resolved string must match one of the values.
type Condition struct {
	Path    string
	Equals  []string
	Missing bool
}

type Rule struct {
	Name     string
	When     []Condition
	Bindings []Binding
	Emit     []Mapping
}

// Mapping writes one field of the output document. From paths are tried in
// order; the first present value is used.
type Mapping struct {
	Target  string
	From    []string
	Const   any
	Default any
	// Number coerces the value to an integer, string inputs included.
	Number bool
	// Raw copies the JSON verbatim.
	Raw bool
}

func (p Program) entriesPath() string {
	return orDefault(p.Entries, "entry")
}

func (p Program) changesPath() string {
	return orDefault(p.Changes, "changes")
}

func (p Program) valuePath() string {
	return orDefault(p.Value, "value")
}

func (p Program) notificationPath() string {
	return orDefault(p.Notification, "id")
}

func orDefault(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

const (
	wireTypeContent     = "content"
	wireTypeInteractive = "interactive"
	wireTypeReaction    = "reaction"
	wireTypeStatus      = "status"
	wireTypeError       = "error"
	wireTypeUnsupported = "unsupported"
)

// DefaultProgram maps WhatsApp Cloud API webhooks. Message changes are
// considered before status changes.
func DefaultProgram() Program {
	return Program{
		Name:         "whatsapp-cloud",
		Entries:      "entry",
		Changes:      "changes",
		Value:        "value",
		Notification: "id",
		Branches: []Branch{
			messagesBranch(),
			statusesBranch(),
		},
	}
}

func messagesBranch() Branch {
	return Branch{
		Name:  "messages",
		Items: "messages",
		Bindings: []Binding{
			{Name: "metadata", Path: "value.metadata"},
			{Name: "contact", Path: "value.contacts.0"},
		},
		Require: []string{"item.id", "item.from", "metadata.phone_number_id"},
		Rules: []Rule{
			{
				Name: "interactive.button_reply",
				When: []Condition{
					{Path: "item.type", Equals: []string{"interactive"}},
					{Path: "item.interactive.button_reply.id"},
				},
				Emit: append(messageHeader(wireTypeInteractive, "item.context.id"),
					Mapping{Target: "button.id", From: []string{"item.interactive.button_reply.id"}},
					Mapping{Target: "button.title", From: []string{"item.interactive.button_reply.title"}, Default: ""},
				),
			},
			{
				Name: "interactive.list_reply",
				When: []Condition{
					{Path: "item.type", Equals: []string{"interactive"}},
					{Path: "item.interactive.list_reply.id"},
				},
				Emit: append(messageHeader(wireTypeInteractive, "item.context.id"),
					Mapping{Target: "button.id", From: []string{"item.interactive.list_reply.id"}},
					Mapping{Target: "button.title", From: []string{"item.interactive.list_reply.title"}, Default: ""},
				),
			},
			{
				Name: "button",
				When: []Condition{
					{Path: "item.type", Equals: []string{"button"}},
					{Path: "item.button.payload"},
				},
				Emit: append(messageHeader(wireTypeInteractive, "item.context.id"),
					Mapping{Target: "button.id", From: []string{"item.button.payload"}},
					Mapping{Target: "button.title", From: []string{"item.button.text"}, Default: ""},
				),
			},
			{
				Name: "reaction",
				When: []Condition{
					{Path: "item.type", Equals: []string{"reaction"}},
				},
				Emit: append(messageHeader(wireTypeReaction, "item.reaction.message_id"),
					Mapping{Target: "emoji", From: []string{"item.reaction.emoji"}, Default: ""},
				),
			},
			contentRule("text",
				Mapping{Target: "content.text", From: []string{"item.text.body"}, Default: ""},
			),
			contentRule("document",
				Mapping{Target: "content.id", From: []string{"item.document.id"}, Default: ""},
				Mapping{Target: "content.name", From: []string{"item.document.filename"}, Default: ""},
				Mapping{Target: "content.mime", From: []string{"item.document.mime_type"}, Default: ""},
				Mapping{Target: "content.sha256", From: []string{"item.document.sha256"}, Default: ""},
			),
			contentRule("contacts",
				Mapping{Target: "content.name", From: []string{"item.contacts.0.name.first_name", "item.contacts.0.name.formatted_name"}, Default: ""},
				Mapping{Target: "content.surname", From: []string{"item.contacts.0.name.last_name"}, Default: ""},
				Mapping{Target: "content.numbers", From: []string{"item.contacts.0.phones.#.wa_id"}, Raw: true, Default: []string{}},
			),
			contentRule("location",
				Mapping{Target: "content.location.latitude", From: []string{"item.location.latitude"}, Raw: true, Default: 0},
				Mapping{Target: "content.location.longitude", From: []string{"item.location.longitude"}, Raw: true, Default: 0},
				Mapping{Target: "content.address", From: []string{"item.location.address"}},
				Mapping{Target: "content.name", From: []string{"item.location.name"}},
				Mapping{Target: "content.url", From: []string{"item.location.url"}},
			),
			mediaRule("image"),
			mediaRule("video"),
			mediaRule("audio"),
			{
				Name: "sticker",
				When: []Condition{
					{Path: "item.type", Equals: []string{"sticker"}},
				},
				Emit: append(messageHeader(wireTypeContent, "item.context.id"),
					Mapping{Target: "content.type", Const: "unknown"},
					Mapping{Target: "content.raw", From: []string{"item.sticker"}, Raw: true, Default: map[string]any{}},
				),
			},
		},
		Fallback: &Rule{
			Name: "unsupported",
			Emit: append(messageHeader(wireTypeUnsupported, "item.context.id"),
				Mapping{Target: "raw", From: []string{"item"}, Raw: true},
			),
		},
	}
}

func statusesBranch() Branch {
	return Branch{
		Name:  "statuses",
		Items: "statuses",
		Bindings: []Binding{
			{Name: "metadata", Path: "value.metadata"},
		},
		Require: []string{"item.id", "item.recipient_id", "metadata.phone_number_id"},
		Rules: []Rule{
			{
				Name: "error",
				When: []Condition{
					{Path: "item.errors.0"},
				},
				Bindings: []Binding{
					{Name: "error", Path: "item.errors.0"},
				},
				Emit: append(statusHeader(wireTypeError, false),
					Mapping{Target: "error.code", From: []string{"error.code"}, Number: true, Default: 0},
					Mapping{Target: "error.message", From: []string{"error.error_data.details", "error.message", "error.title"}, Default: ""},
				),
			},
			{
				Name: "status",
				When: []Condition{
					{Path: "item.status", Equals: []string{"sent", "delivered", "read"}},
				},
				Emit: append(statusHeader(wireTypeStatus, true),
					Mapping{Target: "status", From: []string{"item.status"}},
				),
			},
		},
	}
}

func contentRule(kind string, mappings ...Mapping) Rule {
	emit := append(messageHeader(wireTypeContent, "item.context.id"),
		Mapping{Target: "content.type", Const: kind},
	)
	return Rule{
		Name: "content." + kind,
		When: []Condition{
			{Path: "item.type", Equals: []string{kind}},
		},
		Emit: append(emit, mappings...),
	}
}

func mediaRule(kind string) Rule {
	return contentRule(kind,
		Mapping{Target: "content.id", From: []string{"item." + kind + ".id"}, Default: ""},
		Mapping{Target: "content.mime", From: []string{"item." + kind + ".mime_type"}, Default: ""},
		Mapping{Target: "content.sha256", From: []string{"item." + kind + ".sha256"}, Default: ""},
	)
}

func messageHeader(wireType string, contextPath string) []Mapping {
	return []Mapping{
		{Target: "type", Const: wireType},
		{Target: "notification", From: []string{"notification"}, Default: ""},
		{Target: "id", From: []string{"item.id"}},
		{Target: "context", From: []string{contextPath}},
		{Target: "timestamp", From: []string{"item.timestamp"}, Number: true, Default: 0},
		{Target: "to.id", From: []string{"metadata.phone_number_id"}},
		{Target: "to.number", From: []string{"metadata.display_phone_number"}, Default: ""},
		{Target: "from.name", From: []string{"contact.profile.name"}, Default: UnknownUserName},
		{Target: "from.number", From: []string{"item.from", "contact.wa_id"}},
	}
}

func statusHeader(wireType string, selfContext bool) []Mapping {
	mappings := []Mapping{
		{Target: "type", Const: wireType},
		{Target: "notification", From: []string{"notification"}, Default: ""},
		{Target: "id", From: []string{"item.id"}},
		{Target: "timestamp", From: []string{"item.timestamp"}, Number: true, Default: 0},
		{Target: "to.id", From: []string{"metadata.phone_number_id"}},
		{Target: "to.number", From: []string{"metadata.display_phone_number"}, Default: ""},
		{Target: "from.name", From: []string{"item.recipient_id"}},
		{Target: "from.number", From: []string{"item.recipient_id"}},
	}
	if selfContext {
		mappings = append(mappings, Mapping{Target: "context", From: []string{"item.id"}})
	}
	return mappings
}

// UnknownUserName is used when the provider omits the contact profile.
const UnknownUserName = "Unknown"
