package bus

// EventTypeMessage is the only stream event type that can carry a command.
const EventTypeMessage = "message"

// Event is one item from a chat platform's real-time stream.
type Event struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`
	Text    string `json:"text"`
	Channel string `json:"channel"`
	User    string `json:"user,omitempty"`
}

// Actionable reports whether the event is a plain user message. Events with a
// subtype are edits, joins and other system notices.
func (e Event) Actionable() bool {
	return e.Type == EventTypeMessage && e.Subtype == ""
}

// Command is the trailing text of a message addressed to the bot.
type Command struct {
	Text    string `json:"text"`
	Channel string `json:"channel"`
}

// Attachment is an optional titled image shown with a reply.
type Attachment struct {
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`
}

// Reply is the outbound message produced for one command.
type Reply struct {
	Channel    string      `json:"channel"`
	Text       string      `json:"text"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// Empty reports whether the reply carries neither text nor an image.
func (r Reply) Empty() bool {
	return r.Text == "" && (r.Attachment == nil || r.Attachment.ImageURL == "")
}
