package discord

import "encoding/json"

// InteractionType is the kind of an incoming interaction.
type InteractionType int

const (
	InteractionPing               InteractionType = 1
	InteractionApplicationCommand InteractionType = 2
)

// ResponseType is the kind of an interaction response.
type ResponseType int

const (
	ResponsePong                     ResponseType = 1
	ResponseChannelMessageWithSource ResponseType = 4
)

// Option types used by application commands.
const (
	OptionString = 3
)

// Interaction is the subset of an interaction payload the bot reads.
type Interaction struct {
	ID     string          `json:"id"`
	Type   InteractionType `json:"type"`
	Data   *CommandData    `json:"data,omitempty"`
	Member *Member         `json:"member,omitempty"`
	User   *User           `json:"user,omitempty"`
}

// Invoker returns the user who triggered the interaction. Guild
// interactions carry it under member, direct messages under user.
func (i *Interaction) Invoker() *User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// CommandData is the application command payload of an interaction.
type CommandData struct {
	ID      string              `json:"id"`
	Name    string              `json:"name"`
	Options []CommandOptionData `json:"options,omitempty"`
}

// StringOption returns the value of the named string option, or the first
// option when name is empty.
func (d *CommandData) StringOption(name string) string {
	if d == nil {
		return ""
	}
	for _, o := range d.Options {
		if name != "" && o.Name != name {
			continue
		}
		var s string
		if err := json.Unmarshal(o.Value, &s); err != nil {
			return ""
		}
		return s
	}
	return ""
}

// CommandOptionData is one option value supplied with a command.
type CommandOptionData struct {
	Name  string          `json:"name"`
	Type  int             `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Member is the guild member that sent an interaction.
type Member struct {
	User *User `json:"user,omitempty"`
}

// User is a Discord user.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
}

// InteractionResponse is the reply to an interaction.
type InteractionResponse struct {
	Type ResponseType  `json:"type"`
	Data *ResponseData `json:"data,omitempty"`
}

// ResponseData is the message content of a reply.
type ResponseData struct {
	Content string `json:"content"`
}

// Message builds a channel message response.
func Message(content string) InteractionResponse {
	return InteractionResponse{
		Type: ResponseChannelMessageWithSource,
		Data: &ResponseData{Content: content},
	}
}

// ApplicationCommand is a slash command definition.
type ApplicationCommand struct {
	ID          string          `json:"id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Type        int             `json:"type"`
	Options     []CommandOption `json:"options,omitempty"`
}

// CommandOption declares an option of a slash command.
type CommandOption struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        int    `json:"type"`
	Required    bool   `json:"required"`
}

// WhoisCommand is the /whois guild command.
var WhoisCommand = ApplicationCommand{
	Name:        "whois",
	Description: "Get information about a player.",
	Type:        1,
	Options: []CommandOption{{
		Name:        "player",
		Description: "The player to get information about.",
		Type:        OptionString,
		Required:    true,
	}},
}

// PingCommand is the /ping guild command.
var PingCommand = ApplicationCommand{
	Name:        "ping",
	Description: "Check that the bot is alive.",
	Type:        1,
}
