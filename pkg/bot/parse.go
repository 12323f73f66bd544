package bot

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// parseCommand recognizes a function call in text. foreign is true when the
// call addresses another bot by name.
func parseCommand(text string, prefixes []string, botName string) (cmd *Command, foreign bool) {
	text = strings.TrimLeftFunc(text, unicode.IsSpace)

	var prefix string
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(text, p) {
			prefix = p
			break
		}
	}
	if prefix == "" {
		return nil, false
	}

	body := text[len(prefix):]
	word, raw := body, ""
	if i := strings.IndexFunc(body, unicode.IsSpace); i >= 0 {
		_, size := utf8.DecodeRuneInString(body[i:])
		word, raw = body[:i], body[i+size:]
	}

	name, target, _ := strings.Cut(word, "@")
	name = strings.ToLower(name)
	if name == "" {
		return nil, false
	}
	if target != "" && botName != "" && !strings.EqualFold(target, botName) {
		return nil, true
	}

	var args []string
	if fields := strings.Fields(raw); len(fields) > 0 {
		args = fields
	}
	return &Command{
		Prefix: prefix,
		Name:   name,
		Target: target,
		Raw:    strings.TrimRightFunc(raw, unicode.IsSpace),
		Params: strings.Join(args, " "),
		Args:   args,
	}, false
}

func parsePayload(params string) *Payload {
	token, _, _ := strings.Cut(params, " ")
	parts := strings.Split(token, "-")
	return &Payload{
		Raw:    params,
		Prefix: parts[0],
		Args:   parts[1:],
	}
}
