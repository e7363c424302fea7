package object

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signature identifies who made a commit and when, serialized as
// "Name <email> <unix_seconds> +0000".
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// String renders the signature in its on-disk line form.
func (s Signature) String() string {
	return fmt.Sprintf("%s <%s> %d +0000", s.Name, s.Email, s.When.UTC().Unix())
}

// ParseSignature parses a line previously produced by Signature.String.
func ParseSignature(line string) (Signature, error) {
	open := strings.IndexByte(line, '<')
	close := strings.IndexByte(line, '>')
	if open < 1 || close < open {
		return Signature{}, fmt.Errorf("object: malformed signature line %q", line)
	}

	name := strings.TrimSpace(line[:open])
	email := line[open+1 : close]

	rest := strings.TrimSpace(line[close+1:])
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return Signature{}, fmt.Errorf("object: signature line %q missing timestamp", line)
	}

	secs, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Signature{}, fmt.Errorf("object: invalid timestamp in signature line %q: %w", line, err)
	}

	return Signature{
		Name:  name,
		Email: email,
		When:  time.Unix(secs, 0).UTC(),
	}, nil
}
