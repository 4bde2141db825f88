package transform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/genmode/internal/persona"
)

// Mode selects between a plain rendition and a persona-styled one.
type Mode string

const (
	ModeDirect Mode = "direct"
	ModeFull   Mode = "full"
)

var (
	// ErrPersonaRequired is returned when full mode is requested without a persona.
	ErrPersonaRequired = errors.New("transform: persona is required in full mode")
	// ErrUnknownMode is returned for modes other than direct and full.
	ErrUnknownMode = errors.New("transform: unknown mode")
)

// ResolvePersona picks the persona a request should use. Direct mode always uses the
// direct persona; full mode requires the caller to name one from the catalog. An empty
// mode is treated as full when a persona is given and direct otherwise.
func ResolvePersona(mode Mode, id persona.ID) (persona.ID, error) {
	id = persona.Normalize(id)
	switch Mode(strings.ToLower(strings.TrimSpace(string(mode)))) {
	case ModeDirect:
		return persona.Direct, nil
	case ModeFull:
		if id == "" {
			return "", ErrPersonaRequired
		}
	case "":
		if id == "" {
			return persona.DefaultID, nil
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if !persona.Valid(id) {
		return "", fmt.Errorf("transform: unknown persona %q", id)
	}
	return id, nil
}
