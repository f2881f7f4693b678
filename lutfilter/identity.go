package lutfilter

import (
	"fmt"
	"strings"
)

// Identity names the active LUT. None disables filtering; Custom
// renders through a table installed with Engine.SetCustomTable.
type Identity int

const (
	None Identity = iota
	Mono
	Sepia
	Vivid
	Fade
	Arctic
	Custom
)

var identityNames = map[Identity]string{
	None:   "none",
	Mono:   "mono",
	Sepia:  "sepia",
	Vivid:  "vivid",
	Fade:   "fade",
	Arctic: "arctic",
	Custom: "custom",
}

func (i Identity) String() string {
	if name, ok := identityNames[i]; ok {
		return name
	}
	return fmt.Sprintf("identity(%d)", int(i))
}

// ParseIdentity maps a config or command string to an Identity.
func ParseIdentity(s string) (Identity, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for id, name := range identityNames {
		if name == want {
			return id, nil
		}
	}
	return None, fmt.Errorf("lutfilter: unknown filter %q", s)
}

// Identities returns every selectable identity in display order.
func Identities() []Identity {
	return []Identity{None, Mono, Sepia, Vivid, Fade, Arctic, Custom}
}
