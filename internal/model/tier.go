package model

import (
	"fmt"
	"strings"
)

// Tier is a loyalty rank. Higher values rank higher.
type Tier int

const (
	Bronze Tier = iota
	Silver
	Gold
	Platinum
)

// TiersDescending lists every tier from the highest rank down.
var TiersDescending = [...]Tier{Platinum, Gold, Silver, Bronze}

func (t Tier) String() string {
	switch t {
	case Bronze:
		return "bronze"
	case Silver:
		return "silver"
	case Gold:
		return "gold"
	case Platinum:
		return "platinum"
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// ParseTier accepts the lower-case tier name in any case.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bronze":
		return Bronze, nil
	case "silver":
		return Silver, nil
	case "gold":
		return Gold, nil
	case "platinum":
		return Platinum, nil
	}
	return Bronze, fmt.Errorf("unknown tier %q", s)
}

func (t Tier) MarshalText() ([]byte, error) {
	if t < Bronze || t > Platinum {
		return nil, fmt.Errorf("invalid tier %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
