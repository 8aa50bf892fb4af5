package capture

import (
	"encoding/json"
	"fmt"
)

// Kind classifies a waypoint as a trough (dip) or a peak (tepe)
type Kind int

const (
	Trough Kind = iota
	Peak
)

// Toggle returns the other kind
func (k Kind) Toggle() Kind {
	if k == Trough {
		return Peak
	}
	return Trough
}

// WireName returns the name used by the analysis API
func (k Kind) WireName() string {
	if k == Peak {
		return "tepe"
	}
	return "dip"
}

// Label is the display label ("Dip" / "Tepe")
func (k Kind) Label() string {
	if k == Peak {
		return "Tepe"
	}
	return "Dip"
}

func (k Kind) String() string {
	if k == Peak {
		return "peak"
	}
	return "trough"
}

// ParseKind accepts wire names and English names
func ParseKind(s string) (Kind, error) {
	switch s {
	case "dip", "trough":
		return Trough, nil
	case "tepe", "peak":
		return Peak, nil
	}
	return Trough, fmt.Errorf("unknown point kind %q", s)
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.WireName())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
