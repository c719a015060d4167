package factor

import "fmt"

// Kind selects how stored rows are turned into an aligned series.
type Kind int

const (
	// Compact tables store a row only when the value changes; reads
	// forward-fill the latest value at or before each date.
	Compact Kind = iota + 1
	// Continuous tables store a row for every traded day; reads match
	// exact dates only.
	Continuous
	// OnTheRecord tables encode an event by row presence.
	OnTheRecord
)

func (k Kind) String() string {
	switch k {
	case Compact:
		return "compact"
	case Continuous:
		return "continuous"
	case OnTheRecord:
		return "on_the_record"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "compact":
		return Compact, nil
	case "continuous":
		return Continuous, nil
	case "on_the_record":
		return OnTheRecord, nil
	default:
		return 0, fmt.Errorf("unknown factor kind %q", s)
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }
