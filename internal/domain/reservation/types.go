package reservation

type Status string

const (
	StatusHeld      Status = "held"
	StatusConfirmed Status = "confirmed"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusHeld, StatusConfirmed:
		return true
	default:
		return false
	}
}
