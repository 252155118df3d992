package model

// Pin identifies a physical GPIO or PWM capable channel on the board.
type Pin int

// IsValid returns true when the pin number can exist on any supported board.
func (p Pin) IsValid() bool {
	return p > 0
}
